// internal/service/fulfillment/domain/errors.go
package domain

import "errors"

// ErrOrderNotFound 是编排器唯一的整单致命错误：
// 订单不存在时不处理任何订单项，直接返回给调用方。
var ErrOrderNotFound = errors.New("order not found")

// ErrSubscriptionExists 表示该订单项已经有本地订阅记录。
// 幂等保护：到达 fulfilled 的项重复编排时绝不允许产生第二条订阅。
var ErrSubscriptionExists = errors.New("subscription already exists for order item")
