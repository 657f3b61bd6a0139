// internal/service/fulfillment/domain/classifier.go
package domain

import "strings"

// ErrorCategory 是面向运营报表的错误归类，只用于展示，不参与控制流。
type ErrorCategory string

const (
	CategoryInvalidCatalogItem  ErrorCategory = "InvalidCatalogItem"
	CategoryInvalidTermDuration ErrorCategory = "InvalidTermDuration"
	CategoryAuthenticationError ErrorCategory = "AuthenticationError"
	CategoryTimeoutError        ErrorCategory = "TimeoutError"
	CategoryHttpError           ErrorCategory = "HttpError"
	CategoryOther               ErrorCategory = "Other"
)

// Classify 把上游平台返回的原始错误文本映射为规范分类。
// 规则固定顺序、首个命中生效、大小写不敏感的子串匹配；
// 同一段文本永远得到同一个分类。
func Classify(rawErrorText string) ErrorCategory {
	text := strings.ToLower(rawErrorText)

	switch {
	case strings.Contains(text, "catalogitem id") && strings.Contains(text, "invalid"):
		return CategoryInvalidCatalogItem
	case strings.Contains(text, "termduration"):
		return CategoryInvalidTermDuration
	case strings.Contains(text, "token") || strings.Contains(text, "authentication"):
		return CategoryAuthenticationError
	case strings.Contains(text, "timeout"):
		return CategoryTimeoutError
	case strings.Contains(text, "http"):
		return CategoryHttpError
	default:
		return CategoryOther
	}
}
