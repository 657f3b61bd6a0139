// internal/service/fulfillment/infrastructure/mysql.go
package infrastructure

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMysqlDB 打开到 MySQL 的 GORM 连接。
// TranslateError 让唯一索引冲突映射为 gorm.ErrDuplicatedKey，
// 订阅仓储的幂等保护依赖这一点。
func NewMysqlDB(dsn string) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
}
