package repository

import (
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"gorm.io/gorm"
)

// AutoMigrate 库表不存在则自动创建（按依赖顺序迁移）
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Business{},
		&model.SyncMapping{},
		&model.SyncTransition{},
		&model.SyncBatch{},
		&model.SyncBatchItem{},
	)
}
