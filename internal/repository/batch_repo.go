package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"gorm.io/gorm"
)

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) interfaces.BatchRepository {
	return &batchRepository{db: db}
}

// CreateBatch 批次头与明细同一事务写入，明细按目标平台顺序编号
func (r *batchRepository) CreateBatch(ctx context.Context, batch *model.SyncBatch, platforms []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return fmt.Errorf("创建批次失败: %w", err)
		}
		if len(platforms) == 0 {
			return nil
		}
		items := make([]*model.SyncBatchItem, 0, len(platforms))
		for i, p := range platforms {
			items = append(items, &model.SyncBatchItem{
				BatchUUID:    batch.BatchUUID,
				PlatformName: p,
				Position:     i,
				Status:       model.SyncUnsynced,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("创建批次明细失败: %w", err)
		}
		return nil
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *batchRepository) SaveItem(ctx context.Context, batchID string, res model.PlatformResult) error {
	updates := map[string]any{
		"status":      res.Status,
		"outcome":     res.Outcome,
		"platform_id": optional(res.PlatformID),
		"last_error":  optional(res.Error),
		"attempts":    res.Attempts,
		"simulated":   res.Simulated,
	}
	out := r.db.WithContext(ctx).Model(&model.SyncBatchItem{}).
		Where("batch_uuid = ? AND platform_name = ?", batchID, res.PlatformName).
		Updates(updates)
	if out.Error != nil {
		return fmt.Errorf("更新批次明细失败: %w", out.Error)
	}
	if out.RowsAffected == 0 {
		return &model.NotFoundError{Kind: "batch_item", Key: batchID + "/" + res.PlatformName}
	}
	return nil
}

func (r *batchRepository) FinishBatch(ctx context.Context, batchID string, report *model.BatchReport) error {
	now := time.Now()
	out := r.db.WithContext(ctx).Model(&model.SyncBatch{}).
		Where("batch_uuid = ?", batchID).
		Updates(map[string]any{
			"state":           report.State,
			"submitted_count": report.Submitted,
			"failed_count":    report.Failed,
			"skipped_count":   report.Skipped,
			"simulated_count": report.Simulated,
			"finished_at":     &now,
		})
	if out.Error != nil {
		return fmt.Errorf("结束批次失败: %w", out.Error)
	}
	if out.RowsAffected == 0 {
		return &model.NotFoundError{Kind: "batch", Key: batchID}
	}
	return nil
}

func (r *batchRepository) GetBatch(ctx context.Context, batchID string) (*model.SyncBatch, error) {
	var b model.SyncBatch
	err := r.db.WithContext(ctx).Where("batch_uuid = ?", batchID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "batch", Key: batchID}
	}
	if err != nil {
		return nil, fmt.Errorf("查询批次失败: %w", err)
	}
	return &b, nil
}

func (r *batchRepository) ListItems(ctx context.Context, batchID string) ([]*model.SyncBatchItem, error) {
	var items []*model.SyncBatchItem
	if err := r.db.WithContext(ctx).Where("batch_uuid = ?", batchID).Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
