package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mappingColumns Transition 时允许写入的列
var mappingColumns = []string{
	"platform_id", "status", "last_attempt_at", "last_success_at", "error_count",
	"last_error", "simulated", "batch_id", "content_hash", "photos_hash", "updated_at",
}

type mappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) interfaces.MappingRepository {
	return &mappingRepository{db: db}
}

func mappingKey(businessID, platform string) string {
	return businessID + "/" + platform
}

// GetOrCreate 首次提交时懒创建，(business_id, platform_name) 冲突时不覆盖已有行
func (r *mappingRepository) GetOrCreate(ctx context.Context, businessID, platform string) (*model.SyncMapping, error) {
	m := &model.SyncMapping{
		BusinessID:   businessID,
		PlatformName: platform,
		Status:       model.SyncUnsynced,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "platform_name"}},
		DoNothing: true,
	}).Create(m).Error; err != nil {
		return nil, fmt.Errorf("创建同步映射失败: %w", err)
	}
	return r.Get(ctx, businessID, platform)
}

func (r *mappingRepository) Get(ctx context.Context, businessID, platform string) (*model.SyncMapping, error) {
	var m model.SyncMapping
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND platform_name = ?", businessID, platform).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "sync_mapping", Key: mappingKey(businessID, platform)}
	}
	if err != nil {
		return nil, fmt.Errorf("查询同步映射失败: %w", err)
	}
	return &m, nil
}

// Transition 校验状态机后以 status 作为乐观锁更新，同时追加一条迁移日志
// 成功后 m 被替换为新值
func (r *mappingRepository) Transition(ctx context.Context, m *model.SyncMapping, to model.SyncStatus, reason string, mutate func(m *model.SyncMapping)) error {
	from := m.Status
	if err := model.CheckTransition(from, to); err != nil {
		return err
	}
	next := *m
	next.Status = to
	if mutate != nil {
		mutate(&next)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&next).Where("status = ?", from).Select(mappingColumns).Updates(&next)
		if res.Error != nil {
			return fmt.Errorf("更新同步映射失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s 状态已被并发修改（期望 %s）", model.ErrInvalidTransition, mappingKey(m.BusinessID, m.PlatformName), from)
		}
		return tx.Create(&model.SyncTransition{
			BusinessID:   m.BusinessID,
			PlatformName: m.PlatformName,
			FromStatus:   from,
			ToStatus:     to,
			Reason:       reason,
			BatchID:      next.BatchID,
		}).Error
	})
	if err != nil {
		return err
	}
	*m = next
	return nil
}

func (r *mappingRepository) ListByStatus(ctx context.Context, status model.SyncStatus, limit int) ([]*model.SyncMapping, error) {
	db := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var list []*model.SyncMapping
	if err := db.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mappingRepository) ListByBusiness(ctx context.Context, businessID string) ([]*model.SyncMapping, error) {
	var list []*model.SyncMapping
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).Order("platform_name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mappingRepository) ListSyncedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.SyncMapping, error) {
	db := r.db.WithContext(ctx).
		Where("status = ? AND last_success_at < ?", model.SyncSynced, cutoff).
		Order("last_success_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var list []*model.SyncMapping
	if err := db.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *mappingRepository) ListTransitions(ctx context.Context, businessID, platform string) ([]*model.SyncTransition, error) {
	var list []*model.SyncTransition
	if err := r.db.WithContext(ctx).
		Where("business_id = ? AND platform_name = ?", businessID, platform).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
