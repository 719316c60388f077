package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type businessRepository struct {
	db *gorm.DB
}

func NewBusinessRepository(db *gorm.DB) interfaces.BusinessRepository {
	return &businessRepository{db: db}
}

// Save 按 id upsert；id 为空时生成 uuid 并回写到 record
func (r *businessRepository) Save(ctx context.Context, record *model.BusinessRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	profile, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化商户档案失败: %w", err)
	}
	row := &model.Business{
		ID:       record.ID,
		TenantID: record.TenantID,
		Name:     record.Name,
		Profile:  datatypes.JSON(profile),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "name", "profile", "updated_at"}),
	}).Create(row).Error; err != nil {
		return fmt.Errorf("保存商户档案失败: %w", err)
	}
	return nil
}

func (r *businessRepository) Get(ctx context.Context, businessID string) (*model.BusinessRecord, error) {
	var row model.Business
	err := r.db.WithContext(ctx).Where("id = ?", businessID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "business", Key: businessID}
	}
	if err != nil {
		return nil, fmt.Errorf("查询商户档案失败: %w", err)
	}
	var record model.BusinessRecord
	if err := json.Unmarshal(row.Profile, &record); err != nil {
		return nil, fmt.Errorf("解析商户档案失败: %w", err)
	}
	record.ID = row.ID
	return &record, nil
}
