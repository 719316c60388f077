package model

import (
	"time"

	"gorm.io/datatypes"
)

// BatchState 批次整体状态
type BatchState string

const (
	BatchRunning   BatchState = "running"
	BatchCompleted BatchState = "completed"
	BatchCancelled BatchState = "cancelled"
)

// SyncMode 批次同步方式
type SyncMode string

const (
	// ModeSubmit 写入型平台：create / update
	ModeSubmit SyncMode = "submit"
	// ModeDiscover 只读平台：search -> claim
	ModeDiscover SyncMode = "discover"
)

// Business 持久化的规范档案，profile 为 BusinessRecord 的 JSON
type Business struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(64)"`
	TenantID  string         `gorm:"column:tenant_id;type:varchar(64);index"`
	Name      string         `gorm:"column:name;type:varchar(256);not null"`
	Profile   datatypes.JSON `gorm:"column:profile;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Business) TableName() string { return "businesses" }

// SyncBatch 一次提交
type SyncBatch struct {
	ID             uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BatchUUID      string     `gorm:"column:batch_uuid;type:varchar(64);uniqueIndex;not null" json:"batch_id"`
	BusinessID     string     `gorm:"column:business_id;type:varchar(64);not null;index" json:"business_id"`
	Mode           SyncMode   `gorm:"column:mode;type:varchar(16);not null" json:"mode"`
	State          BatchState `gorm:"column:state;type:varchar(16);not null" json:"state"`
	SubmittedCount int        `gorm:"column:submitted_count;not null" json:"submitted"`
	FailedCount    int        `gorm:"column:failed_count;not null" json:"failed"`
	SkippedCount   int        `gorm:"column:skipped_count;not null" json:"skipped"`
	SimulatedCount int        `gorm:"column:simulated_count;not null" json:"simulated"`
	FinishedAt     *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncBatch) TableName() string { return "sync_batches" }

// SyncBatchItem 批次内单个平台的最终结果
type SyncBatchItem struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BatchUUID    string     `gorm:"column:batch_uuid;type:varchar(64);not null;uniqueIndex:uq_batch_platform" json:"batch_id"`
	PlatformName string     `gorm:"column:platform_name;type:varchar(64);not null;uniqueIndex:uq_batch_platform" json:"platform_name"`
	Position     int        `gorm:"column:position;not null" json:"position"`
	Status       SyncStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Outcome      string     `gorm:"column:outcome;type:varchar(16)" json:"outcome"`
	PlatformID   *string    `gorm:"column:platform_id;type:varchar(128)" json:"platform_id,omitempty"`
	LastError    *string    `gorm:"column:last_error;type:varchar(255)" json:"last_error,omitempty"`
	Attempts     int        `gorm:"column:attempts;not null" json:"attempts"`
	Simulated    bool       `gorm:"column:simulated;not null" json:"simulated"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncBatchItem) TableName() string { return "sync_batch_items" }

// 批次明细的结果分类
const (
	ItemSubmitted = "submitted"
	ItemFailed    = "failed"
	ItemSkipped   = "skipped"
)

// PlatformResult 批次报告中单个平台的明细
type PlatformResult struct {
	PlatformName string     `json:"platform_name"`
	Outcome      string     `json:"outcome"`
	Status       SyncStatus `json:"status"`
	PlatformID   string     `json:"platform_id,omitempty"`
	Error        string     `json:"error,omitempty"`
	Attempts     int        `json:"attempts"`
	Simulated    bool       `json:"simulated,omitempty"`

	// 照片同步结果，不影响 Outcome
	PhotosUploaded int    `json:"photos_uploaded,omitempty"`
	PhotosError    string `json:"photos_error,omitempty"`
}

// BatchReport 批次汇总
type BatchReport struct {
	BatchID    string           `json:"batch_id"`
	BusinessID string           `json:"business_id"`
	State      BatchState       `json:"state"`
	Submitted  int              `json:"submitted"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Simulated  int              `json:"simulated"`
	Results    []PlatformResult `json:"results"`
}

// Add 累加单个平台结果
func (r *BatchReport) Add(res PlatformResult) {
	switch res.Outcome {
	case ItemSubmitted:
		r.Submitted++
	case ItemFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	if res.Simulated {
		r.Simulated++
	}
	r.Results = append(r.Results, res)
}

// Result 按平台名查明细
func (r *BatchReport) Result(platform string) (PlatformResult, bool) {
	for _, res := range r.Results {
		if res.PlatformName == platform {
			return res, true
		}
	}
	return PlatformResult{}, false
}

// PlatformStatus status(batch_id) 返回的单行
type PlatformStatus struct {
	PlatformName string     `json:"platform_name"`
	Status       SyncStatus `json:"status"`
	PlatformID   string     `json:"platform_id,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Simulated    bool       `json:"simulated,omitempty"`
}
