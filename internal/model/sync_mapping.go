package model

import (
	"fmt"
	"time"
)

// SyncStatus 单个 (商户, 平台) 的同步状态
type SyncStatus string

const (
	SyncUnsynced  SyncStatus = "unsynced"
	SyncPending   SyncStatus = "pending"
	SyncSubmitted SyncStatus = "submitted"
	SyncVerified  SyncStatus = "verified"
	SyncSynced    SyncStatus = "synced"
	SyncFailed    SyncStatus = "failed"
	SyncStale     SyncStatus = "stale"
)

func (s SyncStatus) String() string { return string(s) }

// 合法的状态迁移；failed 另行处理（除 synced 外任何状态都可以进入 failed）
var transitions = map[SyncStatus][]SyncStatus{
	SyncUnsynced:  {SyncPending},
	SyncFailed:    {SyncPending},
	SyncStale:     {SyncPending},
	SyncPending:   {SyncSubmitted, SyncUnsynced},
	SyncSubmitted: {SyncVerified, SyncSynced},
	SyncVerified:  {SyncSynced},
	SyncSynced:    {SyncStale},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to SyncStatus) bool {
	if to == SyncFailed {
		return from != SyncSynced
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition 非法迁移返回 ErrInvalidTransition
func CheckTransition(from, to SyncStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanEnterRetry 只有 unsynced / failed / stale 可以重新进入 pending
func (s SyncStatus) CanEnterRetry() bool {
	return CanTransition(s, SyncPending)
}

// SyncMapping 每个 (business_id, platform_name) 恰好一行，只由编排器写入
type SyncMapping struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BusinessID    string     `gorm:"column:business_id;type:varchar(64);not null;uniqueIndex:uq_mapping_business_platform" json:"business_id"`
	PlatformName  string     `gorm:"column:platform_name;type:varchar(64);not null;uniqueIndex:uq_mapping_business_platform" json:"platform_name"`
	PlatformID    *string    `gorm:"column:platform_id;type:varchar(128)" json:"platform_id,omitempty"`
	Status        SyncStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `gorm:"column:last_success_at" json:"last_success_at,omitempty"`
	ErrorCount    int        `gorm:"column:error_count;not null" json:"error_count"`
	LastError     *string    `gorm:"column:last_error;type:varchar(255)" json:"last_error,omitempty"`
	Simulated     bool       `gorm:"column:simulated;not null" json:"simulated"`
	BatchID       string     `gorm:"column:batch_id;type:varchar(64)" json:"batch_id,omitempty"`
	ContentHash   string     `gorm:"column:content_hash;type:varchar(64)" json:"-"`
	PhotosHash    string     `gorm:"column:photos_hash;type:varchar(64)" json:"-"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncMapping) TableName() string { return "sync_mappings" }

// RemoteID 平台侧 ID，尚未首次成功时为空串
func (m *SyncMapping) RemoteID() string {
	if m == nil || m.PlatformID == nil {
		return ""
	}
	return *m.PlatformID
}

// Error 最近一次错误原因
func (m *SyncMapping) Error() string {
	if m == nil || m.LastError == nil {
		return ""
	}
	return *m.LastError
}

// SyncTransition 状态迁移审计日志，只追加
type SyncTransition struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	BusinessID   string     `gorm:"column:business_id;type:varchar(64);not null;index:idx_transition_pair" json:"business_id"`
	PlatformName string     `gorm:"column:platform_name;type:varchar(64);not null;index:idx_transition_pair" json:"platform_name"`
	FromStatus   SyncStatus `gorm:"column:from_status;type:varchar(16);not null" json:"from"`
	ToStatus     SyncStatus `gorm:"column:to_status;type:varchar(16);not null" json:"to"`
	Reason       string     `gorm:"column:reason;type:varchar(64)" json:"reason,omitempty"`
	BatchID      string     `gorm:"column:batch_id;type:varchar(64)" json:"batch_id,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SyncTransition) TableName() string { return "sync_transitions" }
