package interfaces

import (
	"context"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

// Transformer 规范档案与平台报文之间的双向映射
// 对 SupportedFields 中的字段必须满足 ToCanonical(FromCanonical(x)) == x
type Transformer interface {
	FromCanonical(record *model.BusinessRecord) map[string]any
	ToCanonical(payload map[string]any) (*model.BusinessRecord, error)
}

// PlatformAdapter 所有平台必须实现的核心接口
// 所有操作都通过 PlatformResponse 返回结果，不得返回 error 或 panic
type PlatformAdapter interface {
	Transformer

	// Name 平台名称（注册表主键）
	Name() string
	Capabilities() model.PlatformCapabilities
	// Authenticate 只校验凭证，不重试
	Authenticate(ctx context.Context, creds *model.AuthCredentials) bool

	// 必选操作
	CreateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	UpdateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse

	// 可选操作，调用前由能力注册表把关
	DeleteListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	ClaimListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	VerifyListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	GetReviews(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	GetAnalytics(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
	UploadPhotos(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse
}

// MappingRepository 同步映射存储，只有编排器会写
type MappingRepository interface {
	GetOrCreate(ctx context.Context, businessID, platform string) (*model.SyncMapping, error)
	Get(ctx context.Context, businessID, platform string) (*model.SyncMapping, error)
	Transition(ctx context.Context, m *model.SyncMapping, to model.SyncStatus, reason string, mutate func(m *model.SyncMapping)) error
	ListByStatus(ctx context.Context, status model.SyncStatus, limit int) ([]*model.SyncMapping, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*model.SyncMapping, error)
	// ListSyncedBefore last_success_at 早于 cutoff 的 synced 映射（漂移检测用）
	ListSyncedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.SyncMapping, error)
	ListTransitions(ctx context.Context, businessID, platform string) ([]*model.SyncTransition, error)
}

// BusinessRepository 规范档案存储
type BusinessRepository interface {
	Save(ctx context.Context, record *model.BusinessRecord) error
	Get(ctx context.Context, businessID string) (*model.BusinessRecord, error)
}

// BatchRepository 批次与明细存储
type BatchRepository interface {
	CreateBatch(ctx context.Context, batch *model.SyncBatch, platforms []string) error
	SaveItem(ctx context.Context, batchID string, res model.PlatformResult) error
	FinishBatch(ctx context.Context, batchID string, report *model.BatchReport) error
	GetBatch(ctx context.Context, batchID string) (*model.SyncBatch, error)
	ListItems(ctx context.Context, batchID string) ([]*model.SyncBatchItem, error)
}
