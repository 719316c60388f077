package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repository.AutoMigrate(db))
	return db
}

type hookFunc func(ctx context.Context, op model.Operation, req *model.ListingRequest) *model.PlatformResponse

// fakeAdapter 按脚本返回响应；同一操作的脚本按顺序消费，最后一个重复使用
type fakeAdapter struct {
	name string
	caps model.PlatformCapabilities

	mu       sync.Mutex
	calls    map[model.Operation]int
	requests []model.ListingRequest
	script   map[model.Operation][]*model.PlatformResponse
	hook     hookFunc

	authDenied bool
	authCalls  int
}

func newFake(name string, ops ...model.Operation) *fakeAdapter {
	return &fakeAdapter{
		name: name,
		caps: model.PlatformCapabilities{
			Name:               name,
			Operations:         ops,
			RateLimitPerMinute: 6000,
			SupportedFields:    []string{model.FieldName, model.FieldPrimaryCategory, model.FieldPhone},
		},
		calls:  make(map[model.Operation]int),
		script: make(map[model.Operation][]*model.PlatformResponse),
	}
}

func (f *fakeAdapter) respond(op model.Operation, responses ...*model.PlatformResponse) *fakeAdapter {
	f.mu.Lock()
	f.script[op] = responses
	f.mu.Unlock()
	return f
}

func (f *fakeAdapter) onCall(h hookFunc) *fakeAdapter {
	f.mu.Lock()
	f.hook = h
	f.mu.Unlock()
	return f
}

func (f *fakeAdapter) callCount(op model.Operation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAdapter) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAdapter) lastRequest() model.ListingRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeAdapter) handle(ctx context.Context, op model.Operation, req *model.ListingRequest) *model.PlatformResponse {
	f.mu.Lock()
	f.calls[op]++
	f.requests = append(f.requests, *req)
	var resp *model.PlatformResponse
	if q := f.script[op]; len(q) > 0 {
		resp = q[0]
		if len(q) > 1 {
			f.script[op] = q[1:]
		}
	}
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if r := hook(ctx, op, req); r != nil {
			return r
		}
	}
	if resp == nil {
		id := req.PlatformID
		if id == "" {
			id = "remote-" + f.name
		}
		return model.OK(op, id, map[string]any{"id": id})
	}
	cp := *resp
	cp.Operation = op
	return &cp
}

func (f *fakeAdapter) Name() string                             { return f.name }
func (f *fakeAdapter) Capabilities() model.PlatformCapabilities { return f.caps.Clone() }
func (f *fakeAdapter) Authenticate(context.Context, *model.AuthCredentials) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return !f.authDenied
}

func (f *fakeAdapter) authCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

func (f *fakeAdapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	return map[string]any{
		"name":     r.Name,
		"category": r.Categories.Primary,
		"phone":    r.Contact.Phone,
	}
}

func (f *fakeAdapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		Name:       adapter.Str(payload, "name"),
		Categories: model.Categories{Primary: adapter.Str(payload, "category")},
		Contact:    model.Contact{Phone: adapter.Str(payload, "phone")},
	}
	return r, nil
}

func (f *fakeAdapter) CreateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpCreate, req)
}

func (f *fakeAdapter) UpdateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpUpdate, req)
}

func (f *fakeAdapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpGet, req)
}

func (f *fakeAdapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpSearch, req)
}

func (f *fakeAdapter) DeleteListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpDelete, req)
}

func (f *fakeAdapter) ClaimListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpClaim, req)
}

func (f *fakeAdapter) VerifyListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpVerify, req)
}

func (f *fakeAdapter) GetReviews(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpReviews, req)
}

func (f *fakeAdapter) GetAnalytics(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpAnalytics, req)
}

func (f *fakeAdapter) UploadPhotos(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	return f.handle(ctx, model.OpPhotos, req)
}

var _ interfaces.PlatformAdapter = (*fakeAdapter)(nil)

// recordingSleeper 不真正等待，只记录退避时长
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

type testEnv struct {
	orch       *SyncOrchestrator
	registry   *adapter.PlatformRegistry
	mappings   interfaces.MappingRepository
	businesses interfaces.BusinessRepository
	batches    interfaces.BatchRepository
	creds      *CredentialStore
	sleeper    *recordingSleeper
	logger     *logrus.Logger
}

func newEnv(t *testing.T, adapters ...interfaces.PlatformAdapter) *testEnv {
	t.Helper()
	return newEnvWithProfiles(t, nil, adapters...)
}

func newEnvWithProfiles(t *testing.T, profiles map[string]model.PlatformProfile, adapters ...interfaces.PlatformAdapter) *testEnv {
	t.Helper()
	log := quietLogger()
	db := newTestDB(t)

	registry := adapter.NewRegistry(log)
	for _, a := range adapters {
		require.NoError(t, registry.Add(a, profiles[a.Name()]))
	}
	registry.Freeze()

	env := &testEnv{
		registry:   registry,
		mappings:   repository.NewMappingRepository(db),
		businesses: repository.NewBusinessRepository(db),
		batches:    repository.NewBatchRepository(db),
		creds:      NewCredentialStore(nil, "default", log),
		sleeper:    &recordingSleeper{},
		logger:     log,
	}
	env.orch = NewSyncOrchestrator(registry, env.mappings, env.businesses, env.batches, env.creds, NewMemoryLocker(), nil, Options{
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Ladder:      []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
			MaxBackoff:  time.Minute,
		},
		MaxConcurrency: 4,
		Sleep:          env.sleeper.sleep,
	}, log)
	return env
}

func royalSpa() model.BusinessRecord {
	return model.BusinessRecord{
		TenantID: "tenant-1",
		Name:     "Royal Spa",
		Location: &model.Location{
			Street:           "12 W 57th St",
			City:             "New York",
			State:            "NY",
			Country:          "US",
			FormattedAddress: "12 W 57th St, New York, NY",
		},
		Contact:    model.Contact{Phone: "+1 212 555 0100", Email: "hello@royalspa.example"},
		Categories: model.Categories{Primary: "wellness", Secondary: []string{"spa"}},
	}
}

func (e *testEnv) saveBusiness(t *testing.T, in model.BusinessRecord) *model.BusinessRecord {
	t.Helper()
	rec, err := model.NewBusinessRecord(in)
	require.NoError(t, err)
	require.NoError(t, e.businesses.Save(context.Background(), rec))
	return rec
}

func (e *testEnv) run(t *testing.T, businessID string, platforms ...string) *model.BatchReport {
	t.Helper()
	report, err := e.orch.Run(context.Background(), SubmitRequest{BusinessID: businessID, Platforms: platforms})
	require.NoError(t, err)
	return report
}

func (e *testEnv) mapping(t *testing.T, businessID, platform string) *model.SyncMapping {
	t.Helper()
	m, err := e.mappings.Get(context.Background(), businessID, platform)
	require.NoError(t, err)
	return m
}

func (e *testEnv) path(t *testing.T, businessID, platform string) []string {
	t.Helper()
	log, err := e.mappings.ListTransitions(context.Background(), businessID, platform)
	require.NoError(t, err)
	out := make([]string, 0, len(log))
	for _, tr := range log {
		out = append(out, string(tr.FromStatus)+"->"+string(tr.ToStatus))
	}
	return out
}

func rateLimited() *model.PlatformResponse {
	return model.Fail("", model.ReasonRateLimited, 429)
}
