package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestMappingRepository_GetOrCreateIsIdempotent(t *testing.T) {
	repo := NewMappingRepository(newTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uint64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := repo.GetOrCreate(ctx, "biz-1", "facebook")
			assert.NoError(t, err)
			if m != nil {
				ids[i] = m.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	list, err := repo.ListByBusiness(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.SyncUnsynced, list[0].Status)
}

func TestMappingRepository_GetMissing(t *testing.T) {
	repo := NewMappingRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), "nope", "maps")
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "sync_mapping", nf.Kind)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMappingRepository_TransitionAudit(t *testing.T) {
	repo := NewMappingRepository(newTestDB(t))
	ctx := context.Background()
	m, err := repo.GetOrCreate(ctx, "biz-1", "custom_directory")
	require.NoError(t, err)

	require.NoError(t, repo.Transition(ctx, m, model.SyncPending, "", func(m *model.SyncMapping) {
		m.BatchID = "batch-1"
	}))
	require.NoError(t, repo.Transition(ctx, m, model.SyncSubmitted, "", func(m *model.SyncMapping) {
		id := "L-9"
		m.PlatformID = &id
	}))
	require.NoError(t, repo.Transition(ctx, m, model.SyncSynced, "", nil))

	// 非法迁移被拒绝且不落库
	err = repo.Transition(ctx, m, model.SyncPending, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))

	got, err := repo.Get(ctx, "biz-1", "custom_directory")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, got.Status)
	assert.Equal(t, "L-9", got.RemoteID())
	assert.Equal(t, "batch-1", got.BatchID)

	log, err := repo.ListTransitions(ctx, "biz-1", "custom_directory")
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, model.SyncUnsynced, log[0].FromStatus)
	assert.Equal(t, model.SyncPending, log[0].ToStatus)
	assert.Equal(t, model.SyncSynced, log[2].ToStatus)
}

func TestMappingRepository_TransitionDetectsConcurrentChange(t *testing.T) {
	repo := NewMappingRepository(newTestDB(t))
	ctx := context.Background()
	m, err := repo.GetOrCreate(ctx, "biz-1", "facebook")
	require.NoError(t, err)
	stale := *m

	require.NoError(t, repo.Transition(ctx, m, model.SyncPending, "", nil))
	err = repo.Transition(ctx, &stale, model.SyncPending, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))
	assert.Equal(t, model.SyncUnsynced, stale.Status, "caller copy untouched on failure")
}

func TestMappingRepository_ListSyncedBefore(t *testing.T) {
	repo := NewMappingRepository(newTestDB(t))
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now()

	for platform, at := range map[string]time.Time{"a": old, "b": fresh} {
		m, err := repo.GetOrCreate(ctx, "biz-1", platform)
		require.NoError(t, err)
		require.NoError(t, repo.Transition(ctx, m, model.SyncPending, "", nil))
		require.NoError(t, repo.Transition(ctx, m, model.SyncSubmitted, "", nil))
		at := at
		require.NoError(t, repo.Transition(ctx, m, model.SyncSynced, "", func(m *model.SyncMapping) {
			m.LastSuccessAt = &at
		}))
	}

	list, err := repo.ListSyncedBefore(ctx, time.Now().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].PlatformName)

	synced, err := repo.ListByStatus(ctx, model.SyncSynced, 10)
	require.NoError(t, err)
	assert.Len(t, synced, 2)
}

func TestBusinessRepository_SaveAndGet(t *testing.T) {
	repo := NewBusinessRepository(newTestDB(t))
	ctx := context.Background()
	rec := &model.BusinessRecord{
		TenantID:   "t1",
		Name:       "Royal Spa",
		Contact:    model.Contact{Email: "hello@royalspa.example"},
		Categories: model.Categories{Primary: "wellness"},
		Rating:     &model.Rating{Value: decimal.RequireFromString("4.25"), Count: 9},
	}
	require.NoError(t, repo.Save(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Royal Spa", got.Name)
	assert.Equal(t, rec.ContentHash(), got.ContentHash())

	rec.Name = "Royal Spa & Wellness"
	require.NoError(t, repo.Save(ctx, rec))
	got, err = repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Royal Spa & Wellness", got.Name)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestBatchRepository_Lifecycle(t *testing.T) {
	repo := NewBatchRepository(newTestDB(t))
	ctx := context.Background()
	batch := &model.SyncBatch{BatchUUID: "b-1", BusinessID: "biz-1", Mode: model.ModeSubmit, State: model.BatchRunning}
	require.NoError(t, repo.CreateBatch(ctx, batch, []string{"maps", "custom_directory"}))

	require.NoError(t, repo.SaveItem(ctx, "b-1", model.PlatformResult{
		PlatformName: "custom_directory",
		Outcome:      model.ItemSubmitted,
		Status:       model.SyncSynced,
		PlatformID:   "L-9",
		Attempts:     1,
	}))
	err := repo.SaveItem(ctx, "b-1", model.PlatformResult{PlatformName: "unknown"})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	report := &model.BatchReport{State: model.BatchCompleted, Submitted: 1, Failed: 1}
	require.NoError(t, repo.FinishBatch(ctx, "b-1", report))

	got, err := repo.GetBatch(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, got.State)
	assert.Equal(t, 1, got.SubmittedCount)
	assert.NotNil(t, got.FinishedAt)

	items, err := repo.ListItems(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "maps", items[0].PlatformName)
	assert.Equal(t, model.SyncUnsynced, items[0].Status)
	assert.Equal(t, "L-9", *items[1].PlatformID)

	_, err = repo.GetBatch(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
