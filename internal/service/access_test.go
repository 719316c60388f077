package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fbCredentials(token string) *model.AuthCredentials {
	return &model.AuthCredentials{Platform: "fb", Credentials: map[string]string{model.CredToken: token}}
}

func TestPlatformAccess_InFlightLimitCoversEveryCallPath(t *testing.T) {
	fake := newFake("fb", model.OpCreate, model.OpUpdate, model.OpGet, model.OpSearch).
		respond(model.OpGet, remoteCopy("+1 212 555 0100"))
	env := newEnv(t, fake)
	env.orch.access = NewPlatformAccess(env.registry.Capabilities(), env.creds, 1, env.logger)
	synced := env.saveBusiness(t, royalSpa())
	env.run(t, synced.ID, "fb")
	pending := env.saveBusiness(t, royalSpa())
	ctx := context.Background()

	var inflight, peak int32
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.onCall(func(ctx context.Context, op model.Operation, req *model.ListingRequest) *model.PlatformResponse {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		if op == model.OpCreate {
			close(entered)
			<-release
		}
		return nil
	})

	batchID, err := env.orch.Submit(ctx, pending.ID, []string{"fb"})
	require.NoError(t, err)
	<-entered

	var finished int32
	var wg sync.WaitGroup
	calls := []func() error{
		func() error {
			_, err := env.orch.Invoke(ctx, synced.ID, "fb", model.OpGet)
			return err
		},
		func() error {
			_, err := env.orch.Invoke(ctx, synced.ID, "fb", model.OpSearch)
			return err
		},
		func() error {
			_, err := newDrift(env).Check(ctx, synced.ID, "fb")
			return err
		},
	}
	for _, call := range calls {
		wg.Add(1)
		go func(call func() error) {
			defer wg.Done()
			assert.NoError(t, call())
			atomic.AddInt32(&finished, 1)
		}(call)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&finished), "calls queue behind the in-flight create")

	close(release)
	wg.Wait()
	report, err := env.orch.Wait(ctx, batchID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&finished))
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, 2, fake.callCount(model.OpGet))
	assert.Equal(t, 1, fake.callCount(model.OpSearch))
}

func TestPlatformAccess_DoReturnsWithoutCallingWhenContextEnds(t *testing.T) {
	env := newEnv(t, newFake("fb", model.OpCreate))
	access := NewPlatformAccess(env.registry.Capabilities(), nil, 1, env.logger)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = access.Do(context.Background(), "fb", func() {
			close(held)
			<-done
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := access.Do(ctx, "fb", func() { called = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
	close(done)
}

func TestPlatformAccess_DeniedCredentialsFailWithoutCall(t *testing.T) {
	fake := newFake("fb", model.OpCreate)
	fake.authDenied = true
	env := newEnv(t, fake)
	env.creds.Put(fbCredentials("revoked"))
	rec := env.saveBusiness(t, royalSpa())

	report := env.run(t, rec.ID, "fb")

	res, ok := report.Result("fb")
	require.True(t, ok)
	assert.Equal(t, model.ItemFailed, res.Outcome)
	assert.Equal(t, model.ReasonAuthentication, res.Error)
	assert.Zero(t, res.Attempts)
	assert.Zero(t, fake.totalCalls())
	assert.Equal(t, 1, fake.authCount())
	assert.Empty(t, env.sleeper.recorded())

	m := env.mapping(t, rec.ID, "fb")
	assert.Equal(t, model.SyncFailed, m.Status)
	assert.Equal(t, model.ReasonAuthentication, m.Error())
	assert.Equal(t, []string{"unsynced->pending", "pending->failed"}, env.path(t, rec.ID, "fb"))
}

func TestPlatformAccess_CredentialsCheckedOncePerVersion(t *testing.T) {
	fake := newFake("fb", model.OpCreate, model.OpUpdate, model.OpGet).
		respond(model.OpGet, remoteCopy("+1 212 555 0100"))
	env := newEnv(t, fake)
	env.creds.Put(fbCredentials("tok-1"))
	rec := env.saveBusiness(t, royalSpa())
	ctx := context.Background()

	env.run(t, rec.ID, "fb")
	_, err := env.orch.Invoke(ctx, rec.ID, "fb", model.OpGet)
	require.NoError(t, err)
	_, err = newDrift(env).Check(ctx, rec.ID, "fb")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.authCount(), "verified credentials are reused")
	assert.Equal(t, "tok-1", fake.lastRequest().Credentials.Get(model.CredToken))

	// 凭证替换后重新校验；未通过时只读调用与漂移检测都不会访问平台
	env.creds.Put(fbCredentials("tok-2"))
	fake.mu.Lock()
	fake.authDenied = true
	fake.mu.Unlock()
	gets := fake.callCount(model.OpGet)

	_, err = env.orch.Invoke(ctx, rec.ID, "fb", model.OpGet)
	assert.ErrorIs(t, err, model.ErrAuthentication)
	_, err = newDrift(env).Check(ctx, rec.ID, "fb")
	assert.ErrorIs(t, err, model.ErrAuthentication)
	assert.Equal(t, gets, fake.callCount(model.OpGet))
	assert.Equal(t, 3, fake.authCount())
	assert.Equal(t, model.SyncSynced, env.mapping(t, rec.ID, "fb").Status)
}
