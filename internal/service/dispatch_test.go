package service

import (
	"context"
	"testing"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/metrics"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, adapters ...*fakeAdapter) (*Dispatcher, *prometheus.Registry) {
	t.Helper()
	caps := adapter.NewCapabilityRegistry()
	for _, a := range adapters {
		require.NoError(t, caps.Register(a.Name(), a.Capabilities()))
	}
	caps.Freeze()
	reg := prometheus.NewRegistry()
	return NewDispatcher(caps, metrics.New(reg), quietLogger()), reg
}

func TestDispatcher_UndeclaredOperationNeverReachesAdapter(t *testing.T) {
	fake := newFake("fb", model.OpCreate)
	d, reg := newDispatcher(t, fake)
	rec := royalSpa()

	for _, op := range []model.Operation{model.OpUpdate, model.OpDelete, model.OpVerify, model.OpPhotos} {
		resp := d.Dispatch(context.Background(), fake, op, &model.ListingRequest{Record: &rec})
		assert.False(t, resp.Success, op)
		assert.Equal(t, model.ReasonUnsupportedOperation, resp.Error, op)
		assert.Equal(t, op, resp.Operation)
	}
	assert.Zero(t, fake.totalCalls())

	n, err := testutil.GatherAndCount(reg, "listing_sync_adapter_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestDispatcher_ReadOnlyPlatformRejectsWrites(t *testing.T) {
	fake := newFake("maps", model.OpCreate, model.OpGet)
	fake.caps.ReadOnly = true
	d, _ := newDispatcher(t, fake)
	rec := royalSpa()

	resp := d.Dispatch(context.Background(), fake, model.OpCreate, &model.ListingRequest{Record: &rec})
	assert.Equal(t, model.ReasonUnsupportedOperation, resp.Error)
	resp = d.Dispatch(context.Background(), fake, model.OpGet, &model.ListingRequest{Record: &rec, PlatformID: "p1"})
	assert.True(t, resp.Success)
	assert.Equal(t, 1, fake.totalCalls())
}

func TestDispatcher_AdapterSeesACopy(t *testing.T) {
	fake := newFake("fb", model.OpCreate).onCall(func(_ context.Context, _ model.Operation, req *model.ListingRequest) *model.PlatformResponse {
		req.Record.Name = "mutated"
		req.Record.Categories.Secondary[0] = "mutated"
		return nil
	})
	d, _ := newDispatcher(t, fake)
	rec := royalSpa()

	resp := d.Dispatch(context.Background(), fake, model.OpCreate, &model.ListingRequest{Record: &rec})
	require.True(t, resp.Success)
	assert.Equal(t, "Royal Spa", rec.Name)
	assert.Equal(t, "spa", rec.Categories.Secondary[0])
}

func TestDispatcher_RecoversPanicAndNilResponse(t *testing.T) {
	panicky := newFake("boom", model.OpCreate).onCall(func(context.Context, model.Operation, *model.ListingRequest) *model.PlatformResponse {
		panic("adapter bug")
	})
	empty := &nilAdapter{fakeAdapter: newFake("empty", model.OpGet)}
	d, _ := newDispatcher(t, panicky, empty.fakeAdapter)
	rec := royalSpa()

	resp := d.Dispatch(context.Background(), panicky, model.OpCreate, &model.ListingRequest{Record: &rec})
	require.NotNil(t, resp)
	assert.Equal(t, model.ReasonUnexpected, resp.Error)
	assert.Equal(t, model.OpCreate, resp.Operation)

	resp = d.Dispatch(context.Background(), empty, model.OpGet, &model.ListingRequest{Record: &rec})
	require.NotNil(t, resp)
	assert.Equal(t, model.ReasonUnexpected, resp.Error)
}

// nilAdapter 违反约定返回 nil 的适配器
type nilAdapter struct {
	*fakeAdapter
}

func (n *nilAdapter) GetListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return nil
}

func TestAdapterCall_CoversEveryOperation(t *testing.T) {
	fake := newFake("fb")
	for _, op := range model.AllOperations {
		assert.NotNil(t, adapterCall(fake, op), op)
	}
	assert.Nil(t, adapterCall(fake, "bulk"))
}
