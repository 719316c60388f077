package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/metrics"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
)

// adapterCall 操作到适配器方法的调度表
func adapterCall(a interfaces.PlatformAdapter, op model.Operation) model.AdapterCall {
	switch op {
	case model.OpCreate:
		return a.CreateListing
	case model.OpUpdate:
		return a.UpdateListing
	case model.OpDelete:
		return a.DeleteListing
	case model.OpGet:
		return a.GetListing
	case model.OpSearch:
		return a.SearchListings
	case model.OpClaim:
		return a.ClaimListing
	case model.OpVerify:
		return a.VerifyListing
	case model.OpReviews:
		return a.GetReviews
	case model.OpAnalytics:
		return a.GetAnalytics
	case model.OpPhotos:
		return a.UploadPhotos
	}
	return nil
}

// Dispatcher 调用适配器前先查能力注册表，未声明的操作不会触达适配器
type Dispatcher struct {
	caps    *adapter.CapabilityRegistry
	metrics *metrics.SyncMetrics
	logger  *logrus.Logger
}

func NewDispatcher(caps *adapter.CapabilityRegistry, m *metrics.SyncMetrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{caps: caps, metrics: m, logger: logger}
}

// Dispatch 永远返回非 nil 响应；适配器 panic 会被转换为 unexpected_error
func (d *Dispatcher) Dispatch(ctx context.Context, a interfaces.PlatformAdapter, op model.Operation, req *model.ListingRequest) (resp *model.PlatformResponse) {
	platform := a.Name()
	if !d.caps.CanPerform(platform, op) {
		d.metrics.ObserveCall(platform, string(op), model.ReasonUnsupportedOperation, 0)
		return model.Unsupported(op)
	}
	call := adapterCall(a, op)
	if call == nil {
		return model.Unsupported(op)
	}

	// 适配器只能拿到副本
	in := *req
	in.Record = req.Record.Clone()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"platform":  platform,
				"operation": op,
				"panic":     fmt.Sprint(r),
			}).Errorf("适配器异常: %s", debug.Stack())
			resp = model.Fail(op, model.ReasonUnexpected, 0)
		}
		d.metrics.ObserveCall(platform, string(op), resp.Error, time.Since(start))
	}()

	resp = call(ctx, &in)
	if resp == nil {
		d.logger.WithFields(logrus.Fields{
			"platform":  platform,
			"operation": op,
		}).Error("适配器返回空响应")
		return model.Fail(op, model.ReasonUnexpected, 0)
	}
	if resp.Operation == "" {
		resp.Operation = op
	}
	return resp
}
