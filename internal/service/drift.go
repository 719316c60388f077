package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/metrics"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
)

const (
	reasonTTLExpired  = "ttl_expired"
	reasonRemoteDrift = "remote_drift"
	// driftScanLimit 单轮扫描上限
	driftScanLimit = 500
)

// 评分由平台自己聚合，不参与漂移比较
var driftIgnored = map[string]bool{
	model.FieldRatingValue: true,
	model.FieldRatingCount: true,
}

// DriftDetector synced 映射的过期与远端内容漂移检测，命中则标记 stale
type DriftDetector struct {
	registry   *adapter.PlatformRegistry
	dispatcher *Dispatcher
	mappings   interfaces.MappingRepository
	businesses interfaces.BusinessRepository
	access     *PlatformAccess
	metrics    *metrics.SyncMetrics
	logger     *logrus.Logger
	now        func() time.Time
}

func NewDriftDetector(
	registry *adapter.PlatformRegistry,
	mappings interfaces.MappingRepository,
	businesses interfaces.BusinessRepository,
	access *PlatformAccess,
	m *metrics.SyncMetrics,
	logger *logrus.Logger,
) *DriftDetector {
	return &DriftDetector{
		registry:   registry,
		dispatcher: NewDispatcher(registry.Capabilities(), m, logger),
		mappings:   mappings,
		businesses: businesses,
		access:     access,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// MarkExpired last_success_at 早于 now-ttl 的 synced 映射标记为 stale，返回标记数量
func (d *DriftDetector) MarkExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	list, err := d.mappings.ListSyncedBefore(ctx, d.now().Add(-ttl), driftScanLimit)
	if err != nil {
		return 0, fmt.Errorf("查询过期映射失败: %w", err)
	}
	marked := 0
	for _, m := range list {
		if err := d.mappings.Transition(ctx, m, model.SyncStale, reasonTTLExpired, nil); err != nil {
			// 并发修改过的映射留到下一轮
			d.logger.WithError(err).WithFields(logrus.Fields{
				"business_id": m.BusinessID,
				"platform":    m.PlatformName,
			}).Warn("标记过期映射失败")
			continue
		}
		d.metrics.ObserveTransition(string(model.SyncSynced), string(model.SyncStale))
		marked++
	}
	d.metrics.ObserveStale(marked)
	if marked > 0 {
		d.logger.WithField("count", marked).Info("过期映射已标记为 stale")
	}
	return marked, nil
}

// Check 拉取远端商户页与规范档案比较平台支持的字段；不一致则标记 stale 并返回差异字段
func (d *DriftDetector) Check(ctx context.Context, businessID, platform string) ([]string, error) {
	m, err := d.mappings.Get(ctx, businessID, platform)
	if err != nil {
		return nil, err
	}
	if m.Status != model.SyncSynced || m.RemoteID() == "" {
		return nil, nil
	}
	a, err := d.registry.GetAdapter(platform)
	if err != nil {
		return nil, err
	}
	caps, err := d.registry.Capabilities().Lookup(platform)
	if err != nil {
		return nil, err
	}
	if !caps.Supports(model.OpGet) {
		return nil, fmt.Errorf("%w: %s 不支持 get", model.ErrUnsupportedOperation, platform)
	}
	record, err := d.businesses.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}
	creds, err := d.access.Credentials(ctx, a, record.TenantID)
	if err != nil {
		return nil, err
	}

	var resp *model.PlatformResponse
	err = d.access.Do(ctx, platform, func() {
		resp = d.dispatcher.Dispatch(ctx, a, model.OpGet, &model.ListingRequest{
			Credentials: creds,
			Record:      record,
			PlatformID:  m.RemoteID(),
		})
	})
	if err != nil {
		return nil, err
	}
	var diff []string
	switch {
	case resp.Success && resp.Simulated:
		return nil, nil
	case resp.Success:
		remote, err := a.ToCanonical(resp.Data)
		if err != nil {
			return nil, fmt.Errorf("解析%s远端商户页失败: %w", platform, err)
		}
		for _, f := range record.DiffFields(remote, caps.SupportedFields) {
			if !driftIgnored[f] {
				diff = append(diff, f)
			}
		}
	case resp.Error == model.ReasonNotFound:
		diff = []string{"listing"}
	default:
		return nil, fmt.Errorf("拉取%s远端商户页失败: %w", platform, model.ReasonError(resp.Error))
	}
	if len(diff) == 0 {
		return nil, nil
	}

	if err := d.mappings.Transition(ctx, m, model.SyncStale, reasonRemoteDrift, nil); err != nil {
		return diff, err
	}
	d.metrics.ObserveTransition(string(model.SyncSynced), string(model.SyncStale))
	d.metrics.ObserveStale(1)
	d.logger.WithFields(logrus.Fields{
		"business_id": businessID,
		"platform":    platform,
		"fields":      diff,
	}).Info("远端内容与规范档案不一致，标记为 stale")
	return diff, nil
}

// RunOnce 一轮扫描：先按 TTL 标记，再逐个比对仍为 synced 的映射
func (d *DriftDetector) RunOnce(ctx context.Context, ttl time.Duration) error {
	if _, err := d.MarkExpired(ctx, ttl); err != nil {
		return err
	}
	synced, err := d.mappings.ListByStatus(ctx, model.SyncSynced, driftScanLimit)
	if err != nil {
		return fmt.Errorf("查询 synced 映射失败: %w", err)
	}
	for _, m := range synced {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.registry.Capabilities().CanPerform(m.PlatformName, model.OpGet) {
			continue
		}
		if _, err := d.Check(ctx, m.BusinessID, m.PlatformName); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"business_id": m.BusinessID,
				"platform":    m.PlatformName,
			}).Warn("漂移检测失败，跳过")
		}
	}
	return nil
}

// Run 按 interval 周期扫描直到 ctx 结束；单轮失败不退出
func (d *DriftDetector) Run(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	d.logger.WithField("interval", interval.String()).Info("漂移检测已启动")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx, ttl); err != nil {
				d.logger.WithError(err).Warn("漂移检测本轮失败")
			}
		}
	}
}
