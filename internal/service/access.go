package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// platformGate 单平台并发上限 + 每分钟/每日节流
type platformGate struct {
	sem    *semaphore.Weighted
	minute *rate.Limiter
	day    *rate.Limiter
}

// PlatformAccess 所有对平台的调用都从这里走：取凭证、校验凭证、占并发槽位、等节流
// 编排器与漂移检测共用一份，保证同一平台的在途请求不超过上限
type PlatformAccess struct {
	caps           *adapter.CapabilityRegistry
	creds          *CredentialStore
	maxConcurrency int
	logger         *logrus.Logger

	mu    sync.Mutex
	gates map[string]*platformGate
	// verified 租户+平台 -> 已通过 Authenticate 的凭证；凭证刷新后指针变化即重新校验
	verified  map[string]*model.AuthCredentials
	authGroup singleflight.Group
}

func NewPlatformAccess(caps *adapter.CapabilityRegistry, creds *CredentialStore, maxConcurrency int, logger *logrus.Logger) *PlatformAccess {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &PlatformAccess{
		caps:           caps,
		creds:          creds,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		gates:          make(map[string]*platformGate),
		verified:       make(map[string]*model.AuthCredentials),
	}
}

// gate 懒创建平台闸门：并发 = min(每分钟限额, max_concurrency)，至少 1
func (p *PlatformAccess) gate(platform string) *platformGate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gates[platform]; ok {
		return g
	}
	caps, _ := p.caps.Lookup(platform)
	size := p.maxConcurrency
	if caps.RateLimitPerMinute > 0 && caps.RateLimitPerMinute < size {
		size = caps.RateLimitPerMinute
	}
	g := &platformGate{
		sem:    semaphore.NewWeighted(int64(size)),
		minute: rate.NewLimiter(rate.Inf, 0),
		day:    rate.NewLimiter(rate.Inf, 0),
	}
	if caps.RateLimitPerMinute > 0 {
		g.minute = rate.NewLimiter(rate.Limit(float64(caps.RateLimitPerMinute)/60), size)
	}
	if caps.RateLimitPerDay > 0 {
		g.day = rate.NewLimiter(rate.Limit(float64(caps.RateLimitPerDay)/86400), caps.RateLimitPerDay)
	}
	p.gates[platform] = g
	return g
}

// Do 占用一个并发槽位并通过节流后执行 call；只在 ctx 结束时返回错误，此时 call 不会执行
func (p *PlatformAccess) Do(ctx context.Context, platform string, call func()) error {
	g := p.gate(platform)
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	if err := g.minute.Wait(ctx); err != nil {
		return err
	}
	if err := g.day.Wait(ctx); err != nil {
		return err
	}
	call()
	return nil
}

// Credentials 取租户在该平台的凭证；首次使用（或刷新后）先经 Authenticate 校验，不重试
// 没有凭证时返回 nil，由适配器决定失败或模拟
func (p *PlatformAccess) Credentials(ctx context.Context, a interfaces.PlatformAdapter, tenantID string) (*model.AuthCredentials, error) {
	if p.creds == nil {
		return nil, nil
	}
	platform := a.Name()
	creds, err := p.creds.Get(ctx, tenantID, platform)
	if err != nil || creds.IsEmpty() {
		return creds, err
	}

	key := credentialKey(creds.TenantID, platform)
	p.mu.Lock()
	ok := p.verified[key] == creds
	p.mu.Unlock()
	if ok {
		return creds, nil
	}

	v, err, _ := p.authGroup.Do(key, func() (any, error) {
		var passed bool
		if err := p.Do(ctx, platform, func() { passed = a.Authenticate(ctx, creds) }); err != nil {
			return false, err
		}
		return passed, nil
	})
	if err != nil {
		return nil, err
	}
	if !v.(bool) {
		p.logger.WithFields(logrus.Fields{
			"tenant":   creds.TenantID,
			"platform": platform,
		}).Warn("平台凭证校验未通过")
		return nil, fmt.Errorf("%w: %s 凭证校验未通过", model.ErrAuthentication, platform)
	}
	p.mu.Lock()
	p.verified[key] = creds
	p.mu.Unlock()
	return creds, nil
}
