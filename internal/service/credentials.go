package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Refresher 凭证过期后换取新凭证；不负责 OAuth 授权流程
type Refresher interface {
	Refresh(ctx context.Context, current *model.AuthCredentials) (*model.AuthCredentials, error)
}

// CredentialStore 按 租户+平台 保存预先认证好的凭证
// 并发读共享同一份只读凭证，过期刷新按键 single-flight
type CredentialStore struct {
	mu            sync.RWMutex
	creds         map[string]*model.AuthCredentials
	group         singleflight.Group
	refresher     Refresher
	defaultTenant string
	now           func() time.Time
	logger        *logrus.Logger
}

func NewCredentialStore(refresher Refresher, defaultTenant string, logger *logrus.Logger) *CredentialStore {
	return &CredentialStore{
		creds:         make(map[string]*model.AuthCredentials),
		refresher:     refresher,
		defaultTenant: defaultTenant,
		now:           time.Now,
		logger:        logger,
	}
}

func credentialKey(tenantID, platform string) string {
	return tenantID + "/" + platform
}

// Put 覆盖保存；存入的是副本
func (s *CredentialStore) Put(c *model.AuthCredentials) {
	if c == nil {
		return
	}
	cp := c.Clone()
	if cp.TenantID == "" {
		cp.TenantID = s.defaultTenant
	}
	s.mu.Lock()
	s.creds[credentialKey(cp.TenantID, cp.Platform)] = cp
	s.mu.Unlock()
}

// CredentialsFromConfig 配置文件中的 auth_* 字段转成凭证
func CredentialsFromConfig(platform string, p *config.PlatformConfig) *model.AuthCredentials {
	values := make(map[string]string)
	if p.AuthToken != "" {
		values[model.CredToken] = p.AuthToken
	}
	if p.AuthKey != "" {
		values[model.CredAPIKey] = p.AuthKey
	}
	if p.AuthSecret != "" {
		values[model.CredSecret] = p.AuthSecret
		values[model.CredPrivateKey] = p.AuthSecret
	}
	return &model.AuthCredentials{Platform: platform, Credentials: values}
}

// LoadFromConfig 配置中的凭证归属 sync.default_tenant
func (s *CredentialStore) LoadFromConfig(cfg *config.Config) int {
	loaded := 0
	for name, p := range cfg.Platforms {
		c := CredentialsFromConfig(name, &p)
		if c.IsEmpty() {
			continue
		}
		c.TenantID = s.defaultTenant
		s.Put(c)
		loaded++
	}
	s.logger.WithField("count", loaded).Info("平台凭证加载完成")
	return loaded
}

func (s *CredentialStore) lookup(tenantID, platform string) *model.AuthCredentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.creds[credentialKey(tenantID, platform)]; ok {
		return c
	}
	if tenantID != s.defaultTenant {
		return s.creds[credentialKey(s.defaultTenant, platform)]
	}
	return nil
}

// Get 返回可共享的只读凭证；没有凭证时返回 nil（由适配器决定失败或模拟）
// 过期时同一键只会有一个刷新在途，其他调用方等待同一结果
func (s *CredentialStore) Get(ctx context.Context, tenantID, platform string) (*model.AuthCredentials, error) {
	if tenantID == "" {
		tenantID = s.defaultTenant
	}
	c := s.lookup(tenantID, platform)
	if c == nil || !c.IsExpired(s.now()) {
		return c, nil
	}
	if s.refresher == nil {
		return nil, fmt.Errorf("%w: %s 凭证已过期", model.ErrAuthentication, platform)
	}

	key := credentialKey(c.TenantID, platform)
	v, err, shared := s.group.Do(key, func() (any, error) {
		// 排队期间可能已被其他调用方刷新
		if latest := s.lookup(c.TenantID, platform); latest != nil && !latest.IsExpired(s.now()) {
			return latest, nil
		}
		fresh, err := s.refresher.Refresh(context.WithoutCancel(ctx), c.Clone())
		if err != nil {
			return nil, err
		}
		if fresh == nil || fresh.IsEmpty() {
			return nil, errors.New("刷新结果为空")
		}
		fresh.Platform = platform
		fresh.TenantID = c.TenantID
		s.Put(fresh)
		return s.lookup(c.TenantID, platform), nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"tenant":   c.TenantID,
			"platform": platform,
		}).Warn("凭证刷新失败")
		return nil, fmt.Errorf("%w: 刷新%s凭证失败: %v", model.ErrAuthentication, platform, err)
	}
	s.logger.WithFields(logrus.Fields{
		"tenant":   c.TenantID,
		"platform": platform,
		"shared":   shared,
	}).Debug("凭证已刷新")
	return v.(*model.AuthCredentials), nil
}

// EnvRefresher 从 .env / 环境变量重新读取轮换后的密钥
type EnvRefresher struct {
	Files []string
	// TTL 刷新后凭证的有效期，0 表示不过期
	TTL time.Duration
	now func() time.Time
}

func NewEnvRefresher(ttl time.Duration, files ...string) *EnvRefresher {
	return &EnvRefresher{Files: files, TTL: ttl, now: time.Now}
}

func (r *EnvRefresher) Refresh(_ context.Context, current *model.AuthCredentials) (*model.AuthCredentials, error) {
	if err := godotenv.Overload(r.Files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("重新加载 .env 失败: %w", err)
	}
	var p config.PlatformConfig
	config.ApplyPlatformEnv(current.Platform, &p)
	fresh := CredentialsFromConfig(current.Platform, &p)
	if fresh.IsEmpty() {
		return nil, fmt.Errorf("环境变量中没有 %s 的凭证", config.EnvPrefix(current.Platform))
	}
	fresh.TenantID = current.TenantID
	if r.TTL > 0 {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		exp := now().Add(r.TTL)
		fresh.ExpiresAt = &exp
	}
	return fresh, nil
}
