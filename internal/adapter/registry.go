package adapter

import (
	"fmt"
	"sort"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
)

// Factory 平台适配器工厂函数签名
// 入参：平台名（注册表主键）、平台配置、日志实例
type Factory func(name string, cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter

// PlatformRegistry 适配器实例 + 能力注册表 + 相关性画像
type PlatformRegistry struct {
	logger   *logrus.Logger
	caps     *CapabilityRegistry
	adapters map[string]interfaces.PlatformAdapter
	profiles map[string]model.PlatformProfile
}

// NewRegistry 空注册表，测试或手工装配时使用；装配完成后调用 Freeze
func NewRegistry(logger *logrus.Logger) *PlatformRegistry {
	return &PlatformRegistry{
		logger:   logger,
		caps:     NewCapabilityRegistry(),
		adapters: make(map[string]interfaces.PlatformAdapter),
		profiles: make(map[string]model.PlatformProfile),
	}
}

// NewPlatformRegistry 按配置中的平台逐个调用工厂函数创建适配器，完成后冻结
func NewPlatformRegistry(cfg *config.Config, factories map[string]Factory, logger *logrus.Logger) (*PlatformRegistry, error) {
	r := NewRegistry(logger)

	names := make([]string, 0, len(cfg.Platforms))
	for name := range cfg.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cfg.IsEnabled(name) {
			r.logger.WithField("platform", name).Info("平台未启用，跳过")
			continue
		}
		platformCfg := cfg.Platforms[name]
		kind := platformCfg.Adapter
		if kind == "" {
			kind = name
		}

		factory, ok := factories[kind]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"platform": name,
				"adapter":  kind,
			}).Error("未找到对应的适配器工厂函数")
			continue
		}
		adapterIns := factory(name, &platformCfg, logger)
		if adapterIns == nil {
			r.logger.WithField("platform", name).Error("工厂函数返回nil适配器实例")
			continue
		}
		if adapterIns.Name() != name {
			return nil, fmt.Errorf("适配器名称与配置不匹配: config=%s adapter=%s", name, adapterIns.Name())
		}

		profile := model.PlatformProfile{
			Name:       name,
			Priority:   model.PriorityTier(platformCfg.Priority),
			Industries: platformCfg.Industries,
			Locations:  platformCfg.Locations,
		}
		if err := r.Add(adapterIns, profile); err != nil {
			return nil, err
		}
	}

	r.Freeze()
	r.logger.WithField("platforms", r.ListRegisteredPlatforms()).Info("适配器注册完成")
	return r, nil
}

// Add 注册一个适配器及其画像
func (r *PlatformRegistry) Add(adapterIns interfaces.PlatformAdapter, profile model.PlatformProfile) error {
	name := normalizeName(adapterIns.Name())
	if err := r.caps.Register(name, adapterIns.Capabilities()); err != nil {
		return fmt.Errorf("注册平台%s失败: %w", name, err)
	}
	profile.Name = name
	r.adapters[name] = adapterIns
	r.profiles[name] = profile
	r.logger.WithFields(logrus.Fields{
		"platform":  name,
		"read_only": adapterIns.Capabilities().ReadOnly,
	}).Info("适配器实例加入注册表")
	return nil
}

// Freeze 冻结能力注册表，之后 Add 会失败
func (r *PlatformRegistry) Freeze() {
	r.caps.Freeze()
}

// Capabilities 能力注册表
func (r *PlatformRegistry) Capabilities() *CapabilityRegistry {
	return r.caps
}

// GetAdapter 获取适配器实例
func (r *PlatformRegistry) GetAdapter(platform string) (interfaces.PlatformAdapter, error) {
	adapterIns, ok := r.adapters[normalizeName(platform)]
	if !ok {
		return nil, &model.NotFoundError{Kind: "platform", Key: platform}
	}
	return adapterIns, nil
}

// Profile 平台画像
func (r *PlatformRegistry) Profile(platform string) (model.PlatformProfile, bool) {
	p, ok := r.profiles[normalizeName(platform)]
	return p, ok
}

// Profiles 全部画像，按名称排序
func (r *PlatformRegistry) Profiles() []model.PlatformProfile {
	out := make([]model.PlatformProfile, 0, len(r.profiles))
	for _, name := range r.ListRegisteredPlatforms() {
		out = append(out, r.profiles[name])
	}
	return out
}

// ListRegisteredPlatforms 已注册的平台列表（有序）
func (r *PlatformRegistry) ListRegisteredPlatforms() []string {
	return r.caps.Names()
}

// GetPlatformCount 已注册的平台数量
func (r *PlatformRegistry) GetPlatformCount() int {
	return len(r.adapters)
}
