package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

// CapabilityRegistry 平台能力注册表
// 启动阶段注册，Freeze 之后只读；调度前由它判断操作是否被声明
type CapabilityRegistry struct {
	mu     sync.RWMutex
	caps   map[string]model.PlatformCapabilities
	frozen bool
}

func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{caps: make(map[string]model.PlatformCapabilities)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register 注册平台能力，重名返回 ErrAlreadyRegistered，冻结后返回 ErrRegistryFrozen
func (r *CapabilityRegistry) Register(name string, caps model.PlatformCapabilities) error {
	key := normalizeName(name)
	if key == "" {
		return &model.ValidationError{Field: "name", Message: "平台名不能为空"}
	}
	for _, op := range caps.Operations {
		if !op.IsValid() {
			return &model.ValidationError{Field: "operations", Message: fmt.Sprintf("未知操作: %s", op)}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: %s", model.ErrRegistryFrozen, key)
	}
	if _, ok := r.caps[key]; ok {
		return fmt.Errorf("%w: %s", model.ErrAlreadyRegistered, key)
	}
	stored := caps.Clone()
	stored.Name = key
	r.caps[key] = stored
	return nil
}

// Lookup 查询平台能力，未注册返回 *model.NotFoundError
func (r *CapabilityRegistry) Lookup(name string) (model.PlatformCapabilities, error) {
	key := normalizeName(name)
	r.mu.RLock()
	caps, ok := r.caps[key]
	r.mu.RUnlock()
	if !ok {
		return model.PlatformCapabilities{}, &model.NotFoundError{Kind: "platform", Key: key}
	}
	return caps.Clone(), nil
}

// CanPerform 平台是否声明了该操作；未注册平台一律 false
func (r *CapabilityRegistry) CanPerform(name string, op model.Operation) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.caps[normalizeName(name)]
	return ok && caps.Supports(op)
}

// IsWriteCapable 非只读且至少声明了 create/update/delete 之一
func (r *CapabilityRegistry) IsWriteCapable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.caps[normalizeName(name)]
	if !ok || caps.ReadOnly {
		return false
	}
	return caps.Supports(model.OpCreate) || caps.Supports(model.OpUpdate) || caps.Supports(model.OpDelete)
}

// Freeze 结束注册阶段
func (r *CapabilityRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Names 已注册平台，按名称排序
func (r *CapabilityRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
