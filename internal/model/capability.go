package model

import (
	"sort"
	"strings"
)

// Operation 平台操作
type Operation string

const (
	OpCreate    Operation = "create"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpGet       Operation = "get"
	OpSearch    Operation = "search"
	OpClaim     Operation = "claim"
	OpVerify    Operation = "verify"
	OpReviews   Operation = "reviews"
	OpPhotos    Operation = "photos"
	OpAnalytics Operation = "analytics"
)

// AllOperations 全部已知操作
var AllOperations = []Operation{
	OpCreate, OpUpdate, OpDelete, OpGet, OpSearch,
	OpClaim, OpVerify, OpReviews, OpPhotos, OpAnalytics,
}

func (o Operation) IsValid() bool {
	for _, op := range AllOperations {
		if op == o {
			return true
		}
	}
	return false
}

// IsWrite 会改变远端状态的操作
func (o Operation) IsWrite() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// PlatformCapabilities 平台能力声明，注册后不可变
type PlatformCapabilities struct {
	Name                 string      `json:"name"`
	Operations           []Operation `json:"operations"`
	ReadOnly             bool        `json:"read_only"`
	RequiresVerification bool        `json:"requires_verification"`
	RateLimitPerMinute   int         `json:"rate_limit_per_minute"`
	RateLimitPerDay      int         `json:"rate_limit_per_day"`
	// RequiredFields 平台要求必须有值的规范字段
	RequiredFields []string `json:"required_fields,omitempty"`
	// SupportedFields 平台可以完整往返的规范字段
	SupportedFields []string `json:"supported_fields,omitempty"`
}

// Supports 是否声明了该操作
func (c PlatformCapabilities) Supports(op Operation) bool {
	if c.ReadOnly && op.IsWrite() {
		return false
	}
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Clone 返回独立副本，外部无法通过切片修改已注册的能力
func (c PlatformCapabilities) Clone() PlatformCapabilities {
	out := c
	out.Operations = append([]Operation(nil), c.Operations...)
	out.RequiredFields = append([]string(nil), c.RequiredFields...)
	out.SupportedFields = append([]string(nil), c.SupportedFields...)
	return out
}

// MissingFields 返回记录中缺失的必填字段
func (c PlatformCapabilities) MissingFields(r *BusinessRecord) []string {
	var missing []string
	for _, f := range c.RequiredFields {
		if _, ok := r.FieldValue(f); !ok {
			missing = append(missing, f)
		}
	}
	return missing
}

// PriorityTier 平台优先级
type PriorityTier string

const (
	PriorityCritical PriorityTier = "critical"
	PriorityHigh     PriorityTier = "high"
	PriorityMedium   PriorityTier = "medium"
	PriorityLow      PriorityTier = "low"
)

// Rank 数值越小优先级越高，未知等级排在最后
func (p PriorityTier) Rank() int {
	switch PriorityTier(strings.ToLower(string(p))) {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Bonus 优先级加分
func (p PriorityTier) Bonus() float64 {
	switch PriorityTier(strings.ToLower(string(p))) {
	case PriorityCritical:
		return 0.3
	case PriorityHigh:
		return 0.2
	case PriorityMedium:
		return 0.1
	default:
		return 0
	}
}

// PlatformProfile 相关性打分用的平台画像（来自配置）
type PlatformProfile struct {
	Name       string       `json:"name"`
	Priority   PriorityTier `json:"priority"`
	Industries []string     `json:"industries,omitempty"`
	Locations  []string     `json:"locations,omitempty"`
}

// SortedOperations 排序后的操作列表，便于输出
func SortedOperations(ops []Operation) []Operation {
	out := append([]Operation(nil), ops...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
