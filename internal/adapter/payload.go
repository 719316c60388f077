package adapter

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// 平台报文可能来自 JSON 解码（数字为 float64），也可能直接来自 FromCanonical（int / string），
// 这里的读取函数对两种来源一视同仁

// Str 读取字符串字段
func Str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// Float 读取数值字段
func Float(m map[string]any, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// FloatPtr 数值字段转指针，缺失返回 nil
func FloatPtr(m map[string]any, key string) *float64 {
	f, ok := Float(m, key)
	if !ok {
		return nil
	}
	return &f
}

// Int 读取整数字段
func Int(m map[string]any, key string) int {
	f, _ := Float(m, key)
	return int(f)
}

// Decimal 读取评分等需要精确往返的数值
func Decimal(m map[string]any, key string) (decimal.Decimal, bool) {
	if m == nil {
		return decimal.Zero, false
	}
	switch v := m[key].(type) {
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	}
	f, ok := Float(m, key)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// Bool 读取布尔字段
func Bool(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// Map 读取嵌套对象
func Map(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]any)
	return sub
}

// Maps 读取对象数组，兼容 []map[string]any 与 []any
func Maps(m map[string]any, key string) []map[string]any {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if sub, ok := item.(map[string]any); ok {
				out = append(out, sub)
			}
		}
		return out
	}
	return nil
}

// Strings 读取字符串数组，兼容 []string 与 []any
func Strings(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// PutStr 非空才写入
func PutStr(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// FirstID 搜索结果中第一个候选的 ID
func FirstID(data map[string]any, listKey, idKey string) string {
	items := Maps(data, listKey)
	if len(items) == 0 {
		return ""
	}
	return Str(items[0], idKey)
}
