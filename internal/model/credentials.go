package model

import "time"

// AuthCredentials 预先认证好的平台凭证；同一租户+平台的并发操作共享只读
type AuthCredentials struct {
	Platform     string            `json:"platform"`
	TenantID     string            `json:"tenant_id,omitempty"`
	Credentials  map[string]string `json:"credentials"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
}

// 常用凭证键
const (
	CredToken      = "token"
	CredAPIKey     = "api_key"
	CredSecret     = "secret"
	CredPrivateKey = "private_key"
)

// Get 读取凭证值
func (c *AuthCredentials) Get(key string) string {
	if c == nil || c.Credentials == nil {
		return ""
	}
	return c.Credentials[key]
}

// IsEmpty 没有任何凭证值
func (c *AuthCredentials) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, v := range c.Credentials {
		if v != "" {
			return false
		}
	}
	return true
}

// IsExpired 以 now 判断是否过期；未设置过期时间视为永不过期
func (c *AuthCredentials) IsExpired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Clone 返回副本
func (c *AuthCredentials) Clone() *AuthCredentials {
	if c == nil {
		return nil
	}
	out := *c
	out.Credentials = make(map[string]string, len(c.Credentials))
	for k, v := range c.Credentials {
		out.Credentials[k] = v
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
