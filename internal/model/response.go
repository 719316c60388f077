package model

import (
	"context"
	"time"
)

// PlatformResponse 适配器向编排器回传结果的唯一通道，适配器不得跨边界返回 error 或 panic
type PlatformResponse struct {
	Success            bool           `json:"success"`
	Operation          Operation      `json:"operation"`
	Data               map[string]any `json:"data,omitempty"`
	Error              string         `json:"error,omitempty"`
	StatusCode         int            `json:"status_code,omitempty"`
	PlatformID         string         `json:"platform_id,omitempty"`
	RateLimitRemaining *int           `json:"rate_limit_remaining,omitempty"`
	RateLimitReset     *time.Time     `json:"rate_limit_reset,omitempty"`
	// Simulated 无真实凭证时适配器返回的模拟结果，必须与真实同步结果区分
	Simulated bool `json:"simulated,omitempty"`
}

// OK 构造成功响应
func OK(op Operation, platformID string, data map[string]any) *PlatformResponse {
	return &PlatformResponse{Success: true, Operation: op, PlatformID: platformID, Data: data}
}

// Fail 构造失败响应
func Fail(op Operation, reason string, statusCode int) *PlatformResponse {
	return &PlatformResponse{Operation: op, Error: reason, StatusCode: statusCode}
}

// Unsupported 平台未声明该操作
func Unsupported(op Operation) *PlatformResponse {
	return Fail(op, ReasonUnsupportedOperation, 0)
}

// Outcome 单次调用结果的分类，重试循环据此决策
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Classify 把响应归类为成功 / 可重试 / 致命；nil 响应视为未预期错误
func Classify(resp *PlatformResponse) (Outcome, string) {
	if resp == nil {
		return OutcomeFatal, ReasonUnexpected
	}
	if resp.Success {
		return OutcomeSuccess, ""
	}
	switch resp.Error {
	case ReasonRateLimited, ReasonNetworkError:
		return OutcomeRetryable, resp.Error
	case ReasonUnsupportedOperation, ReasonAuthentication, ReasonValidation, ReasonNotFound:
		return OutcomeFatal, resp.Error
	default:
		return OutcomeFatal, ReasonUnexpected
	}
}

// SearchQuery 搜索条件
type SearchQuery struct {
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// QueryFromRecord 由规范档案生成搜索条件（发现路径使用）
func QueryFromRecord(r *BusinessRecord) SearchQuery {
	q := SearchQuery{Name: r.Name, Phone: r.Contact.Phone, Category: r.Categories.Primary, Limit: 5}
	if r.Location != nil {
		q.City = r.Location.City
		q.Country = r.Location.Country
	}
	return q
}

// ListingRequest 适配器所有操作的统一入参
type ListingRequest struct {
	Credentials      *AuthCredentials
	Record           *BusinessRecord
	PlatformID       string
	Query            SearchQuery
	VerificationCode string
}

// AdapterCall 适配器操作的统一签名，调度表使用
type AdapterCall func(ctx context.Context, req *ListingRequest) *PlatformResponse
