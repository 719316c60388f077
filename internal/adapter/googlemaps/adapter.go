package googlemaps

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Name 默认注册名
const Name = "maps"

// Capabilities 地图平台只读：商户资料只能认领 + 验证，不能直接创建
var Capabilities = model.PlatformCapabilities{
	Operations: []model.Operation{
		model.OpGet, model.OpSearch, model.OpClaim, model.OpVerify, model.OpReviews,
	},
	ReadOnly:             true,
	RequiresVerification: true,
	RateLimitPerMinute:   600,
	RateLimitPerDay:      100000,
	RequiredFields:       []string{model.FieldName, model.FieldLocation},
	SupportedFields:      supportedFields,
}

type Adapter struct {
	adapter.Base
	adapter.ReadOnly
}

// New 工厂函数
func New(name string, cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter {
	return NewWithClient(name, cfg, nil, logger)
}

// NewWithClient 可注入 http.Client（测试用）
func NewWithClient(name string, cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(name, Capabilities, cfg, httpClient, logger)}
}

func headers(creds *model.AuthCredentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + creds.Get(model.CredToken)}
}

func (a *Adapter) Authenticate(ctx context.Context, creds *model.AuthCredentials) bool {
	if a.Simulating(creds) {
		return true
	}
	if creds.Get(model.CredToken) == "" {
		return false
	}
	resp := a.Client.Do(ctx, model.OpGet, httpclient.Call{Method: http.MethodGet, Path: "accounts", Headers: headers(creds)})
	return resp.Success
}

func (a *Adapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpGet, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpGet, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "places/" + url.PathEscape(req.PlatformID),
		Headers: headers(req.Credentials),
	})
	if resp.Success && resp.PlatformID == "" {
		resp.PlatformID = req.PlatformID
	}
	return resp
}

func (a *Adapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	q := req.Query
	text := q.Name
	if q.City != "" {
		text += " " + q.City
	}
	params := url.Values{}
	params.Set("textQuery", text)
	if q.Limit > 0 {
		params.Set("pageSize", strconv.Itoa(q.Limit))
	}
	resp := a.Call(ctx, model.OpSearch, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "places:searchText",
		Query:   params,
		Headers: headers(req.Credentials),
	})
	if resp.Success && !resp.Simulated {
		resp.PlatformID = adapter.FirstID(resp.Data, "places", "id")
	}
	return resp
}

// ClaimListing 认领后进入待验证状态
func (a *Adapter) ClaimListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpClaim, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpClaim, req, httpclient.Call{
		Method:  http.MethodPost,
		Path:    "places/" + url.PathEscape(req.PlatformID) + ":claim",
		Body:    map[string]any{"verificationMethod": "POSTCARD"},
		Headers: headers(req.Credentials),
	})
	if resp.Success {
		resp.PlatformID = req.PlatformID
	}
	return resp
}

func (a *Adapter) VerifyListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" || req.VerificationCode == "" {
		return model.Fail(model.OpVerify, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpVerify, req, httpclient.Call{
		Method:  http.MethodPost,
		Path:    "places/" + url.PathEscape(req.PlatformID) + ":verify",
		Body:    map[string]any{"pin": req.VerificationCode},
		Headers: headers(req.Credentials),
	})
	if resp.Success {
		resp.PlatformID = req.PlatformID
	}
	return resp
}

func (a *Adapter) GetReviews(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpReviews, model.ReasonValidation, 0)
	}
	return a.Call(ctx, model.OpReviews, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "places/" + url.PathEscape(req.PlatformID) + "/reviews",
		Headers: headers(req.Credentials),
	})
}
