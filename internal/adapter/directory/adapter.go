package directory

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

// Name 默认注册名；同一适配器可通过 adapter: custom_directory 挂多个目录站
const Name = "custom_directory"

// Capabilities 自建目录站：提交即上线，无需验证
var Capabilities = model.PlatformCapabilities{
	Operations: []model.Operation{
		model.OpCreate, model.OpUpdate, model.OpDelete, model.OpGet, model.OpSearch,
	},
	RateLimitPerMinute: 120,
	RequiredFields:     []string{model.FieldName, model.FieldPrimaryCategory},
	SupportedFields:    supportedFields,
}

type Adapter struct {
	adapter.Base
	adapter.Unsupported
}

func New(name string, cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter {
	return NewWithClient(name, cfg, nil, logger)
}

func NewWithClient(name string, cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(name, Capabilities, cfg, httpClient, logger)}
}

func headers(creds *model.AuthCredentials) map[string]string {
	return map[string]string{"X-API-Key": creds.Get(model.CredAPIKey)}
}

func (a *Adapter) Authenticate(ctx context.Context, creds *model.AuthCredentials) bool {
	if a.Simulating(creds) {
		return true
	}
	if creds.Get(model.CredAPIKey) == "" {
		return false
	}
	resp := a.Client.Do(ctx, model.OpGet, httpclient.Call{Method: http.MethodGet, Path: "auth/check", Headers: headers(creds)})
	return resp.Success
}

// listingID 目录站返回 id 或 slug
func listingID(resp *model.PlatformResponse, fallback string) *model.PlatformResponse {
	if !resp.Success || resp.PlatformID != "" {
		return resp
	}
	resp.PlatformID = httpclient.StringField(resp.Data, "id")
	if resp.PlatformID == "" {
		resp.PlatformID = httpclient.StringField(resp.Data, "slug")
	}
	if resp.PlatformID == "" {
		resp.PlatformID = fallback
	}
	return resp
}

func (a *Adapter) CreateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.Record == nil {
		return model.Fail(model.OpCreate, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpCreate, req, httpclient.Call{
		Method:  http.MethodPost,
		Path:    "listings",
		Body:    a.FromCanonical(req.Record),
		Headers: headers(req.Credentials),
	})
	return listingID(resp, "")
}

func (a *Adapter) UpdateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.Record == nil || req.PlatformID == "" {
		return model.Fail(model.OpUpdate, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpUpdate, req, httpclient.Call{
		Method:  http.MethodPut,
		Path:    "listings/" + url.PathEscape(req.PlatformID),
		Body:    a.FromCanonical(req.Record),
		Headers: headers(req.Credentials),
	})
	return listingID(resp, req.PlatformID)
}

func (a *Adapter) DeleteListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpDelete, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpDelete, req, httpclient.Call{
		Method:  http.MethodDelete,
		Path:    "listings/" + url.PathEscape(req.PlatformID),
		Headers: headers(req.Credentials),
	})
	return listingID(resp, req.PlatformID)
}

func (a *Adapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpGet, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpGet, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "listings/" + url.PathEscape(req.PlatformID),
		Headers: headers(req.Credentials),
	})
	return listingID(resp, req.PlatformID)
}

func (a *Adapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	q := req.Query
	params := url.Values{"q": {q.Name}}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Limit > 0 {
		params.Set("per_page", strconv.Itoa(q.Limit))
	}
	resp := a.Call(ctx, model.OpSearch, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "listings",
		Query:   params,
		Headers: headers(req.Credentials),
	})
	if resp.Success && !resp.Simulated {
		resp.PlatformID = adapter.FirstID(resp.Data, "items", "id")
	}
	return resp
}
