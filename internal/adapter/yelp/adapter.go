package yelp

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

const Name = "reviews_site"

// Capabilities 点评平台：只读，认领无需验证码
var Capabilities = model.PlatformCapabilities{
	Operations:         []model.Operation{model.OpGet, model.OpSearch, model.OpClaim, model.OpReviews},
	ReadOnly:           true,
	RateLimitPerMinute: 300,
	RateLimitPerDay:    5000,
	RequiredFields:     []string{model.FieldName, model.FieldCity},
	SupportedFields:    supportedFields,
}

type Adapter struct {
	adapter.Base
	adapter.ReadOnly
}

func New(name string, cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter {
	return NewWithClient(name, cfg, nil, logger)
}

func NewWithClient(name string, cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) *Adapter {
	return &Adapter{Base: adapter.NewBase(name, Capabilities, cfg, httpClient, logger)}
}

// API Key 以 Bearer 方式传递
func headers(creds *model.AuthCredentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + creds.Get(model.CredAPIKey)}
}

func (a *Adapter) Authenticate(ctx context.Context, creds *model.AuthCredentials) bool {
	if a.Simulating(creds) {
		return true
	}
	if creds.Get(model.CredAPIKey) == "" {
		return false
	}
	params := url.Values{"term": {"ping"}, "limit": {"1"}, "location": {"US"}}
	resp := a.Client.Do(ctx, model.OpSearch, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "businesses/search",
		Query:   params,
		Headers: headers(creds),
	})
	return resp.Success
}

func (a *Adapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpGet, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpGet, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "businesses/" + url.PathEscape(req.PlatformID),
		Headers: headers(req.Credentials),
	})
	if resp.Success && resp.PlatformID == "" {
		resp.PlatformID = req.PlatformID
	}
	return resp
}

// SearchListings 优先按电话精确匹配，否则按名称 + 城市
func (a *Adapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	q := req.Query
	call := httpclient.Call{Method: http.MethodGet, Headers: headers(req.Credentials)}
	if q.Phone != "" {
		call.Path = "businesses/search/phone"
		call.Query = url.Values{"phone": {q.Phone}}
	} else {
		location := q.City
		if location == "" {
			location = q.Country
		}
		call.Path = "businesses/search"
		call.Query = url.Values{"term": {q.Name}, "location": {location}}
		if q.Category != "" {
			call.Query.Set("categories", q.Category)
		}
		if q.Limit > 0 {
			call.Query.Set("limit", strconv.Itoa(q.Limit))
		}
	}
	resp := a.Call(ctx, model.OpSearch, req, call)
	if resp.Success && !resp.Simulated {
		resp.PlatformID = adapter.FirstID(resp.Data, "businesses", "id")
	}
	return resp
}

func (a *Adapter) ClaimListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpClaim, model.ReasonValidation, 0)
	}
	body := map[string]any{}
	if req.Record != nil {
		adapter.PutStr(body, "email", req.Record.Contact.Email)
		adapter.PutStr(body, "phone", req.Record.Contact.Phone)
	}
	resp := a.Call(ctx, model.OpClaim, req, httpclient.Call{
		Method:  http.MethodPost,
		Path:    "businesses/" + url.PathEscape(req.PlatformID) + "/claim",
		Body:    body,
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
		Path:    "businesses/" + url.PathEscape(req.PlatformID) + "/reviews",
		Query:   url.Values{"sort_by": {"newest"}},
		Headers: headers(req.Credentials),
	})
}
