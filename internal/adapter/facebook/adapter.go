package facebook

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

const Name = "facebook"

// pageFields GET 时请求的字段
const pageFields = "id,name,phone,emails,website,location,single_line_address,category_list,hours," +
	"overall_star_rating,rating_count,is_permanently_closed,temporary_status"

var Capabilities = model.PlatformCapabilities{
	Operations: []model.Operation{
		model.OpCreate, model.OpUpdate, model.OpDelete, model.OpGet, model.OpSearch,
		model.OpReviews, model.OpPhotos, model.OpAnalytics,
	},
	RateLimitPerMinute: 200,
	RateLimitPerDay:    4800,
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
	return map[string]string{"Authorization": "Bearer " + creds.Get(model.CredToken)}
}

func (a *Adapter) Authenticate(ctx context.Context, creds *model.AuthCredentials) bool {
	if a.Simulating(creds) {
		return true
	}
	if creds.Get(model.CredToken) == "" {
		return false
	}
	resp := a.Client.Do(ctx, model.OpGet, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "me",
		Query:   url.Values{"fields": {"id"}},
		Headers: headers(creds),
	})
	return resp.Success
}

// withID 成功响应补齐平台 ID（报文 id 优先）
func withID(resp *model.PlatformResponse, fallback string) *model.PlatformResponse {
	if !resp.Success || resp.PlatformID != "" {
		return resp
	}
	if id := httpclient.StringField(resp.Data, "id"); id != "" {
		resp.PlatformID = id
	} else {
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
		Path:    "pages",
		Body:    a.FromCanonical(req.Record),
		Headers: headers(req.Credentials),
	})
	return withID(resp, "")
}

// UpdateListing Graph 风格接口用 POST 更新
func (a *Adapter) UpdateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.Record == nil || req.PlatformID == "" {
		return model.Fail(model.OpUpdate, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpUpdate, req, httpclient.Call{
		Method:  http.MethodPost,
		Path:    url.PathEscape(req.PlatformID),
		Body:    a.FromCanonical(req.Record),
		Headers: headers(req.Credentials),
	})
	return withID(resp, req.PlatformID)
}

func (a *Adapter) DeleteListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpDelete, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpDelete, req, httpclient.Call{
		Method:  http.MethodDelete,
		Path:    url.PathEscape(req.PlatformID),
		Headers: headers(req.Credentials),
	})
	return withID(resp, req.PlatformID)
}

func (a *Adapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpGet, model.ReasonValidation, 0)
	}
	resp := a.Call(ctx, model.OpGet, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    url.PathEscape(req.PlatformID),
		Query:   url.Values{"fields": {pageFields}},
		Headers: headers(req.Credentials),
	})
	return withID(resp, req.PlatformID)
}

func (a *Adapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	params := url.Values{"q": {req.Query.Name}, "fields": {"id,name,location"}}
	if req.Query.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Query.Limit))
	}
	resp := a.Call(ctx, model.OpSearch, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    "pages/search",
		Query:   params,
		Headers: headers(req.Credentials),
	})
	if resp.Success && !resp.Simulated {
		resp.PlatformID = adapter.FirstID(resp.Data, "data", "id")
	}
	return resp
}

func (a *Adapter) GetReviews(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpReviews, model.ReasonValidation, 0)
	}
	return a.Call(ctx, model.OpReviews, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    url.PathEscape(req.PlatformID) + "/ratings",
		Headers: headers(req.Credentials),
	})
}

func (a *Adapter) GetAnalytics(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpAnalytics, model.ReasonValidation, 0)
	}
	return a.Call(ctx, model.OpAnalytics, req, httpclient.Call{
		Method:  http.MethodGet,
		Path:    url.PathEscape(req.PlatformID) + "/insights",
		Query:   url.Values{"metric": {"page_views_total,page_impressions"}, "period": {"day"}},
		Headers: headers(req.Credentials),
	})
}

// UploadPhotos 逐张上传，遇到第一张失败即返回
func (a *Adapter) UploadPhotos(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" || req.Record == nil || len(req.Record.Photos) == 0 {
		return model.Fail(model.OpPhotos, model.ReasonValidation, 0)
	}
	var last *model.PlatformResponse
	ids := make([]string, 0, len(req.Record.Photos))
	for _, p := range req.Record.Photos {
		last = a.Call(ctx, model.OpPhotos, req, httpclient.Call{
			Method:  http.MethodPost,
			Path:    url.PathEscape(req.PlatformID) + "/photos",
			Body:    map[string]any{"url": p.URL, "published": true},
			Headers: headers(req.Credentials),
		})
		if !last.Success {
			return last
		}
		ids = append(ids, httpclient.StringField(last.Data, "id"))
	}
	last.PlatformID = req.PlatformID
	last.Data = map[string]any{"uploaded": len(ids), "photo_ids": ids}
	return last
}
