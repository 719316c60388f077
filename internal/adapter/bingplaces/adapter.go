package bingplaces

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/interfaces"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

const Name = "bing_places"

// 签名请求头
const (
	HeaderCustomer  = "X-Bing-Customer"
	HeaderTimestamp = "X-Bing-Timestamp"
	HeaderSignature = "X-Bing-Signature"
)

// Capabilities 可写，但新建/认领的商户需要验证码才会上线
var Capabilities = model.PlatformCapabilities{
	Operations: []model.Operation{
		model.OpCreate, model.OpUpdate, model.OpGet, model.OpSearch, model.OpClaim, model.OpVerify,
	},
	RequiresVerification: true,
	RateLimitPerMinute:   60,
	RateLimitPerDay:      10000,
	RequiredFields:       []string{model.FieldName, model.FieldStreet, model.FieldCity, model.FieldPhone},
	SupportedFields:      supportedFields,
}

type Adapter struct {
	adapter.Base
	adapter.Unsupported
	now func() time.Time
}

func New(name string, cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter {
	return NewWithClient(name, cfg, nil, logger)
}

func NewWithClient(name string, cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) *Adapter {
	return &Adapter{
		Base: adapter.NewBase(name, Capabilities, cfg, httpClient, logger),
		now:  time.Now,
	}
}

// signed 为请求补齐签名头；签名失败按鉴权失败处理
func (a *Adapter) signed(ctx context.Context, op model.Operation, req *model.ListingRequest, call httpclient.Call) *model.PlatformResponse {
	if a.Simulating(req.Credentials) {
		return a.Simulated(op, req)
	}
	if req.Credentials.IsEmpty() {
		return model.Fail(op, model.ReasonAuthentication, 0)
	}
	signer, err := newSigner(req.Credentials)
	if err == nil {
		call.Headers, err = signer.headers(a.now(), call.Method, "/"+call.Path)
	}
	if err != nil {
		a.Logger.WithError(err).WithField("platform", a.Name()).Error("请求签名失败")
		return model.Fail(op, model.ReasonAuthentication, 0)
	}
	return a.Call(ctx, op, req, call)
}

func (a *Adapter) Authenticate(ctx context.Context, creds *model.AuthCredentials) bool {
	if a.Simulating(creds) {
		return true
	}
	resp := a.signed(ctx, model.OpGet, &model.ListingRequest{Credentials: creds}, httpclient.Call{
		Method: http.MethodGet,
		Path:   "account",
	})
	return resp.Success
}

func idFrom(resp *model.PlatformResponse, fallback string) *model.PlatformResponse {
	if !resp.Success || resp.PlatformID != "" {
		return resp
	}
	resp.PlatformID = httpclient.StringField(resp.Data, "businessId")
	if resp.PlatformID == "" {
		resp.PlatformID = fallback
	}
	return resp
}

func (a *Adapter) CreateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.Record == nil {
		return model.Fail(model.OpCreate, model.ReasonValidation, 0)
	}
	resp := a.signed(ctx, model.OpCreate, req, httpclient.Call{
		Method: http.MethodPost,
		Path:   "businesses",
		Body:   map[string]any{"business": a.FromCanonical(req.Record)},
	})
	return idFrom(resp, "")
}

func (a *Adapter) UpdateListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.Record == nil || req.PlatformID == "" {
		return model.Fail(model.OpUpdate, model.ReasonValidation, 0)
	}
	resp := a.signed(ctx, model.OpUpdate, req, httpclient.Call{
		Method: http.MethodPut,
		Path:   "businesses/" + url.PathEscape(req.PlatformID),
		Body:   map[string]any{"business": a.FromCanonical(req.Record)},
	})
	return idFrom(resp, req.PlatformID)
}

func (a *Adapter) GetListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpGet, model.ReasonValidation, 0)
	}
	resp := a.signed(ctx, model.OpGet, req, httpclient.Call{
		Method: http.MethodGet,
		Path:   "businesses/" + url.PathEscape(req.PlatformID),
	})
	return idFrom(resp, req.PlatformID)
}

func (a *Adapter) SearchListings(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	q := req.Query
	params := url.Values{"name": {q.Name}}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Phone != "" {
		params.Set("phone", q.Phone)
	}
	resp := a.signed(ctx, model.OpSearch, req, httpclient.Call{
		Method: http.MethodGet,
		Path:   "businesses/search",
		Query:  params,
	})
	if resp.Success && !resp.Simulated {
		resp.PlatformID = adapter.FirstID(resp.Data, "businesses", "businessId")
	}
	return resp
}

func (a *Adapter) ClaimListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" {
		return model.Fail(model.OpClaim, model.ReasonValidation, 0)
	}
	resp := a.signed(ctx, model.OpClaim, req, httpclient.Call{
		Method: http.MethodPost,
		Path:   "businesses/" + url.PathEscape(req.PlatformID) + "/claim",
	})
	return idFrom(resp, req.PlatformID)
}

func (a *Adapter) VerifyListing(ctx context.Context, req *model.ListingRequest) *model.PlatformResponse {
	if req.PlatformID == "" || req.VerificationCode == "" {
		return model.Fail(model.OpVerify, model.ReasonValidation, 0)
	}
	resp := a.signed(ctx, model.OpVerify, req, httpclient.Call{
		Method: http.MethodPost,
		Path:   "businesses/" + url.PathEscape(req.PlatformID) + "/verify",
		Body:   map[string]any{"code": req.VerificationCode},
	})
	return idFrom(resp, req.PlatformID)
}
