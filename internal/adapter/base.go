package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/utils/httpclient"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SimulatedPrefix 模拟结果的平台 ID 前缀
const SimulatedPrefix = "sim_"

// Base 适配器公共部分：名称、能力、HTTP 客户端与模拟模式
type Base struct {
	name     string
	caps     model.PlatformCapabilities
	simulate bool
	Client   *httpclient.Client
	Logger   *logrus.Logger
}

// NewBase 配置里的限额会覆盖适配器声明的默认值
func NewBase(name string, caps model.PlatformCapabilities, cfg *config.PlatformConfig, httpClient *http.Client, logger *logrus.Logger) Base {
	caps.Name = name
	if cfg.RateLimitPerMinute > 0 {
		caps.RateLimitPerMinute = cfg.RateLimitPerMinute
	}
	if cfg.RateLimitPerDay > 0 {
		caps.RateLimitPerDay = cfg.RateLimitPerDay
	}
	return Base{
		name:     name,
		caps:     caps,
		simulate: cfg.Simulate,
		Client:   httpclient.New(cfg, httpClient, logger),
		Logger:   logger,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Capabilities() model.PlatformCapabilities { return b.caps.Clone() }

// Simulating 开启模拟且没有任何凭证
func (b *Base) Simulating(creds *model.AuthCredentials) bool {
	return b.simulate && creds.IsEmpty()
}

// Simulated 构造模拟成功响应；同一商户同一平台得到稳定的模拟 ID
func (b *Base) Simulated(op model.Operation, req *model.ListingRequest) *model.PlatformResponse {
	platformID := req.PlatformID
	if platformID == "" {
		seed := b.name
		if req.Record != nil {
			seed += "/" + req.Record.ID + "/" + req.Record.Name
		}
		platformID = SimulatedPrefix + strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String(), "-", "")[:16]
	}
	b.Logger.WithFields(logrus.Fields{
		"platform":  b.name,
		"operation": op,
	}).Warn("无平台凭证，返回模拟结果")
	resp := model.OK(op, platformID, map[string]any{"id": platformID})
	resp.Simulated = true
	return resp
}

// Call 统一出口：模拟 / 缺凭证 / 真实请求
func (b *Base) Call(ctx context.Context, op model.Operation, req *model.ListingRequest, call httpclient.Call) *model.PlatformResponse {
	if b.Simulating(req.Credentials) {
		return b.Simulated(op, req)
	}
	if req.Credentials.IsEmpty() {
		return model.Fail(op, model.ReasonAuthentication, 0)
	}
	return b.Client.Do(ctx, op, call)
}

// Unsupported 可选操作的默认实现，嵌入后只需覆盖平台真正支持的操作
type Unsupported struct{}

func (Unsupported) DeleteListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpDelete)
}

func (Unsupported) ClaimListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpClaim)
}

func (Unsupported) VerifyListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpVerify)
}

func (Unsupported) GetReviews(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpReviews)
}

func (Unsupported) GetAnalytics(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpAnalytics)
}

func (Unsupported) UploadPhotos(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpPhotos)
}

// ReadOnly 只读平台：写操作一律不支持
type ReadOnly struct {
	Unsupported
}

func (ReadOnly) CreateListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpCreate)
}

func (ReadOnly) UpdateListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpUpdate)
}

func (ReadOnly) DeleteListing(context.Context, *model.ListingRequest) *model.PlatformResponse {
	return model.Unsupported(model.OpDelete)
}

// PlatformKey 平台透传字段在 Attributes 中的键
func PlatformKey(platform, key string) string {
	return platform + "." + key
}

// KeepUnknown 把映射之外的报文字段以 <platform>.<key> 保存到 Attributes
func KeepUnknown(record *model.BusinessRecord, platform string, payload map[string]any, known ...string) {
	skip := make(map[string]struct{}, len(known))
	for _, k := range known {
		skip[k] = struct{}{}
	}
	for k, v := range payload {
		if _, ok := skip[k]; ok {
			continue
		}
		record.SetAttribute(PlatformKey(platform, k), v)
	}
}
