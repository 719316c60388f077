package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// BusinessStatus 商户营业状态
type BusinessStatus string

const (
	BusinessOperational       BusinessStatus = "operational"
	BusinessTemporarilyClosed BusinessStatus = "temporarily_closed"
	BusinessPermanentlyClosed BusinessStatus = "permanently_closed"
)

// Weekday 营业时间中的星期
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// 规范字段路径（适配器 SupportedFields / RequiredFields 使用）
const (
	FieldName             = "name"
	FieldStatus           = "status"
	FieldLocation         = "location"
	FieldStreet           = "location.street"
	FieldCity             = "location.city"
	FieldState            = "location.state"
	FieldPostalCode       = "location.postal_code"
	FieldCountry          = "location.country"
	FieldLat              = "location.lat"
	FieldLng              = "location.lng"
	FieldFormattedAddress = "location.formatted_address"
	FieldPhone            = "contact.phone"
	FieldEmail            = "contact.email"
	FieldWebsite          = "contact.website"
	FieldHours            = "hours"
	FieldPrimaryCategory  = "categories.primary"
	FieldSecondaryCats    = "categories.secondary"
	FieldPhotos           = "photos"
	FieldRatingValue      = "rating.value"
	FieldRatingCount      = "rating.count"
)

// AttrPartialLocation 不完整地址的审计记录键
const AttrPartialLocation = "partial_location"

// Location 商户地址；经纬度可选
type Location struct {
	Street           string   `json:"street,omitempty" validate:"max=256"`
	City             string   `json:"city,omitempty" validate:"max=128"`
	State            string   `json:"state,omitempty" validate:"max=128"`
	PostalCode       string   `json:"postal_code,omitempty" validate:"max=32"`
	Country          string   `json:"country,omitempty" validate:"max=64"`
	Lat              *float64 `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng              *float64 `json:"lng,omitempty" validate:"omitempty,longitude"`
	FormattedAddress string   `json:"formatted_address,omitempty" validate:"max=512"`
}

// HasCoordinates 经纬度是否成对出现
func (l *Location) HasCoordinates() bool {
	return l != nil && l.Lat != nil && l.Lng != nil
}

// IsComplete 有格式化地址或经纬度对即视为完整
func (l *Location) IsComplete() bool {
	if l == nil {
		return false
	}
	return strings.TrimSpace(l.FormattedAddress) != "" || l.HasCoordinates()
}

func (l *Location) auditFields() map[string]any {
	out := make(map[string]any)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("street", l.Street)
	put("city", l.City)
	put("state", l.State)
	put("postal_code", l.PostalCode)
	put("country", l.Country)
	if l.Lat != nil {
		out["lat"] = *l.Lat
	}
	if l.Lng != nil {
		out["lng"] = *l.Lng
	}
	return out
}

// Contact 联系方式，至少需要一项
type Contact struct {
	Phone   string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Website string `json:"website,omitempty" validate:"omitempty,url"`
}

func (c Contact) IsEmpty() bool {
	return strings.TrimSpace(c.Phone) == "" && strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Website) == ""
}

// HoursRange 某一天的一段营业时间
type HoursRange struct {
	Day   Weekday `json:"day" validate:"oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Open  string  `json:"open" validate:"datetime=15:04"`
	Close string  `json:"close" validate:"datetime=15:04"`
}

// Categories 主分类 + 有序的次分类
type Categories struct {
	Primary   string   `json:"primary,omitempty" validate:"max=128"`
	Secondary []string `json:"secondary,omitempty"`
}

// All 主分类在前，按顺序返回全部分类
func (c Categories) All() []string {
	out := make([]string, 0, 1+len(c.Secondary))
	if c.Primary != "" {
		out = append(out, c.Primary)
	}
	return append(out, c.Secondary...)
}

type Photo struct {
	URL    string `json:"url" validate:"required,url"`
	Width  int    `json:"width,omitempty" validate:"gte=0"`
	Height int    `json:"height,omitempty" validate:"gte=0"`
}

// Rating 聚合评分，value 用 decimal 保证往返转换无精度损失
type Rating struct {
	Value decimal.Decimal `json:"value"`
	Count int             `json:"count" validate:"gte=0"`
}

// BusinessRecord 平台无关的规范商户档案
// 交给编排器之前归调用方所有；适配器只能拿到 Clone 出来的只读副本
type BusinessRecord struct {
	ID         string         `json:"id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Name       string         `json:"name" validate:"max=256"`
	Status     BusinessStatus `json:"status,omitempty" validate:"omitempty,oneof=operational temporarily_closed permanently_closed"`
	Location   *Location      `json:"location,omitempty"`
	Contact    Contact        `json:"contact"`
	Hours      []HoursRange   `json:"hours,omitempty" validate:"dive"`
	Categories Categories     `json:"categories"`
	Photos     []Photo        `json:"photos,omitempty" validate:"dive"`
	Rating     *Rating        `json:"rating,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewBusinessRecord 校验并规范化调用方提交的档案，返回一份独立副本
func NewBusinessRecord(in BusinessRecord) (*BusinessRecord, error) {
	r := in.Clone()
	r.Name = strings.TrimSpace(r.Name)
	if r.Status == "" {
		r.Status = BusinessOperational
	}
	if r.Location != nil && !r.Location.IsComplete() {
		// 不完整地址不拒绝，落到 attributes 里留痕
		if r.Attributes == nil {
			r.Attributes = make(map[string]any)
		}
		r.Attributes[AttrPartialLocation] = r.Location.auditFields()
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate 名称必填、至少一种联系方式，其余按 struct tag 校验
func (r *BusinessRecord) Validate() error {
	if r == nil {
		return &ValidationError{Message: "record is nil"}
	}
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: FieldName, Message: "is required"}
	}
	if r.Contact.IsEmpty() {
		return &ValidationError{Field: "contact", Message: "at least one of phone, email, website is required"}
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			ns := fe.Namespace()
			if i := strings.Index(ns, "."); i >= 0 {
				ns = ns[i+1:]
			}
			return &ValidationError{Field: ns, Message: "failed on " + fe.Tag()}
		}
		return &ValidationError{Message: err.Error()}
	}
	if r.Rating != nil {
		if r.Rating.Value.IsNegative() || r.Rating.Value.GreaterThan(decimal.NewFromInt(5)) {
			return &ValidationError{Field: FieldRatingValue, Message: "must be within [0, 5]"}
		}
	}
	return nil
}

// Clone 深拷贝，适配器拿到的永远是副本
func (r *BusinessRecord) Clone() *BusinessRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Location != nil {
		loc := *r.Location
		if r.Location.Lat != nil {
			lat := *r.Location.Lat
			loc.Lat = &lat
		}
		if r.Location.Lng != nil {
			lng := *r.Location.Lng
			loc.Lng = &lng
		}
		out.Location = &loc
	}
	if r.Hours != nil {
		out.Hours = append([]HoursRange(nil), r.Hours...)
	}
	if r.Categories.Secondary != nil {
		out.Categories.Secondary = append([]string(nil), r.Categories.Secondary...)
	}
	if r.Photos != nil {
		out.Photos = append([]Photo(nil), r.Photos...)
	}
	if r.Rating != nil {
		rating := *r.Rating
		out.Rating = &rating
	}
	if r.Attributes != nil {
		out.Attributes = deepCopyMap(r.Attributes)
	}
	return &out
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = deepCopyValue(t[i])
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// SetAttribute 写入扩展字段
func (r *BusinessRecord) SetAttribute(key string, value any) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]any)
	}
	r.Attributes[key] = value
}

// ContentHash 核心字段的稳定摘要（不含 id/tenant/attributes），用于漂移检测
func (r *BusinessRecord) ContentHash() string {
	core := *r
	core.ID = ""
	core.TenantID = ""
	core.Attributes = nil
	if core.Rating != nil {
		rating := *core.Rating
		// decimal 的 JSON 受指数影响，统一成规范字符串
		rating.Value, _ = decimal.NewFromString(rating.Value.String())
		core.Rating = &rating
	}
	b, _ := json.Marshal(core)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// PhotosHash 照片列表的摘要，没有照片时为空串
func (r *BusinessRecord) PhotosHash() string {
	if len(r.Photos) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Photos)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FieldValue 按字段路径取值；第二个返回值表示该字段是否有值
func (r *BusinessRecord) FieldValue(path string) (any, bool) {
	loc := r.Location
	if loc == nil {
		loc = &Location{}
	}
	str := func(s string) (any, bool) { return s, strings.TrimSpace(s) != "" }
	switch path {
	case FieldName:
		return str(r.Name)
	case FieldStatus:
		return str(string(r.Status))
	case FieldLocation:
		return r.Location, r.Location != nil
	case FieldStreet:
		return str(loc.Street)
	case FieldCity:
		return str(loc.City)
	case FieldState:
		return str(loc.State)
	case FieldPostalCode:
		return str(loc.PostalCode)
	case FieldCountry:
		return str(loc.Country)
	case FieldFormattedAddress:
		return str(loc.FormattedAddress)
	case FieldLat:
		if loc.Lat == nil {
			return nil, false
		}
		return *loc.Lat, true
	case FieldLng:
		if loc.Lng == nil {
			return nil, false
		}
		return *loc.Lng, true
	case FieldPhone:
		return str(r.Contact.Phone)
	case FieldEmail:
		return str(r.Contact.Email)
	case FieldWebsite:
		return str(r.Contact.Website)
	case FieldHours:
		return r.Hours, len(r.Hours) > 0
	case FieldPrimaryCategory:
		return str(r.Categories.Primary)
	case FieldSecondaryCats:
		return r.Categories.Secondary, len(r.Categories.Secondary) > 0
	case FieldPhotos:
		return r.Photos, len(r.Photos) > 0
	case FieldRatingValue:
		if r.Rating == nil {
			return nil, false
		}
		return r.Rating.Value, true
	case FieldRatingCount:
		if r.Rating == nil {
			return nil, false
		}
		return r.Rating.Count, true
	}
	return nil, false
}

// EqualField 比较两份档案的同一字段；缺失与空值视为相等
func (r *BusinessRecord) EqualField(other *BusinessRecord, path string) bool {
	a, okA := r.FieldValue(path)
	b, okB := other.FieldValue(path)
	if !okA || !okB {
		return okA == okB
	}
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	return reflect.DeepEqual(a, b)
}

// DiffFields 返回 paths 中取值不一致的字段
func (r *BusinessRecord) DiffFields(other *BusinessRecord, paths []string) []string {
	var diff []string
	for _, p := range paths {
		if !r.EqualField(other, p) {
			diff = append(diff, p)
		}
	}
	return diff
}
