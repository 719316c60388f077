package directory

import (
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/gosimple/slug"
)

var supportedFields = []string{
	model.FieldName,
	model.FieldStatus,
	model.FieldStreet,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldCountry,
	model.FieldLat,
	model.FieldLng,
	model.FieldFormattedAddress,
	model.FieldPhone,
	model.FieldEmail,
	model.FieldWebsite,
	model.FieldHours,
	model.FieldPrimaryCategory,
	model.FieldSecondaryCats,
	model.FieldPhotos,
	model.FieldRatingValue,
	model.FieldRatingCount,
}

var knownKeys = []string{
	"id", "title", "status", "address", "phone", "email", "website",
	"category", "tags", "hours", "photos", "rating",
}

// ListingSlug 目录站的 URL 片段：名称 + 城市
func ListingSlug(r *model.BusinessRecord) string {
	if r.Location != nil && r.Location.City != "" {
		return slug.Make(r.Name + " " + r.Location.City)
	}
	return slug.Make(r.Name)
}

func (a *Adapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	out := map[string]any{
		"title": r.Name,
		"slug":  ListingSlug(r),
	}
	adapter.PutStr(out, "status", string(r.Status))
	if loc := r.Location; loc != nil {
		address := map[string]any{}
		adapter.PutStr(address, "street", loc.Street)
		adapter.PutStr(address, "city", loc.City)
		adapter.PutStr(address, "region", loc.State)
		adapter.PutStr(address, "postcode", loc.PostalCode)
		adapter.PutStr(address, "country", loc.Country)
		adapter.PutStr(address, "formatted", loc.FormattedAddress)
		if loc.Lat != nil {
			address["lat"] = *loc.Lat
		}
		if loc.Lng != nil {
			address["lng"] = *loc.Lng
		}
		out["address"] = address
	}
	adapter.PutStr(out, "phone", r.Contact.Phone)
	adapter.PutStr(out, "email", r.Contact.Email)
	adapter.PutStr(out, "website", r.Contact.Website)
	adapter.PutStr(out, "category", r.Categories.Primary)
	if len(r.Categories.Secondary) > 0 {
		out["tags"] = append([]string(nil), r.Categories.Secondary...)
	}
	if len(r.Hours) > 0 {
		hours := make([]map[string]any, 0, len(r.Hours))
		for _, h := range r.Hours {
			hours = append(hours, map[string]any{"day": string(h.Day), "open": h.Open, "close": h.Close})
		}
		out["hours"] = hours
	}
	if len(r.Photos) > 0 {
		photos := make([]map[string]any, 0, len(r.Photos))
		for _, p := range r.Photos {
			photos = append(photos, map[string]any{"url": p.URL, "width": p.Width, "height": p.Height})
		}
		out["photos"] = photos
	}
	if r.Rating != nil {
		// 评分按字符串传输，保证精度
		out["rating"] = map[string]any{"value": r.Rating.Value.String(), "count": r.Rating.Count}
	}
	return out
}

func (a *Adapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		Name:   adapter.Str(payload, "title"),
		Status: model.BusinessStatus(adapter.Str(payload, "status")),
		Contact: model.Contact{
			Phone:   adapter.Str(payload, "phone"),
			Email:   adapter.Str(payload, "email"),
			Website: adapter.Str(payload, "website"),
		},
		Categories: model.Categories{
			Primary:   adapter.Str(payload, "category"),
			Secondary: adapter.Strings(payload, "tags"),
		},
	}

	if address := adapter.Map(payload, "address"); address != nil {
		r.Location = &model.Location{
			Street:           adapter.Str(address, "street"),
			City:             adapter.Str(address, "city"),
			State:            adapter.Str(address, "region"),
			PostalCode:       adapter.Str(address, "postcode"),
			Country:          adapter.Str(address, "country"),
			FormattedAddress: adapter.Str(address, "formatted"),
			Lat:              adapter.FloatPtr(address, "lat"),
			Lng:              adapter.FloatPtr(address, "lng"),
		}
	}

	for _, h := range adapter.Maps(payload, "hours") {
		r.Hours = append(r.Hours, model.HoursRange{
			Day:   model.Weekday(adapter.Str(h, "day")),
			Open:  adapter.Str(h, "open"),
			Close: adapter.Str(h, "close"),
		})
	}
	for _, p := range adapter.Maps(payload, "photos") {
		r.Photos = append(r.Photos, model.Photo{
			URL:    adapter.Str(p, "url"),
			Width:  adapter.Int(p, "width"),
			Height: adapter.Int(p, "height"),
		})
	}
	if rating := adapter.Map(payload, "rating"); rating != nil {
		if value, ok := adapter.Decimal(rating, "value"); ok {
			r.Rating = &model.Rating{Value: value, Count: adapter.Int(rating, "count")}
		}
	}

	adapter.KeepUnknown(r, a.Name(), payload, knownKeys...)
	return r, nil
}
