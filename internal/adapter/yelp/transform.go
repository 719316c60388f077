package yelp

import (
	"strings"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/gosimple/slug"
)

var supportedFields = []string{
	model.FieldName,
	model.FieldStreet,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldCountry,
	model.FieldFormattedAddress,
	model.FieldLat,
	model.FieldLng,
	model.FieldPhone,
	model.FieldPrimaryCategory,
	model.FieldSecondaryCats,
	model.FieldRatingValue,
	model.FieldRatingCount,
}

var knownKeys = []string{
	"id", "name", "location", "coordinates", "phone", "categories", "rating", "review_count", "is_closed",
}

// FromCanonical 分类以 {alias,title} 表示，alias 由 title 生成
func (a *Adapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	out := map[string]any{"name": r.Name}
	if loc := r.Location; loc != nil {
		location := map[string]any{}
		adapter.PutStr(location, "address1", loc.Street)
		adapter.PutStr(location, "city", loc.City)
		adapter.PutStr(location, "state", loc.State)
		adapter.PutStr(location, "zip_code", loc.PostalCode)
		adapter.PutStr(location, "country", loc.Country)
		if loc.FormattedAddress != "" {
			location["display_address"] = strings.Split(loc.FormattedAddress, "\n")
		}
		out["location"] = location
		if loc.HasCoordinates() {
			out["coordinates"] = map[string]any{"latitude": *loc.Lat, "longitude": *loc.Lng}
		}
	}
	adapter.PutStr(out, "phone", r.Contact.Phone)

	cats := r.Categories.All()
	if len(cats) > 0 {
		list := make([]map[string]any, 0, len(cats))
		for _, c := range cats {
			list = append(list, map[string]any{"alias": slug.Make(c), "title": c})
		}
		out["categories"] = list
	}
	if r.Rating != nil {
		out["rating"] = r.Rating.Value.InexactFloat64()
		out["review_count"] = r.Rating.Count
	}
	if r.Status == model.BusinessPermanentlyClosed {
		out["is_closed"] = true
	}
	return out
}

// ToCanonical 第一个分类为主分类
func (a *Adapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		Name:    adapter.Str(payload, "name"),
		Contact: model.Contact{Phone: adapter.Str(payload, "phone")},
	}
	if adapter.Bool(payload, "is_closed") {
		r.Status = model.BusinessPermanentlyClosed
	}

	location := adapter.Map(payload, "location")
	coords := adapter.Map(payload, "coordinates")
	if location != nil || coords != nil {
		r.Location = &model.Location{
			Street:           adapter.Str(location, "address1"),
			City:             adapter.Str(location, "city"),
			State:            adapter.Str(location, "state"),
			PostalCode:       adapter.Str(location, "zip_code"),
			Country:          adapter.Str(location, "country"),
			FormattedAddress: strings.Join(adapter.Strings(location, "display_address"), "\n"),
			Lat:              adapter.FloatPtr(coords, "latitude"),
			Lng:              adapter.FloatPtr(coords, "longitude"),
		}
	}

	for i, c := range adapter.Maps(payload, "categories") {
		title := adapter.Str(c, "title")
		if title == "" {
			title = adapter.Str(c, "alias")
		}
		if i == 0 {
			r.Categories.Primary = title
			continue
		}
		r.Categories.Secondary = append(r.Categories.Secondary, title)
	}

	if value, ok := adapter.Decimal(payload, "rating"); ok {
		r.Rating = &model.Rating{Value: value, Count: adapter.Int(payload, "review_count")}
	}

	adapter.KeepUnknown(r, a.Name(), payload, knownKeys...)
	return r, nil
}
