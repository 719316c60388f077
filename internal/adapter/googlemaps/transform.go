package googlemaps

import (
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

var supportedFields = []string{
	model.FieldName,
	model.FieldStatus,
	model.FieldFormattedAddress,
	model.FieldLat,
	model.FieldLng,
	model.FieldPhone,
	model.FieldWebsite,
	model.FieldPrimaryCategory,
	model.FieldSecondaryCats,
	model.FieldRatingValue,
	model.FieldRatingCount,
}

var knownKeys = []string{
	"id", "displayName", "businessStatus", "formattedAddress", "location",
	"nationalPhoneNumber", "websiteUri", "primaryType", "types", "rating", "userRatingCount",
}

var statusToPlatform = map[model.BusinessStatus]string{
	model.BusinessOperational:       "OPERATIONAL",
	model.BusinessTemporarilyClosed: "CLOSED_TEMPORARILY",
	model.BusinessPermanentlyClosed: "CLOSED_PERMANENTLY",
}

var statusFromPlatform = map[string]model.BusinessStatus{
	"OPERATIONAL":        model.BusinessOperational,
	"CLOSED_TEMPORARILY": model.BusinessTemporarilyClosed,
	"CLOSED_PERMANENTLY": model.BusinessPermanentlyClosed,
}

// FromCanonical 营业时间、照片、邮箱无法表示，直接丢弃
func (a *Adapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	out := map[string]any{
		"displayName": map[string]any{"text": r.Name},
	}
	adapter.PutStr(out, "businessStatus", statusToPlatform[r.Status])
	if loc := r.Location; loc != nil {
		adapter.PutStr(out, "formattedAddress", loc.FormattedAddress)
		if loc.HasCoordinates() {
			out["location"] = map[string]any{"latitude": *loc.Lat, "longitude": *loc.Lng}
		}
	}
	adapter.PutStr(out, "nationalPhoneNumber", r.Contact.Phone)
	adapter.PutStr(out, "websiteUri", r.Contact.Website)
	adapter.PutStr(out, "primaryType", r.Categories.Primary)
	if types := r.Categories.All(); len(types) > 0 {
		out["types"] = types
	}
	if r.Rating != nil {
		out["rating"] = r.Rating.Value.InexactFloat64()
		out["userRatingCount"] = r.Rating.Count
	}
	return out
}

// ToCanonical types 中除 primaryType 以外的按顺序作为次分类
func (a *Adapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		Name:   adapter.Str(adapter.Map(payload, "displayName"), "text"),
		Status: statusFromPlatform[adapter.Str(payload, "businessStatus")],
		Contact: model.Contact{
			Phone:   adapter.Str(payload, "nationalPhoneNumber"),
			Website: adapter.Str(payload, "websiteUri"),
		},
	}

	formatted := adapter.Str(payload, "formattedAddress")
	geo := adapter.Map(payload, "location")
	if formatted != "" || geo != nil {
		r.Location = &model.Location{
			FormattedAddress: formatted,
			Lat:              adapter.FloatPtr(geo, "latitude"),
			Lng:              adapter.FloatPtr(geo, "longitude"),
		}
	}

	primary := adapter.Str(payload, "primaryType")
	r.Categories.Primary = primary
	for _, t := range adapter.Strings(payload, "types") {
		if t != primary {
			r.Categories.Secondary = append(r.Categories.Secondary, t)
		}
	}

	if value, ok := adapter.Decimal(payload, "rating"); ok {
		r.Rating = &model.Rating{Value: value, Count: adapter.Int(payload, "userRatingCount")}
	}

	adapter.KeepUnknown(r, a.Name(), payload, knownKeys...)
	return r, nil
}
