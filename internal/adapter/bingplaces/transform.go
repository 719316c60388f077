package bingplaces

import (
	"strings"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

var supportedFields = []string{
	model.FieldName,
	model.FieldStreet,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldCountry,
	model.FieldLat,
	model.FieldLng,
	model.FieldPhone,
	model.FieldEmail,
	model.FieldWebsite,
	model.FieldHours,
	model.FieldPrimaryCategory,
	model.FieldSecondaryCats,
}

var knownKeys = []string{
	"businessId", "BusinessName", "AddressLine1", "City", "StateOrProvince", "ZipCode", "Country",
	"Latitude", "Longitude", "MainPhone", "Email", "Website", "MainCategory", "Categories", "HoursOfOperation",
}

// titleDay monday -> Monday
func titleDay(d model.Weekday) string {
	s := string(d)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *Adapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	out := map[string]any{"BusinessName": r.Name}
	if loc := r.Location; loc != nil {
		adapter.PutStr(out, "AddressLine1", loc.Street)
		adapter.PutStr(out, "City", loc.City)
		adapter.PutStr(out, "StateOrProvince", loc.State)
		adapter.PutStr(out, "ZipCode", loc.PostalCode)
		adapter.PutStr(out, "Country", loc.Country)
		if loc.Lat != nil {
			out["Latitude"] = *loc.Lat
		}
		if loc.Lng != nil {
			out["Longitude"] = *loc.Lng
		}
	}
	adapter.PutStr(out, "MainPhone", r.Contact.Phone)
	adapter.PutStr(out, "Email", r.Contact.Email)
	adapter.PutStr(out, "Website", r.Contact.Website)
	adapter.PutStr(out, "MainCategory", r.Categories.Primary)
	if len(r.Categories.Secondary) > 0 {
		out["Categories"] = append([]string(nil), r.Categories.Secondary...)
	}
	if len(r.Hours) > 0 {
		hours := make([]map[string]any, 0, len(r.Hours))
		for _, h := range r.Hours {
			hours = append(hours, map[string]any{
				"Day":   titleDay(h.Day),
				"Open":  h.Open,
				"Close": h.Close,
			})
		}
		out["HoursOfOperation"] = hours
	}
	return out
}

func (a *Adapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	// 单条查询的报文可能包在 business 下
	if inner := adapter.Map(payload, "business"); inner != nil {
		payload = inner
	}
	r := &model.BusinessRecord{
		Name: adapter.Str(payload, "BusinessName"),
		Contact: model.Contact{
			Phone:   adapter.Str(payload, "MainPhone"),
			Email:   adapter.Str(payload, "Email"),
			Website: adapter.Str(payload, "Website"),
		},
		Categories: model.Categories{
			Primary:   adapter.Str(payload, "MainCategory"),
			Secondary: adapter.Strings(payload, "Categories"),
		},
	}

	loc := &model.Location{
		Street:     adapter.Str(payload, "AddressLine1"),
		City:       adapter.Str(payload, "City"),
		State:      adapter.Str(payload, "StateOrProvince"),
		PostalCode: adapter.Str(payload, "ZipCode"),
		Country:    adapter.Str(payload, "Country"),
		Lat:        adapter.FloatPtr(payload, "Latitude"),
		Lng:        adapter.FloatPtr(payload, "Longitude"),
	}
	if *loc != (model.Location{}) {
		r.Location = loc
	}

	for _, h := range adapter.Maps(payload, "HoursOfOperation") {
		r.Hours = append(r.Hours, model.HoursRange{
			Day:   model.Weekday(strings.ToLower(adapter.Str(h, "Day"))),
			Open:  adapter.Str(h, "Open"),
			Close: adapter.Str(h, "Close"),
		})
	}

	adapter.KeepUnknown(r, a.Name(), payload, knownKeys...)
	return r, nil
}
