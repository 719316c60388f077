package facebook

import (
	"fmt"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/adapter"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

var supportedFields = []string{
	model.FieldName,
	model.FieldStatus,
	model.FieldStreet,
	model.FieldCity,
	model.FieldState,
	model.FieldPostalCode,
	model.FieldCountry,
	model.FieldFormattedAddress,
	model.FieldLat,
	model.FieldLng,
	model.FieldPhone,
	model.FieldEmail,
	model.FieldWebsite,
	model.FieldHours,
	model.FieldPrimaryCategory,
	model.FieldSecondaryCats,
	model.FieldRatingValue,
	model.FieldRatingCount,
}

var knownKeys = []string{
	"id", "name", "phone", "emails", "website", "location", "single_line_address", "category_list",
	"hours", "overall_star_rating", "rating_count", "is_permanently_closed", "temporary_status",
}

// 营业时间键形如 mon_1_open / mon_1_close
var dayKeys = []struct {
	day model.Weekday
	key string
}{
	{model.Monday, "mon"},
	{model.Tuesday, "tue"},
	{model.Wednesday, "wed"},
	{model.Thursday, "thu"},
	{model.Friday, "fri"},
	{model.Saturday, "sat"},
	{model.Sunday, "sun"},
}

const (
	tempClosed  = "temporarily_closed"
	tempAsUsual = "operating_as_usual"
)

func dayKey(day model.Weekday) string {
	for _, d := range dayKeys {
		if d.day == day {
			return d.key
		}
	}
	return ""
}

func (a *Adapter) FromCanonical(r *model.BusinessRecord) map[string]any {
	out := map[string]any{"name": r.Name}
	switch r.Status {
	case model.BusinessPermanentlyClosed:
		out["is_permanently_closed"] = true
	case model.BusinessTemporarilyClosed:
		out["temporary_status"] = tempClosed
	case model.BusinessOperational:
		out["temporary_status"] = tempAsUsual
	}

	if loc := r.Location; loc != nil {
		location := map[string]any{}
		adapter.PutStr(location, "street", loc.Street)
		adapter.PutStr(location, "city", loc.City)
		adapter.PutStr(location, "state", loc.State)
		adapter.PutStr(location, "zip", loc.PostalCode)
		adapter.PutStr(location, "country", loc.Country)
		if loc.Lat != nil {
			location["latitude"] = *loc.Lat
		}
		if loc.Lng != nil {
			location["longitude"] = *loc.Lng
		}
		out["location"] = location
		adapter.PutStr(out, "single_line_address", loc.FormattedAddress)
	}

	adapter.PutStr(out, "phone", r.Contact.Phone)
	adapter.PutStr(out, "website", r.Contact.Website)
	if r.Contact.Email != "" {
		out["emails"] = []string{r.Contact.Email}
	}

	if cats := r.Categories.All(); len(cats) > 0 {
		list := make([]map[string]any, 0, len(cats))
		for _, c := range cats {
			list = append(list, map[string]any{"name": c})
		}
		out["category_list"] = list
	}

	if len(r.Hours) > 0 {
		hours := map[string]any{}
		seen := map[model.Weekday]int{}
		for _, h := range r.Hours {
			key := dayKey(h.Day)
			if key == "" {
				continue
			}
			seen[h.Day]++
			hours[fmt.Sprintf("%s_%d_open", key, seen[h.Day])] = h.Open
			hours[fmt.Sprintf("%s_%d_close", key, seen[h.Day])] = h.Close
		}
		out["hours"] = hours
	}

	if r.Rating != nil {
		out["overall_star_rating"] = r.Rating.Value.InexactFloat64()
		out["rating_count"] = r.Rating.Count
	}
	return out
}

// ToCanonical 营业时间按周一到周日、同一天按序号还原
func (a *Adapter) ToCanonical(payload map[string]any) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		Name: adapter.Str(payload, "name"),
		Contact: model.Contact{
			Phone:   adapter.Str(payload, "phone"),
			Website: adapter.Str(payload, "website"),
		},
	}
	if emails := adapter.Strings(payload, "emails"); len(emails) > 0 {
		r.Contact.Email = emails[0]
	}

	switch {
	case adapter.Bool(payload, "is_permanently_closed"):
		r.Status = model.BusinessPermanentlyClosed
	case adapter.Str(payload, "temporary_status") == tempClosed:
		r.Status = model.BusinessTemporarilyClosed
	case adapter.Str(payload, "temporary_status") == tempAsUsual:
		r.Status = model.BusinessOperational
	}

	location := adapter.Map(payload, "location")
	formatted := adapter.Str(payload, "single_line_address")
	if location != nil || formatted != "" {
		r.Location = &model.Location{
			Street:           adapter.Str(location, "street"),
			City:             adapter.Str(location, "city"),
			State:            adapter.Str(location, "state"),
			PostalCode:       adapter.Str(location, "zip"),
			Country:          adapter.Str(location, "country"),
			Lat:              adapter.FloatPtr(location, "latitude"),
			Lng:              adapter.FloatPtr(location, "longitude"),
			FormattedAddress: formatted,
		}
	}

	for i, c := range adapter.Maps(payload, "category_list") {
		name := adapter.Str(c, "name")
		if i == 0 {
			r.Categories.Primary = name
			continue
		}
		r.Categories.Secondary = append(r.Categories.Secondary, name)
	}

	if hours := adapter.Map(payload, "hours"); hours != nil {
		for _, d := range dayKeys {
			for i := 1; ; i++ {
				open := adapter.Str(hours, fmt.Sprintf("%s_%d_open", d.key, i))
				closing := adapter.Str(hours, fmt.Sprintf("%s_%d_close", d.key, i))
				if open == "" && closing == "" {
					break
				}
				r.Hours = append(r.Hours, model.HoursRange{Day: d.day, Open: open, Close: closing})
			}
		}
	}

	if value, ok := adapter.Decimal(payload, "overall_star_rating"); ok {
		r.Rating = &model.Rating{Value: value, Count: adapter.Int(payload, "rating_count")}
	}

	adapter.KeepUnknown(r, a.Name(), payload, knownKeys...)
	return r, nil
}
