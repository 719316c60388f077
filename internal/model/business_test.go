package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validRecord() BusinessRecord {
	return BusinessRecord{
		Name:    "Royal Spa",
		Contact: Contact{Phone: "+1 212 555 0100", Email: "hello@royalspa.example"},
		Location: &Location{
			Street:           "12 W 57th St",
			City:             "New York",
			State:            "NY",
			Country:          "US",
			FormattedAddress: "12 W 57th St, New York, NY",
		},
		Categories: Categories{Primary: "wellness", Secondary: []string{"spa", "massage"}},
		Hours:      []HoursRange{{Day: Monday, Open: "09:00", Close: "18:00"}},
		Rating:     &Rating{Value: decimal.RequireFromString("4.5"), Count: 120},
	}
}

func TestNewBusinessRecord_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *BusinessRecord)
		wantField string
	}{
		{name: "valid", mutate: func(r *BusinessRecord) {}},
		{name: "empty name", mutate: func(r *BusinessRecord) { r.Name = "   " }, wantField: FieldName},
		{name: "no contact", mutate: func(r *BusinessRecord) { r.Contact = Contact{} }, wantField: "contact"},
		{name: "bad email", mutate: func(r *BusinessRecord) { r.Contact.Email = "not-an-email" }, wantField: "contact.email"},
		{name: "bad status", mutate: func(r *BusinessRecord) { r.Status = "open" }, wantField: "status"},
		{name: "bad hours", mutate: func(r *BusinessRecord) { r.Hours[0].Open = "9am" }, wantField: "hours[0].open"},
		{name: "rating out of range", mutate: func(r *BusinessRecord) { r.Rating.Value = decimal.NewFromInt(6) }, wantField: FieldRatingValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRecord()
			tt.mutate(&in)
			rec, err := NewBusinessRecord(in)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, BusinessOperational, rec.Status)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestNewBusinessRecord_PartialLocationRecordedInAttributes(t *testing.T) {
	in := validRecord()
	in.Location = &Location{City: "New York", Lat: ptr(40.76)}

	rec, err := NewBusinessRecord(in)
	require.NoError(t, err)
	require.NotNil(t, rec.Location)
	audit, ok := rec.Attributes[AttrPartialLocation].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "New York", audit["city"])
	assert.Equal(t, 40.76, audit["lat"])
	assert.Nil(t, in.Attributes, "caller's record must not be touched")
}

func TestBusinessRecord_CloneIsDeep(t *testing.T) {
	in := validRecord()
	in.Attributes = map[string]any{"nested": map[string]any{"k": "v"}}
	cp := in.Clone()

	cp.Categories.Secondary[0] = "changed"
	cp.Location.City = "Boston"
	cp.Attributes["nested"].(map[string]any)["k"] = "x"
	cp.Rating.Count = 1

	assert.Equal(t, "spa", in.Categories.Secondary[0])
	assert.Equal(t, "New York", in.Location.City)
	assert.Equal(t, "v", in.Attributes["nested"].(map[string]any)["k"])
	assert.Equal(t, 120, in.Rating.Count)
}

func TestBusinessRecord_ContentHash(t *testing.T) {
	a := validRecord()
	b := validRecord()
	b.ID = "other-id"
	b.Attributes = map[string]any{"ignored": true}
	b.Rating.Value = decimal.RequireFromString("4.50")
	assert.Equal(t, a.ContentHash(), b.ContentHash())

	b.Contact.Phone = "+1 212 555 0199"
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}

func TestBusinessRecord_DiffFields(t *testing.T) {
	a := validRecord()
	b := a.Clone()
	b.Rating.Value = decimal.RequireFromString("4.50")
	assert.Empty(t, a.DiffFields(b, []string{FieldName, FieldRatingValue, FieldSecondaryCats}))

	b.Name = "Royal Spa NYC"
	assert.Equal(t, []string{FieldName}, a.DiffFields(b, []string{FieldName, FieldCity}))
}

func TestPlatformCapabilities_MissingFields(t *testing.T) {
	caps := PlatformCapabilities{RequiredFields: []string{FieldPhone, FieldWebsite, FieldLocation}}
	rec := validRecord()
	assert.Equal(t, []string{FieldWebsite}, caps.MissingFields(&rec))
}
