package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, h http.HandlerFunc) (*Adapter, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewWithClient(Name, &config.PlatformConfig{BaseURL: srv.URL}, srv.Client(), logger), &calls
}

func creds() *model.AuthCredentials {
	return &model.AuthCredentials{Platform: Name, Credentials: map[string]string{model.CredToken: "page-token"}}
}

func fullRecord() *model.BusinessRecord {
	lat, lng := 40.7644, -73.9747
	return &model.BusinessRecord{
		Name:   "Royal Spa",
		Status: model.BusinessTemporarilyClosed,
		Location: &model.Location{
			Street:           "12 W 57th St",
			City:             "New York",
			State:            "NY",
			PostalCode:       "10019",
			Country:          "United States",
			FormattedAddress: "12 W 57th St, New York, NY 10019",
			Lat:              &lat,
			Lng:              &lng,
		},
		Contact: model.Contact{
			Phone:   "+1 212 555 0100",
			Email:   "hello@royalspa.example",
			Website: "https://royalspa.example",
		},
		Hours: []model.HoursRange{
			{Day: model.Monday, Open: "09:00", Close: "12:00"},
			{Day: model.Monday, Open: "13:00", Close: "18:00"},
			{Day: model.Saturday, Open: "10:00", Close: "16:00"},
		},
		Categories: model.Categories{Primary: "Spa", Secondary: []string{"Massage Service"}},
		Rating:     &model.Rating{Value: decimal.RequireFromString("4.7"), Count: 312},
		Photos:     []model.Photo{{URL: "https://cdn.example/1.jpg"}, {URL: "https://cdn.example/2.jpg"}},
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	a, _ := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	statuses := []model.BusinessStatus{
		model.BusinessOperational, model.BusinessTemporarilyClosed, model.BusinessPermanentlyClosed,
	}
	for _, status := range statuses {
		in := fullRecord()
		in.Status = status

		raw, err := json.Marshal(a.FromCanonical(in))
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))

		out, err := a.ToCanonical(payload)
		require.NoError(t, err)
		assert.Empty(t, in.DiffFields(out, a.Capabilities().SupportedFields), "status %s", status)
	}
}

func TestTransform_HoursKeys(t *testing.T) {
	a, _ := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	hours := a.FromCanonical(fullRecord())["hours"].(map[string]any)
	assert.Equal(t, "09:00", hours["mon_1_open"])
	assert.Equal(t, "18:00", hours["mon_2_close"])
	assert.Equal(t, "10:00", hours["sat_1_open"])
	assert.Len(t, hours, 6)
}

func TestAdapter_CreateThenUpdate(t *testing.T) {
	a, calls := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer page-token", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Royal Spa", body["name"])
		switch r.URL.Path {
		case "/pages":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"1029384756"}`))
		case "/1029384756":
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	created := a.CreateListing(context.Background(), &model.ListingRequest{Credentials: creds(), Record: fullRecord()})
	require.True(t, created.Success)
	assert.Equal(t, "1029384756", created.PlatformID)

	updated := a.UpdateListing(context.Background(), &model.ListingRequest{
		Credentials: creds(),
		Record:      fullRecord(),
		PlatformID:  created.PlatformID,
	})
	require.True(t, updated.Success)
	assert.Equal(t, "1029384756", updated.PlatformID)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestAdapter_UploadPhotos(t *testing.T) {
	var n int32
	a, calls := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/42/photos", r.URL.Path)
		id := atomic.AddInt32(&n, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
	})
	resp := a.UploadPhotos(context.Background(), &model.ListingRequest{
		Credentials: creds(),
		Record:      fullRecord(),
		PlatformID:  "42",
	})
	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data["uploaded"])
	assert.Equal(t, []string{"1", "2"}, resp.Data["photo_ids"])
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestAdapter_UploadPhotosStopsOnFailure(t *testing.T) {
	a, calls := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	resp := a.UploadPhotos(context.Background(), &model.ListingRequest{
		Credentials: creds(),
		Record:      fullRecord(),
		PlatformID:  "42",
	})
	assert.Equal(t, model.ReasonValidation, resp.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestAdapter_UnsupportedOptionalOps(t *testing.T) {
	a, calls := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	req := &model.ListingRequest{Credentials: creds(), PlatformID: "42"}
	assert.Equal(t, model.ReasonUnsupportedOperation, a.ClaimListing(context.Background(), req).Error)
	assert.Equal(t, model.ReasonUnsupportedOperation, a.VerifyListing(context.Background(), req).Error)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestAdapter_ExpiredTokenIsAuthFailure(t *testing.T) {
	a, _ := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Session has expired","code":190}}`))
	})
	resp := a.DeleteListing(context.Background(), &model.ListingRequest{Credentials: creds(), PlatformID: "42"})
	assert.Equal(t, model.ReasonAuthentication, resp.Error)
	assert.False(t, a.Authenticate(context.Background(), creds()))
}
