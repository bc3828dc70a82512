package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Naly/internal/domain/models"
	"Naly/pkg/apperr"
	xhttp "Naly/pkg/http"
)

func TestRESTProviderParsesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market-data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ticker") != "AAPL" || r.URL.Query().Get("types") != "price,volume" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"date":"2024-01-02","close":"185.5","confidence":0.95},
			{"timestamp":1704153600000,"value":1200000,"type":"volume","quality":0.7},
			{"note":"no timestamp"}
		]}`))
	}))
	defer srv.Close()

	p := NewRESTProvider(xhttp.NewClient(xhttp.WithTimeout(time.Second)), srv.URL+"/", "secret")
	p.now = func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) }

	points, err := p.FetchMarketData(context.Background(), models.MarketDataRequest{
		Ticker:    "AAPL",
		DataTypes: []models.DataType{models.DataTypePrice, models.DataTypeVolume},
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Frequency: models.FrequencyDay,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}

	price := points[0]
	if price.DataType != models.DataTypePrice || price.Value != 185.5 || price.Confidence != 0.95 {
		t.Fatalf("unexpected price point %+v", price)
	}
	if price.Metadata.Freshness <= 0.9 || price.Metadata.Freshness > 1 {
		t.Fatalf("unexpected freshness %v", price.Metadata.Freshness)
	}

	vol := points[1]
	if vol.DataType != models.DataTypeVolume || vol.Value != 1200000 || vol.Metadata.SourceQuality != 0.7 {
		t.Fatalf("unexpected volume point %+v", vol)
	}
	if !vol.Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("millisecond timestamp not parsed: %v", vol.Timestamp)
	}
}

func TestRESTProviderMapsStatuses(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		kind      apperr.Kind
		retryable bool
	}{
		{"server error", http.StatusServiceUnavailable, apperr.KindAPIConnection, true},
		{"not found", http.StatusNotFound, apperr.KindAPIConnection, false},
		{"throttled", http.StatusTooManyRequests, apperr.KindAPIRateLimit, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "30")
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := NewRESTProvider(xhttp.NewClient(xhttp.WithTimeout(time.Second)), srv.URL, "")
			_, err := p.FetchMarketData(context.Background(), models.MarketDataRequest{
				Ticker:    "AAPL",
				DataTypes: []models.DataType{models.DataTypePrice},
				StartDate: time.Now().Add(-time.Hour),
				EndDate:   time.Now(),
			})
			if apperr.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if apperr.IsRetryable(err) != tc.retryable {
				t.Fatalf("retryable mismatch for %v", err)
			}
			if tc.status == http.StatusTooManyRequests {
				if _, ok := apperr.ResetAt(err); !ok {
					t.Fatalf("rate limit error should carry reset time")
				}
			}
		})
	}
}
