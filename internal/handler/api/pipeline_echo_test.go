package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"Naly/internal/domain/models"
	"Naly/internal/repository"
	"Naly/internal/services/chart"
	"Naly/pkg/apperr"
	applogger "Naly/pkg/logger"
)

type stubCausal struct{}

func (stubCausal) AnalyzeEvent(_ context.Context, e models.MarketEvent) (*models.CausalAnalysis, error) {
	return &models.CausalAnalysis{EventID: e.ID, ConfidenceScore: 0.6, Methodology: "test"}, nil
}

type stubPrediction struct{ err error }

func (s stubPrediction) GeneratePrediction(context.Context, models.MarketEvent, models.PredictionContext) (*models.PredictiveAnalysis, error) {
	return nil, s.err
}

type recordingData struct{ got models.MarketDataRequest }

func (r *recordingData) GetMarketData(_ context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error) {
	r.got = req
	return []models.MarketDataPoint{{Ticker: req.Ticker, DataType: models.DataTypePrice, Value: 1, Timestamp: req.EndDate}}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, data *recordingData, store *repository.MemoryAnalysisStore, predErr error) (*echo.Echo, *PipelineEchoHandler) {
	t.Helper()
	log := applogger.Nop()
	h := NewPipelineEchoHandler(log, data, stubCausal{}, store, stubPrediction{err: predErr}, nil,
		chart.NewBuilder(store, log), nil, nil)
	h.now = func() time.Time { return time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC) }
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func do(t *testing.T, e *echo.Echo, method, target, body string) envelope {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
	}
	return env
}

const eventBody = `{"event":{"id":"evt-1","ticker":"AAPL","timestamp":"2024-03-01T14:30:00Z","magnitude":40,"significance":0.5}}`

func TestAnalyzeEventEndpoint(t *testing.T) {
	e, _ := newTestServer(t, &recordingData{}, repository.NewMemoryAnalysisStore(), nil)

	env := do(t, e, http.MethodPost, "/api/causal", eventBody)
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", env.Status)
	}
	var got models.CausalAnalysis
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if got.EventID != "evt-1" {
		t.Fatalf("event id = %q", got.EventID)
	}

	if env := do(t, e, http.MethodPost, "/api/causal", `{"event":{"ticker":"AAPL"}}`); env.Status != http.StatusBadRequest {
		t.Fatalf("missing id: status = %d, want 400", env.Status)
	}
}

func TestGetCausalAnalysisEndpoint(t *testing.T) {
	store := repository.NewMemoryAnalysisStore()
	e, _ := newTestServer(t, &recordingData{}, store, nil)

	if env := do(t, e, http.MethodGet, "/api/causal/missing", ""); env.Status != http.StatusNotFound {
		t.Fatalf("missing: status = %d, want 404", env.Status)
	}

	a := &models.CausalAnalysis{EventID: "evt-9", Methodology: "m"}
	if err := store.SaveCausalAnalysis(context.Background(), a); err != nil {
		t.Fatalf("save: %v", err)
	}
	env := do(t, e, http.MethodGet, "/api/causal/evt-9", "")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", env.Status)
	}
	if !strings.Contains(string(env.Data), `"eventId":"evt-9"`) {
		t.Fatalf("unexpected body %s", env.Data)
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient data", apperr.InsufficientData("need more prices"), http.StatusUnprocessableEntity},
		{"validation", apperr.Validation("bad weights"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestServer(t, &recordingData{}, repository.NewMemoryAnalysisStore(), tt.err)
			if env := do(t, e, http.MethodPost, "/api/predictions", eventBody); env.Status != tt.want {
				t.Fatalf("status = %d, want %d", env.Status, tt.want)
			}
		})
	}
}

func TestGenerateVisualizationEndpoint(t *testing.T) {
	e, _ := newTestServer(t, &recordingData{}, repository.NewMemoryAnalysisStore(), nil)

	body := `{"type":"line","title":"Custom","points":[
		{"ticker":"AAPL","dataType":"price","value":100,"timestamp":"2024-03-01T00:00:00Z"},
		{"ticker":"AAPL","dataType":"price","value":101,"timestamp":"2024-03-02T00:00:00Z"}]}`
	env := do(t, e, http.MethodPost, "/api/visualizations", body)
	if env.Status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", env.Status, env.Data)
	}
	var v models.Visualization
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Title != "Custom" {
		t.Fatalf("title = %q, want override", v.Title)
	}
	if v.Configuration.Width != 800 || v.Configuration.Theme != "light" {
		t.Fatalf("configuration defaults not applied: %+v", v.Configuration)
	}

	if env := do(t, e, http.MethodPost, "/api/visualizations", `{"type":"pie"}`); env.Status != http.StatusBadRequest {
		t.Fatalf("unknown type: status = %d, want 400", env.Status)
	}
}

func TestMarketDataDefaultsWindow(t *testing.T) {
	data := &recordingData{}
	e, h := newTestServer(t, data, repository.NewMemoryAnalysisStore(), nil)

	env := do(t, e, http.MethodGet, "/api/market-data?ticker=MSFT", "")
	if env.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", env.Status)
	}
	now := h.now()
	if !data.got.EndDate.Equal(now) || !data.got.StartDate.Equal(now.Add(-defaultMarketWindow)) {
		t.Fatalf("window = %v..%v", data.got.StartDate, data.got.EndDate)
	}
	if len(data.got.DataTypes) != 1 || data.got.DataTypes[0] != models.DataTypePrice {
		t.Fatalf("types = %v, want [price]", data.got.DataTypes)
	}
	if data.got.Frequency != models.FrequencyDay {
		t.Fatalf("frequency = %q", data.got.Frequency)
	}

	do(t, e, http.MethodGet, "/api/market-data?ticker=MSFT&types=price,volume&from=2024-01-01&to=2024-02-01", "")
	if len(data.got.DataTypes) != 2 {
		t.Fatalf("types = %v", data.got.DataTypes)
	}
	if want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !data.got.StartDate.Equal(want) {
		t.Fatalf("from = %v, want %v", data.got.StartDate, want)
	}
}
