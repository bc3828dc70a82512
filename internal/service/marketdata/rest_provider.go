package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/pkg/apperr"
	xhttp "Naly/pkg/http"
	"Naly/pkg/util"
)

const (
	defaultReliability = 0.8
	freshnessHorizon   = 30 * 24 * time.Hour
)

var _ repository.MarketDataProvider = (*RESTProvider)(nil)

// RESTProvider fetches samples from an HTTP market data API.
type RESTProvider struct {
	client  *xhttp.Client
	baseURL string
	apiKey  string
	source  string
	now     func() time.Time
}

// NewRESTProvider creates a provider for baseURL. Requests carry apiKey as a
// bearer token when it is set.
func NewRESTProvider(client *xhttp.Client, baseURL, apiKey string) *RESTProvider {
	return &RESTProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		source:  "market-api",
		now:     time.Now,
	}
}

// FetchMarketData queries {baseURL}/market-data and normalizes the records.
func (p *RESTProvider) FetchMarketData(ctx context.Context, req models.MarketDataRequest) ([]models.MarketDataPoint, error) {
	types := make([]string, len(req.DataTypes))
	for i, dt := range req.DataTypes {
		types[i] = string(dt)
	}

	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/market-data",
		QueryParams: map[string][]string{
			"ticker":    {req.Ticker},
			"types":     {strings.Join(types, ",")},
			"start":     {req.StartDate.UTC().Format(time.RFC3339)},
			"end":       {req.EndDate.UTC().Format(time.RFC3339)},
			"frequency": {string(req.Frequency)},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}
	if p.apiKey != "" {
		opts.Headers["Authorization"] = "Bearer " + p.apiKey
	}

	var raw json.RawMessage
	if err := p.client.SendAndParse(ctx, opts, &raw); err != nil {
		return nil, p.mapError(err)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, apperr.APIConnection(http.StatusOK, false, "malformed market data payload").WithError(err)
	}

	fallbackType := models.DataTypePrice
	if len(req.DataTypes) == 1 {
		fallbackType = req.DataTypes[0]
	}

	now := p.now()
	points := make([]models.MarketDataPoint, 0, len(records))
	for _, r := range records {
		pt, ok := p.toPoint(r, req.Ticker, fallbackType, now)
		if !ok {
			continue
		}
		points = append(points, pt)
	}
	return points, nil
}

func (p *RESTProvider) mapError(err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		if se.Status == http.StatusTooManyRequests {
			wait := se.RetryAfter
			if wait <= 0 {
				wait = time.Minute
			}
			return apperr.RateLimited(p.now().Add(wait)).WithError(err)
		}
		return apperr.APIConnection(se.Status, se.Retryable(), fmt.Sprintf("market data API returned %d", se.Status)).WithError(err)
	}
	return apperr.APIConnection(0, true, "market data API unreachable").WithError(err)
}

func decodeRecords(raw json.RawMessage) ([]map[string]interface{}, error) {
	var list []map[string]interface{}
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

func (p *RESTProvider) toPoint(r map[string]interface{}, ticker string, fallback models.DataType, now time.Time) (models.MarketDataPoint, bool) {
	ts, ok := timeField(r, "timestamp", "date", "t")
	if !ok {
		return models.MarketDataPoint{}, false
	}
	value, ok := numberField(r, "value", "close", "price")
	if !ok {
		return models.MarketDataPoint{}, false
	}

	dt := fallback
	if s, ok := r["type"].(string); ok && models.DataType(s).IsValid() {
		dt = models.DataType(s)
	}
	confidence, ok := numberField(r, "confidence")
	if !ok {
		confidence = defaultReliability
	}
	quality, ok := numberField(r, "quality")
	if !ok {
		quality = defaultReliability
	}
	if s, ok := r["ticker"].(string); ok && s != "" {
		ticker = strings.ToUpper(s)
	}

	age := now.Sub(ts)
	freshness := util.Clamp(1-float64(age)/float64(freshnessHorizon), 0, 1)

	return models.MarketDataPoint{
		Source:     p.source,
		Timestamp:  ts.UTC(),
		Ticker:     ticker,
		DataType:   dt,
		Value:      value,
		Confidence: util.Clamp(confidence, 0, 1),
		Metadata: models.DataPointMetadata{
			Reliability:   util.Clamp(confidence, 0, 1),
			Freshness:     freshness,
			SourceQuality: util.Clamp(quality, 0, 1),
		},
	}, true
}

func timeField(r map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if t, ok := util.ParseTime(v); ok {
				return t, true
			}
		case float64:
			if t, ok := util.ParseTime(strconv.FormatInt(int64(v), 10)); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func numberField(r map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := r[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
