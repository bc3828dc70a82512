package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	"Naly/internal/service/marketdata"
	applogger "Naly/pkg/logger"
)

type chanStream struct {
	points chan models.MarketDataPoint
}

func (s *chanStream) Connect(context.Context) error             { return nil }
func (s *chanStream) Subscribe(context.Context, []string) error { return nil }
func (s *chanStream) Read(context.Context) (<-chan models.MarketDataPoint, <-chan error) {
	return s.points, make(chan error)
}
func (s *chanStream) Close() error      { return nil }
func (s *chanStream) IsConnected() bool { return true }

func newStreamServer(t *testing.T, src *chanStream) *httptest.Server {
	t.Helper()
	gw := marketdata.NewGateway(nil, applogger.Nop(),
		marketdata.WithStreamFactory(func() repository.MarketStream { return src }))
	e := echo.New()
	NewStreamEchoHandler(applogger.Nop(), gw).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamRelaysPoints(t *testing.T) {
	src := &chanStream{points: make(chan models.MarketDataPoint, 1)}
	srv := newStreamServer(t, src)
	src.points <- models.MarketDataPoint{Ticker: "AAPL", DataType: models.DataTypePrice, Value: 187.5}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/market-data/stream?tickers=aapl"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var p models.MarketDataPoint
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read: %v", err)
	}
	if p.Ticker != "AAPL" || p.Value != 187.5 {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestStreamRejectsMissingTickers(t *testing.T) {
	srv := newStreamServer(t, &chanStream{points: make(chan models.MarketDataPoint)})

	resp, err := http.Get(srv.URL + "/api/market-data/stream")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}
}
