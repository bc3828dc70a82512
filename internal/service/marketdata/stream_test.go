package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"Naly/internal/domain/models"
	applogger "Naly/pkg/logger"
)

func TestWebSocketStreamEmitsTradeSamples(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"aapl","p":190.5,"v":42,"t":1704153600000}]}`))

		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewWebSocketStream("ws"+strings.TrimPrefix(srv.URL, "http"), "k", applogger.Nop(), WithPingInterval(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !s.IsConnected() {
		t.Fatalf("expected connected")
	}
	if err := s.Subscribe(ctx, []string{"AAPL"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := <-subscribed; got != "AAPL" {
		t.Fatalf("unexpected subscription %q", got)
	}

	points, _ := s.Read(ctx)
	var got []models.MarketDataPoint
	for len(got) < 2 {
		select {
		case p := <-points:
			got = append(got, p)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for samples")
		}
	}

	if got[0].DataType != models.DataTypePrice || got[0].Value != 190.5 || got[0].Ticker != "AAPL" {
		t.Fatalf("unexpected price sample %+v", got[0])
	}
	if got[1].DataType != models.DataTypeVolume || got[1].Value != 42 {
		t.Fatalf("unexpected volume sample %+v", got[1])
	}
	if !got[0].Timestamp.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", got[0].Timestamp)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.IsConnected() {
		t.Fatalf("expected disconnected after close")
	}
}

func TestWebSocketStreamReadWithoutConnect(t *testing.T) {
	s := NewWebSocketStream("ws://127.0.0.1:1", "", applogger.Nop())
	points, errs := s.Read(context.Background())
	if err := <-errs; err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := <-points; ok {
		t.Fatalf("points channel should be closed")
	}
}
