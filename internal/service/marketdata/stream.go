package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Naly/internal/domain/models"
	"Naly/internal/domain/repository"
	applogger "Naly/pkg/logger"
)

const streamSource = "market-stream"

var _ repository.MarketStream = (*WebSocketStream)(nil)

// WebSocketStream implements repository.MarketStream over a trade feed that
// speaks {"type":"subscribe","symbol":...} and pushes
// {"type":"trade","data":[{"s","p","v","t"}]} frames.
type WebSocketStream struct {
	streamURL      string
	apiKey         string
	pingInterval   time.Duration
	reconnectDelay time.Duration
	bufferSize     int
	log            *applogger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	tickers   []string
}

// StreamOption configures WebSocketStream.
type StreamOption func(*WebSocketStream)

// WithPingInterval sets the keepalive period.
func WithPingInterval(d time.Duration) StreamOption {
	return func(s *WebSocketStream) { s.pingInterval = d }
}

// WithReconnectDelay sets the pause before Reconnect dials again.
func WithReconnectDelay(d time.Duration) StreamOption {
	return func(s *WebSocketStream) { s.reconnectDelay = d }
}

// WithBufferSize sets the capacity of the points channel.
func WithBufferSize(n int) StreamOption {
	return func(s *WebSocketStream) { s.bufferSize = n }
}

// NewWebSocketStream creates an unconnected stream.
func NewWebSocketStream(streamURL, apiKey string, log *applogger.Logger, opts ...StreamOption) *WebSocketStream {
	s := &WebSocketStream{
		streamURL:      streamURL,
		apiKey:         apiKey,
		pingInterval:   30 * time.Second,
		reconnectDelay: 5 * time.Second,
		bufferSize:     1024,
		log:            log.With("market-stream"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials the feed.
func (s *WebSocketStream) Connect(ctx context.Context) error {
	u := s.streamURL
	if s.apiKey != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "token=" + url.QueryEscape(s.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.log.Info("market stream connected")
	return nil
}

// Subscribe asks the feed for trades on each ticker.
func (s *WebSocketStream) Subscribe(ctx context.Context, tickers []string) error {
	conn := s.current()
	if conn == nil {
		return errors.New("stream not connected")
	}
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeJSON(conn, map[string]string{"type": "subscribe", "symbol": t}); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}

	s.mu.Lock()
	s.tickers = append([]string(nil), tickers...)
	s.mu.Unlock()

	s.log.Info("market stream subscribed", applogger.Strings("tickers", tickers))
	return nil
}

type tradeFrame struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type feedMessage struct {
	Type string       `json:"type"`
	Data []tradeFrame `json:"data"`
}

// Read emits a price and a volume sample per trade. Both channels close when
// ctx is done or the connection fails; a failure is sent on the error
// channel first.
func (s *WebSocketStream) Read(ctx context.Context) (<-chan models.MarketDataPoint, <-chan error) {
	points := make(chan models.MarketDataPoint, s.bufferSize)
	errs := make(chan error, 1)

	conn := s.current()
	if conn == nil {
		errs <- errors.New("stream not connected")
		close(points)
		close(errs)
		return points, errs
	}

	done := make(chan struct{})

	// ping loop; also unblocks the reader on cancellation
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				s.writeMu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				s.writeMu.Unlock()
			}
		}
	}()

	go func() {
		defer close(points)
		defer close(errs)
		defer close(done)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				s.setDisconnected()
				if ctx.Err() == nil {
					errs <- fmt.Errorf("stream read: %w", err)
				}
				return
			}
			var m feedMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				for _, p := range tradePoints(d) {
					select {
					case points <- p:
					case <-ctx.Done():
						return
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return points, errs
}

func tradePoints(d tradeFrame) []models.MarketDataPoint {
	ts := time.UnixMilli(d.T).UTC()
	meta := models.DataPointMetadata{Reliability: 0.9, Freshness: 1, SourceQuality: 0.9}
	ticker := strings.ToUpper(d.S)
	return []models.MarketDataPoint{
		{Source: streamSource, Timestamp: ts, Ticker: ticker, DataType: models.DataTypePrice, Value: d.P, Confidence: 0.9, Metadata: meta},
		{Source: streamSource, Timestamp: ts, Ticker: ticker, DataType: models.DataTypeVolume, Value: d.V, Confidence: 0.9, Metadata: meta},
	}
}

// Reconnect closes, waits and dials again, restoring the last subscription.
func (s *WebSocketStream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	tickers := append([]string(nil), s.tickers...)
	s.mu.Unlock()
	if len(tickers) == 0 {
		return nil
	}
	return s.Subscribe(ctx, tickers)
}

// Close closes the connection.
func (s *WebSocketStream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *WebSocketStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *WebSocketStream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *WebSocketStream) setDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *WebSocketStream) writeJSON(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}
