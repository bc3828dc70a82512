package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"Naly/internal/domain/models"
	"Naly/internal/service/marketdata"
	xhttp "Naly/pkg/http"
	xlogger "Naly/pkg/logger"
	"Naly/pkg/util"
)

const streamWriteWait = 10 * time.Second

type Streamer interface {
	StreamMarketData(ctx context.Context, tickers []string) (*marketdata.Stream, error)
}

// StreamEchoHandler relays live market data to websocket clients.
type StreamEchoHandler struct {
	logger   *xlogger.Logger
	streamer Streamer
	upgrader websocket.Upgrader
}

func NewStreamEchoHandler(logger *xlogger.Logger, streamer Streamer) *StreamEchoHandler {
	return &StreamEchoHandler{
		logger:   logger.With("http-stream"),
		streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/market-data/stream", h.Stream)
}

// Stream upgrades the connection and forwards points for ?tickers=A,B until
// either side closes.
func (h *StreamEchoHandler) Stream(c echo.Context) error {
	tickers := util.SplitCSV(c.QueryParam("tickers"))
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	stream, err := h.streamer.StreamMarketData(ctx, tickers)
	if err != nil {
		return xhttp.DomainErrorResponse(c, err)
	}
	defer stream.Close()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	// Client messages are ignored; a read error means the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-stream.Points():
			if !ok {
				return nil
			}
			if err := h.write(conn, p); err != nil {
				return nil
			}
		case err, ok := <-stream.Errors():
			if ok && err != nil {
				h.logger.Warn("market stream failed", xlogger.Strings("tickers", tickers), xlogger.Error(err))
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream stream failed"),
					time.Now().Add(streamWriteWait))
			}
			return nil
		}
	}
}

func (h *StreamEchoHandler) write(conn *websocket.Conn, p models.MarketDataPoint) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(p)
}
