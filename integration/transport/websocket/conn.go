package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/realtime/core/logger"
	"github.com/dmitrymomot/realtime/core/stream"
)

// closeGrace bounds the close frame written by ForceClose.
const closeGrace = time.Second

// frame is the JSON envelope of one message.
type frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is one WebSocket stream. It implements stream.Connection.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	closed atomic.Bool
}

// Next reads the next frame. A close frame with a normal or going-away code
// ends the stream with io.EOF.
func (c *Conn) Next(ctx context.Context) (stream.Message, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.Close() })
	defer stop()

	for {
		typ, raw, err := c.ws.ReadMessage()
		if err != nil {
			switch {
			case c.closed.Load():
				return stream.Message{}, stream.ErrConnectionClosed
			case ctx.Err() != nil:
				return stream.Message{}, ctx.Err()
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				return stream.Message{}, io.EOF
			}
			return stream.Message{}, err
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return stream.Message{}, fmt.Errorf("%w: websocket frame: %w", stream.ErrMalformedPayload, err)
		}
		if f.Event == "" {
			c.logger.Debug("frame without event skipped", logger.Component("websocket"))
			continue
		}

		return stream.Message{
			ID:         f.ID,
			Event:      stream.EventType(f.Event),
			Data:       unwrapData(f.Data),
			ReceivedAt: time.Now(),
		}, nil
	}
}

// ForceClose sends a best-effort close frame and closes the socket.
// A blocked Next returns stream.ErrConnectionClosed.
func (c *Conn) ForceClose() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return c.ws.Close()
}

// unwrapData returns the content of a JSON string, so a frame whose data is
// "{\"path\":...}" yields the same bytes as an SSE data line. Other values are
// returned as-is. Absent data yields nil.
func unwrapData(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return []byte(s)
		}
	}
	return []byte(raw)
}
