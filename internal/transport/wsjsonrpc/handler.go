// Package wsjsonrpc carries protocol messages over a WebSocket, one text
// frame per message.
package wsjsonrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/samiralibabic/stepd/internal/transport"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeFunc runs one connection until it ends.
type ServeFunc func(ctx context.Context, f transport.Framer, remote string) error

func Handler(serve ServeFunc, maxBytes int, log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.V(1).Info("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
			return
		}
		defer conn.Close()

		f := NewFramer(conn, maxBytes)
		if err := serve(r.Context(), f, r.RemoteAddr); err != nil {
			log.Error(err, "WebSocket connection ended with error", "remote", r.RemoteAddr)
			_ = f.close(websocket.CloseProtocolError, "connection error")
			return
		}
		_ = f.close(websocket.CloseNormalClosure, "")
	}
}

type Framer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewFramer wraps an established connection. A positive maxBytes limits the
// size of a single incoming message.
func NewFramer(conn *websocket.Conn, maxBytes int) *Framer {
	if maxBytes > 0 {
		conn.SetReadLimit(int64(maxBytes))
	}
	return &Framer{conn: conn}
}

func (f *Framer) ReadMessage() ([]byte, error) {
	for {
		mt, payload, err := f.conn.ReadMessage()
		switch {
		case err == nil:
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
			return nil, io.EOF
		case errors.Is(err, websocket.ErrReadLimit):
			return nil, fmt.Errorf("%w: %v", transport.ErrMalformedFrame, err)
		default:
			return nil, err
		}
		switch mt {
		case websocket.TextMessage, websocket.BinaryMessage:
			if len(payload) == 0 {
				continue
			}
			return payload, nil
		}
	}
}

func (f *Framer) WriteMessage(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn.WriteMessage(websocket.TextMessage, msg)
}

func (f *Framer) close(code int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
