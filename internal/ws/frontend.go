package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/logging"
	"github.com/inspectkit/bridge/internal/protocol"
)

// FrontendConn carries a connected inspector frontend over a websocket.
// Client function invocations go out as JSON call frames; raw inbound
// text frames are embedder messages handed to the bridge.
type FrontendConn struct {
	conn   *websocket.Conn
	logger *logging.Logger

	// writeMu serializes writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex
}

// NewFrontendConn wraps an upgraded websocket connection.
func NewFrontendConn(conn *websocket.Conn, logger *logging.Logger) *FrontendConn {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FrontendConn{conn: conn, logger: logger.Named("frontend")}
}

// CallClientFunction delivers one client function invocation as a call
// frame.
func (f *FrontendConn) CallClientFunction(function string, args ...any) error {
	call, err := protocol.NewCall(function, args...)
	if err != nil {
		return err
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.conn.WriteJSON(call)
}

// ReadLoop pumps inbound frames into handle until the connection
// closes. It runs on the caller's goroutine.
func (f *FrontendConn) ReadLoop(handle func(raw []byte)) {
	for {
		_, raw, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.logger.Warn("frontend read error", zap.Error(err))
			}
			return
		}
		handle(raw)
	}
}

// Close closes the underlying connection.
func (f *FrontendConn) Close() error {
	return f.conn.Close()
}
