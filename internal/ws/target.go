package ws

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/bridge"
	"github.com/inspectkit/bridge/internal/logging"
)

// TargetConn is an agent-host endpoint reached over a websocket, the
// shape a debuggee exposes at /devtools/page/<id>. Protocol commands
// are written as text frames; events stream back to the attached
// client.
type TargetConn struct {
	conn   *websocket.Conn
	logger *logging.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	client bridge.TargetClient
	done   chan struct{}
}

// DialTarget connects to a debuggee websocket endpoint.
func DialTarget(ctx context.Context, targetURL string, logger *logging.Logger) (*TargetConn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial target %s: %w", targetURL, err)
	}
	return &TargetConn{
		conn:   conn,
		logger: logger.Named("target"),
	}, nil
}

// AttachClient starts forwarding target events to client. A previous
// client is replaced.
func (t *TargetConn) AttachClient(client bridge.TargetClient) {
	t.mu.Lock()
	t.client = client
	alreadyReading := t.done != nil
	if !alreadyReading {
		t.done = make(chan struct{})
	}
	t.mu.Unlock()

	if !alreadyReading {
		go t.readLoop()
	}
}

// DetachClient stops event forwarding for client. The connection stays
// open for a later reattach.
func (t *TargetConn) DetachClient(client bridge.TargetClient) {
	t.mu.Lock()
	if t.client == client {
		t.client = nil
	}
	t.mu.Unlock()
}

// DispatchProtocolMessage writes one protocol command to the target.
func (t *TargetConn) DispatchProtocolMessage(message []byte) {
	t.writeMu.Lock()
	err := t.conn.WriteMessage(websocket.TextMessage, message)
	t.writeMu.Unlock()
	if err != nil {
		t.logger.Warn("target write failed", zap.Error(err))
	}
}

// Close tears the connection down. The read loop notices and notifies
// the attached client.
func (t *TargetConn) Close() error {
	return t.conn.Close()
}

// Done is closed when the read loop exits.
func (t *TargetConn) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *TargetConn) readLoop() {
	defer func() {
		t.mu.Lock()
		client := t.client
		t.client = nil
		done := t.done
		t.mu.Unlock()

		if done != nil {
			close(done)
		}
		if client != nil {
			client.TargetClosed()
		}
	}()

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.logger.Warn("target read error", zap.Error(err))
			}
			return
		}

		t.mu.Lock()
		client := t.client
		t.mu.Unlock()
		if client != nil {
			client.DispatchProtocolMessage(raw)
		}
	}
}
