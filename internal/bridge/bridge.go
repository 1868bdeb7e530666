package bridge

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/dispatch"
	"github.com/inspectkit/bridge/internal/loader"
	"github.com/inspectkit/bridge/internal/logging"
	"github.com/inspectkit/bridge/internal/monitoring"
	"github.com/inspectkit/bridge/internal/prefs"
	"github.com/inspectkit/bridge/internal/protocol"
	"github.com/inspectkit/bridge/internal/registry"
)

// defaultMaxMessageSize matches the historical transport ceiling the
// chunk threshold derives from.
const defaultMaxMessageSize = 128 * 1024 * 1024

// Target is the agent-host endpoint the bridge attaches to: the
// debuggee side accepting protocol commands and emitting events.
type Target interface {
	AttachClient(client TargetClient)
	DetachClient(client TargetClient)
	DispatchProtocolMessage(message []byte)
}

// TargetClient receives protocol events back from the target. The
// bridge implements this.
type TargetClient interface {
	DispatchProtocolMessage(message []byte)
	TargetClosed()
}

// Frontend is the delivery primitive toward the inspector UI: invoke a
// client function by name with up to three JSON-serializable arguments.
// Transport framing is the implementation's concern.
type Frontend interface {
	CallClientFunction(function string, args ...any) error
}

// Config assembles a bridge.
type Config struct {
	Frontend Frontend
	Prefs    prefs.Store
	Fetcher  loader.Fetcher
	Delegate Delegate
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics

	// MaxMessageSize is the largest single transport message; outbound
	// payloads chunk at a quarter of it.
	MaxMessageSize int
}

// Bridge connects one inspector frontend to one agent-host target,
// moving protocol messages in both directions. It owns the session
// lifecycle, the pending-request registry, and the set of live
// resource load jobs.
type Bridge struct {
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	frontend Frontend
	prefs    prefs.Store
	fetcher  loader.Fetcher
	delegate Delegate

	table    *dispatch.Table
	requests *registry.Registry
	jobs     *loader.Set

	chunkThreshold int

	// dispatchMu serializes inbound dispatch so no two handlers for
	// this bridge run concurrently.
	dispatchMu sync.Mutex

	// mu guards session and target. Never held across frontend or
	// target calls.
	mu      sync.Mutex
	session *Session
	target  Target
}

// New creates a detached bridge. Call Show to open a session.
func New(cfg Config) (*Bridge, error) {
	if cfg.Frontend == nil {
		return nil, errors.New("bridge: frontend is required")
	}
	if cfg.Prefs == nil {
		return nil, errors.New("bridge: preference store is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("bridge: fetcher is required")
	}
	if cfg.Delegate == nil {
		cfg.Delegate = NopDelegate{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetricsWithRegistry(prometheus.NewRegistry())
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	b := &Bridge{
		logger:         cfg.Logger.Named("bridge"),
		metrics:        cfg.Metrics,
		frontend:       cfg.Frontend,
		prefs:          cfg.Prefs,
		fetcher:        cfg.Fetcher,
		delegate:       cfg.Delegate,
		requests:       registry.New(cfg.Logger),
		jobs:           loader.NewSet(),
		chunkThreshold: cfg.MaxMessageSize / 4,
	}
	b.table = dispatch.NewTable(cfg.Logger)
	b.registerHandlers()
	return b, nil
}

// Show opens a session and attaches to target. An existing session is
// kept; a nil target leaves the bridge detached.
func (b *Bridge) Show(target Target) {
	b.mu.Lock()
	if b.session == nil {
		b.session = newSession(b.prefs)
		b.metrics.SessionsActive.Inc()
		b.logger.Info("session opened", zap.String("session_id", b.session.ID))
	}
	b.mu.Unlock()

	b.Attach(target)
}

// Close tears the session down: delivery becomes a no-op, the target
// is detached, and every pending request resolves to cancelled.
// In-flight load jobs are not aborted; they find delivery a no-op and
// still deregister themselves.
func (b *Bridge) Close() {
	b.mu.Lock()
	session := b.session
	b.session = nil
	b.mu.Unlock()

	if session == nil {
		return
	}
	b.metrics.SessionsActive.Dec()
	b.logger.Info("session closed", zap.String("session_id", session.ID))

	b.Detach()
	b.requests.Drain()
}

// Attach binds the bridge to target, detaching from any previous
// target first. A nil target is a no-op.
func (b *Bridge) Attach(target Target) {
	if target == nil {
		return
	}
	b.Detach()

	b.mu.Lock()
	b.target = target
	b.mu.Unlock()
	target.AttachClient(b)
}

// Detach releases the target binding. Safe to call when not attached.
func (b *Bridge) Detach() {
	b.mu.Lock()
	target := b.target
	b.target = nil
	b.mu.Unlock()

	if target != nil {
		target.DetachClient(b)
	}
}

// Attached reports whether a target is bound.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.target != nil
}

// SessionInfo returns a copy of the current session state.
func (b *Bridge) SessionInfo() (SessionInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return SessionInfo{}, false
	}
	return b.session.info(), true
}

// ExtensionScript returns the script registered for origin, if any.
// Origins are stored with a trailing slash.
func (b *Bridge) ExtensionScript(origin string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return "", false
	}
	script, ok := b.session.extensions[origin]
	return script, ok
}

// SetDockState updates the dock label. The "detach" label disables
// docking without replacing the remembered state.
func (b *Bridge) SetDockState(state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return
	}
	if state == "detach" {
		b.session.CanDock = false
		return
	}
	b.session.CanDock = true
	b.session.DockState = state
}

// SaveBounds persists the inspector bounds and mirrors them in the
// session.
func (b *Bridge) SaveBounds(bounds prefs.Rect) {
	b.prefs.SetBounds(bounds)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Bounds = bounds
	}
}

// ActiveLoads returns the number of resource load jobs in flight.
func (b *Bridge) ActiveLoads() int {
	return b.jobs.Len()
}

// PendingRequests returns the number of unanswered async requests.
func (b *Bridge) PendingRequests() int {
	return b.requests.Len()
}

// DispatchProtocolMessage implements TargetClient: one outbound
// protocol event from the agent host toward the frontend. Events
// arriving before the frontend signals loaded are dropped, not queued.
func (b *Bridge) DispatchProtocolMessage(message []byte) {
	b.mu.Lock()
	deliverable := b.session != nil && b.session.FrontendLoaded
	b.mu.Unlock()

	if !deliverable {
		b.metrics.MessagesDropped.WithLabelValues("not_loaded").Inc()
		b.logger.Debug("dropping outbound message before frontend load",
			zap.Int("size", len(message)))
		return
	}

	b.metrics.MessagesDispatched.WithLabelValues("outbound").Inc()

	payload := string(message)
	if len(payload) < b.chunkThreshold {
		b.callClient(protocol.FnDispatchMessage, payload)
		return
	}

	b.metrics.ChunkedDeliveries.Inc()
	total := len(payload)
	for pos := 0; pos < len(payload); pos += b.chunkThreshold {
		end := pos + b.chunkThreshold
		if end > len(payload) {
			end = len(payload)
		}
		// Only the first chunk carries the total length.
		if pos == 0 {
			b.callClient(protocol.FnDispatchMessageChunk, payload[pos:end], total)
		} else {
			b.callClient(protocol.FnDispatchMessageChunk, payload[pos:end])
		}
		b.metrics.ChunksDelivered.Inc()
	}
}

// TargetClosed implements TargetClient: the debuggee is gone, which
// forces detach and session teardown.
func (b *Bridge) TargetClosed() {
	b.logger.Warn("target closed")
	b.Close()
}

// HandleFrontendMessage dispatches one raw inbound frontend message.
// Malformed messages and unknown methods are logged and dropped with
// no reply.
func (b *Bridge) HandleFrontendMessage(raw []byte) {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	msg, err := protocol.Parse(raw)
	if err != nil {
		b.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		b.logger.Error("invalid message from frontend", zap.Error(err))
		return
	}

	res, err := b.table.Dispatch(msg)
	if err != nil {
		reason := "handler_error"
		if errors.Is(err, dispatch.ErrUnknownMethod) {
			reason = "unknown_method"
		}
		b.metrics.MessagesDropped.WithLabelValues(reason).Inc()
		return
	}

	b.metrics.MessagesDispatched.WithLabelValues("inbound").Inc()
	if !res.Pending && msg.HasID {
		b.sendMessageAck(msg.ID, res.Value)
	}
}

// StreamWrite implements loader.Sink, forwarding one body fragment to
// the frontend.
func (b *Bridge) StreamWrite(streamID int, chunk string, encoded bool) {
	b.callClient(protocol.FnStreamWrite, streamID, chunk, encoded)
}

// sendMessageAck replies to an embedder request. Acks travel the same
// delivery path as every other payload, so after teardown they become
// no-ops rather than errors.
func (b *Bridge) sendMessageAck(id int, value any) {
	b.metrics.AcksDelivered.Inc()
	b.callClient(protocol.FnMessageAck, id, value)
}

// callClient invokes a client function on the frontend. A closed
// session makes this a silent no-op.
func (b *Bridge) callClient(function string, args ...any) {
	b.mu.Lock()
	closed := b.session == nil
	b.mu.Unlock()
	if closed {
		return
	}

	if err := b.frontend.CallClientFunction(function, args...); err != nil {
		b.logger.Warn("client function delivery failed",
			zap.String("function", function),
			zap.Error(err),
		)
	}
}
