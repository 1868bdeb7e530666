package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/logging"
	"github.com/inspectkit/bridge/internal/protocol"
)

// ErrUnknownMethod indicates an inbound method with no registered handler.
var ErrUnknownMethod = errors.New("unknown method")

// Result of a handler invocation.
type Result struct {
	// Value is the reply for the ack path. Nil acks are valid.
	Value any
	// Pending marks a handler that completes asynchronously through the
	// request registry instead of replying now.
	Pending bool
}

// Handler processes one inbound frontend method.
type Handler func(msg protocol.Message) (Result, error)

// Table maps inbound method names to handlers. Registration happens at
// bridge construction; lookups dominate afterwards.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *logging.Logger
}

// NewTable creates an empty dispatch table.
func NewTable(logger *logging.Logger) *Table {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Table{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds method to handler, replacing any previous binding.
func (t *Table) Register(method string, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[method] = handler
}

// Lookup returns the handler for method.
func (t *Table) Lookup(method string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[method]
	return h, ok
}

// Dispatch invokes the handler for msg. Unknown methods and handler
// failures are logged here and reported to the caller, which sends no
// reply in either case.
func (t *Table) Dispatch(msg protocol.Message) (Result, error) {
	handler, ok := t.Lookup(msg.Method)
	if !ok {
		t.logger.Error("unknown frontend method", zap.String("method", msg.Method))
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownMethod, msg.Method)
	}

	res, err := handler(msg)
	if err != nil {
		t.logger.Error("frontend method failed",
			zap.String("method", msg.Method),
			zap.Error(err),
		)
		return Result{}, err
	}
	return res, nil
}

// Methods returns the registered method names, sorted.
func (t *Table) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	methods := make([]string, 0, len(t.handlers))
	for m := range t.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
