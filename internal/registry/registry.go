package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/logging"
)

// Completion consumes the reply value for one pending request. The
// value is nil when the request was cancelled by session teardown.
type Completion func(value any)

// Registry tracks pending embedder-originated requests by id and binds
// each to a single-use completion. Completions fire at most once; a
// completed or unknown id is a no-op.
type Registry struct {
	mu      sync.Mutex
	pending map[int]Completion
	logger  *logging.Logger
}

// New creates an empty registry.
func New(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		pending: make(map[int]Completion),
		logger:  logger,
	}
}

// Register binds id to completion. A duplicate id is logged and
// ignored, leaving the original binding in place.
func (r *Registry) Register(id int, completion Completion) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		r.logger.Error("request id already registered", zap.Int("id", id))
		return false
	}
	r.pending[id] = completion
	return true
}

// Complete invokes and removes the completion bound to id. Unknown or
// already-completed ids are a no-op.
func (r *Registry) Complete(id int, value any) bool {
	r.mu.Lock()
	completion, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	completion(value)
	return true
}

// Drain resolves every pending completion to a cancelled (nil) outcome
// and empties the registry. Called on session teardown so completions
// are never leaked.
func (r *Registry) Drain() {
	r.mu.Lock()
	drained := r.pending
	r.pending = make(map[int]Completion)
	r.mu.Unlock()

	for _, completion := range drained {
		completion(nil)
	}
}

// Len returns the number of pending requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
