package loader

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/inspectkit/bridge/internal/logging"
)

// Backoff policy for the resource-exhaustion failure. The first retry
// waits InitialBackoffDelay; each subsequent retry multiplies the
// previous delay by 1.3. No retry is scheduled once the prior delay
// reached MaxBackoffDelay.
const (
	InitialBackoffDelay = 250 * time.Millisecond
	MaxBackoffDelay     = 10 * time.Second

	backoffMultiplier = 1.3
)

// NextBackoffDelay computes the delay for the attempt after one that
// waited prev.
func NextBackoffDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return InitialBackoffDelay
	}
	return time.Duration(float64(prev) * backoffMultiplier)
}

// shouldRetry decides whether a failed attempt that waited delay gets
// another try.
func shouldRetry(err error, delay time.Duration) bool {
	return IsResourceExhaustion(err) && delay < MaxBackoffDelay
}

// State of a resource load job.
type State int32

const (
	StateScheduled State = iota
	StateFetching
	StateStreaming
	StateRetryScheduled
	StateCompleted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFetching:
		return "fetching"
	case StateStreaming:
		return "streaming"
	case StateRetryScheduled:
		return "retry-scheduled"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Response is the terminal reply for one load request. Headers hold the
// response header lines in enumeration order; a repeated name keeps its
// last value.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
}

// NotFoundResponse is the synchronous reply for an invalid URL.
func NotFoundResponse() Response {
	return Response{StatusCode: http.StatusNotFound, Headers: map[string]string{}}
}

// Sink delivers stream-write events to the frontend.
type Sink interface {
	StreamWrite(streamID int, chunk string, encoded bool)
}

// CompleteFunc receives a job's terminal response. Invoked exactly once
// per load request, across all of its retry attempts.
type CompleteFunc func(resp Response)

// Set tracks live jobs keyed by stream id. A retry replaces the
// occupant of its slot with the successor job; only terminal completion
// removes the slot.
type Set struct {
	mu   sync.Mutex
	jobs map[int]*Job
}

// NewSet creates an empty job set.
func NewSet() *Set {
	return &Set{jobs: make(map[int]*Job)}
}

func (s *Set) put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.cfg.StreamID] = j
}

// drop removes j's slot only while j still occupies it, so a successor
// registered by a retry is never evicted by its predecessor.
func (s *Set) drop(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobs[j.cfg.StreamID] == j {
		delete(s.jobs, j.cfg.StreamID)
	}
}

// Get returns the job occupying streamID's slot.
func (s *Set) Get(streamID int) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[streamID]
	return j, ok
}

// Len returns the number of live jobs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Config describes one load job.
type Config struct {
	StreamID int
	Request  Request
	Fetcher  Fetcher
	Sink     Sink
	Complete CompleteFunc
	Set      *Set
	Logger   *logging.Logger

	// Delay before the fetch is issued. Zero for the first attempt;
	// retries carry the computed backoff delay.
	Delay time.Duration

	// OnRetry is an optional hook observing each rescheduled attempt.
	OnRetry func()
}

// Job is a single fetch attempt for one stream id. It registers itself
// in the owning set on creation and either deregisters on terminal
// completion or hands its slot to a successor carrying the next backoff
// delay.
type Job struct {
	cfg   Config
	state atomic.Int32

	status  int
	headers http.Header
}

// Start creates a job, registers it in its set, and schedules the fetch
// after cfg.Delay.
func Start(cfg Config) *Job {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	j := &Job{cfg: cfg}
	j.state.Store(int32(StateScheduled))
	cfg.Set.put(j)
	time.AfterFunc(cfg.Delay, j.fetch)
	return j
}

// StreamID returns the caller-supplied stream correlation id.
func (j *Job) StreamID() int {
	return j.cfg.StreamID
}

// State returns the job's current state.
func (j *Job) State() State {
	return State(j.state.Load())
}

func (j *Job) fetch() {
	j.state.Store(int32(StateFetching))
	j.cfg.Fetcher.Fetch(context.Background(), j.cfg.Request, j)
}

// OnResponseStarted implements Consumer.
func (j *Job) OnResponseStarted(status int, headers http.Header) {
	j.status = status
	j.headers = headers
}

// OnDataReceived implements Consumer. Fragments that are not valid
// UTF-8 are base64-encoded and flagged; valid text passes through
// verbatim. The fragment is delivered before resume is called, so no
// fragment N+1 is pulled until N's delivery returned.
func (j *Job) OnDataReceived(fragment []byte, resume func()) {
	j.state.Store(int32(StateStreaming))

	encoded := !utf8.Valid(fragment)
	chunk := string(fragment)
	if encoded {
		chunk = base64.StdEncoding.EncodeToString(fragment)
	}
	j.cfg.Sink.StreamWrite(j.cfg.StreamID, chunk, encoded)
	resume()
}

// OnComplete implements Consumer. The resource-exhaustion failure
// reschedules a successor job under the same stream id; everything
// else, success included, delivers the terminal response and removes
// the job from its set.
func (j *Job) OnComplete(err error) {
	if err != nil && shouldRetry(err, j.cfg.Delay) {
		delay := NextBackoffDelay(j.cfg.Delay)
		j.cfg.Logger.Warn("resource load failed with insufficient resources, retrying",
			zap.Int("stream_id", j.cfg.StreamID),
			zap.String("url", j.cfg.Request.URL),
			zap.Duration("delay", delay),
		)
		j.state.Store(int32(StateRetryScheduled))
		if j.cfg.OnRetry != nil {
			j.cfg.OnRetry()
		}

		next := j.cfg
		next.Delay = delay
		Start(next)
		return
	}

	if err != nil {
		j.cfg.Logger.Debug("resource load finished with error",
			zap.Int("stream_id", j.cfg.StreamID),
			zap.Error(err),
		)
	}

	j.state.Store(int32(StateCompleted))
	j.cfg.Complete(j.terminalResponse())
	j.cfg.Set.drop(j)
}

func (j *Job) terminalResponse() Response {
	resp := Response{
		StatusCode: j.status,
		Headers:    make(map[string]string, len(j.headers)),
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	for name, values := range j.headers {
		for _, value := range values {
			resp.Headers[name] = value
		}
	}
	return resp
}
