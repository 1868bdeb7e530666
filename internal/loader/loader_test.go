package loader

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attempt scripts one fetch attempt for the fake fetcher.
type attempt struct {
	status    int
	headers   http.Header
	fragments [][]byte
	err       error
}

// fakeFetcher replays scripted attempts sequentially, honoring the
// resume contract.
type fakeFetcher struct {
	mu       sync.Mutex
	script   []attempt
	attempts int
}

func (f *fakeFetcher) Fetch(ctx context.Context, req Request, consumer Consumer) {
	f.mu.Lock()
	i := f.attempts
	f.attempts++
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	a := f.script[i]
	f.mu.Unlock()

	go func() {
		if a.status != 0 {
			consumer.OnResponseStarted(a.status, a.headers)
		}
		for _, frag := range a.fragments {
			resumed := make(chan struct{})
			consumer.OnDataReceived(frag, func() { close(resumed) })
			<-resumed
		}
		consumer.OnComplete(a.err)
	}()
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// recordingSink captures stream-write deliveries in order.
type recordingSink struct {
	mu     sync.Mutex
	writes []streamWrite
}

type streamWrite struct {
	streamID int
	chunk    string
	encoded  bool
}

func (s *recordingSink) StreamWrite(streamID int, chunk string, encoded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, streamWrite{streamID, chunk, encoded})
}

func (s *recordingSink) all() []streamWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]streamWrite, len(s.writes))
	copy(out, s.writes)
	return out
}

// startJob wires a job against the fake fetcher and returns a channel
// carrying the terminal responses.
func startJob(t *testing.T, streamID int, fetcher Fetcher, sink Sink, set *Set) <-chan Response {
	t.Helper()
	done := make(chan Response, 4)
	Start(Config{
		StreamID: streamID,
		Request:  Request{URL: "https://example.test/map.js.map"},
		Fetcher:  fetcher,
		Sink:     sink,
		Complete: func(resp Response) { done <- resp },
		Set:      set,
	})
	return done
}

func waitTerminal(t *testing.T, done <-chan Response) Response {
	t.Helper()
	select {
	case resp := <-done:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal response")
		return Response{}
	}
}

func TestBackoffSequence(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, NextBackoffDelay(0))
	assert.Equal(t, 325*time.Millisecond, NextBackoffDelay(250*time.Millisecond))
	assert.Equal(t, 422500*time.Microsecond, NextBackoffDelay(325*time.Millisecond))
}

func TestShouldRetry(t *testing.T) {
	exhausted := ErrInsufficientResources
	other := errors.New("connection refused")

	assert.True(t, shouldRetry(exhausted, 0))
	assert.True(t, shouldRetry(exhausted, 9*time.Second))
	assert.False(t, shouldRetry(exhausted, 10*time.Second), "no retry once the prior delay reached the cap")
	assert.False(t, shouldRetry(exhausted, 11*time.Second))
	assert.False(t, shouldRetry(other, 0), "only resource exhaustion retries")
	assert.False(t, shouldRetry(nil, 0))
}

func TestStreamingDeliveriesThenTerminal(t *testing.T) {
	fetcher := &fakeFetcher{script: []attempt{{
		status:    200,
		headers:   http.Header{"Content-Type": {"application/json"}},
		fragments: [][]byte{[]byte("0123456789"), []byte("abcde")},
	}}}
	sink := &recordingSink{}
	set := NewSet()

	done := startJob(t, 3, fetcher, sink, set)
	resp := waitTerminal(t, done)

	writes := sink.all()
	require.Len(t, writes, 2)
	assert.Equal(t, streamWrite{3, "0123456789", false}, writes[0])
	assert.Equal(t, streamWrite{3, "abcde", false}, writes[1])

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, 0, set.Len(), "job must deregister on terminal completion")
}

func TestBinaryFragmentBase64RoundTrip(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0x00, 0x80, 0x41}
	fetcher := &fakeFetcher{script: []attempt{{
		status:    200,
		fragments: [][]byte{raw},
	}}}
	sink := &recordingSink{}
	set := NewSet()

	done := startJob(t, 1, fetcher, sink, set)
	waitTerminal(t, done)

	writes := sink.all()
	require.Len(t, writes, 1)
	assert.True(t, writes[0].encoded, "invalid UTF-8 must be flagged encoded")

	decoded, err := base64.StdEncoding.DecodeString(writes[0].chunk)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestTextFragmentPassesVerbatim(t *testing.T) {
	fetcher := &fakeFetcher{script: []attempt{{
		status:    200,
		fragments: [][]byte{[]byte("plain text ⚙ unicode")},
	}}}
	sink := &recordingSink{}
	set := NewSet()

	done := startJob(t, 1, fetcher, sink, set)
	waitTerminal(t, done)

	writes := sink.all()
	require.Len(t, writes, 1)
	assert.False(t, writes[0].encoded)
	assert.Equal(t, "plain text ⚙ unicode", writes[0].chunk)
}

func TestRetryOnResourceExhaustionThenSuccess(t *testing.T) {
	fetcher := &fakeFetcher{script: []attempt{
		{err: ErrInsufficientResources},
		{status: 200, fragments: [][]byte{[]byte("ok")}},
	}}
	sink := &recordingSink{}
	set := NewSet()

	var retries int
	done := make(chan Response, 4)
	Start(Config{
		StreamID: 7,
		Request:  Request{URL: "https://example.test/map.js.map"},
		Fetcher:  fetcher,
		Sink:     sink,
		Complete: func(resp Response) { done <- resp },
		Set:      set,
		OnRetry:  func() { retries++ },
	})

	resp := waitTerminal(t, done)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, fetcher.count(), "one original attempt plus one retry")
	assert.Equal(t, 1, retries)
	assert.Equal(t, 0, set.Len())

	writes := sink.all()
	require.Len(t, writes, 1)
	assert.Equal(t, 7, writes[0].streamID, "retry keeps the original stream id")

	// exactly one terminal response
	select {
	case extra := <-done:
		t.Fatalf("unexpected second terminal response: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNonRetryableFailureIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{script: []attempt{
		{err: errors.New("connection refused")},
	}}
	sink := &recordingSink{}
	set := NewSet()

	done := startJob(t, 2, fetcher, sink, set)
	resp := waitTerminal(t, done)

	assert.Equal(t, http.StatusOK, resp.StatusCode, "status defaults to 200 when unavailable")
	assert.Equal(t, 1, fetcher.count(), "no retry for other failures")
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, sink.all())
}

func TestRetrySlotReplacement(t *testing.T) {
	release := make(chan struct{})
	fetcher := &blockingThenFailFetcher{release: release}
	set := NewSet()

	done := make(chan Response, 1)
	first := Start(Config{
		StreamID: 9,
		Request:  Request{URL: "https://example.test/r"},
		Fetcher:  fetcher,
		Sink:     &recordingSink{},
		Complete: func(resp Response) { done <- resp },
		Set:      set,
	})

	occupant, ok := set.Get(9)
	require.True(t, ok)
	assert.Same(t, first, occupant)

	close(release) // first attempt fails with resource exhaustion

	require.Eventually(t, func() bool {
		j, ok := set.Get(9)
		return ok && j != first
	}, 2*time.Second, 10*time.Millisecond, "retry must install a successor in the same slot")

	assert.Equal(t, StateRetryScheduled, first.State())
	waitTerminal(t, done)
	assert.Equal(t, 0, set.Len())
}

// blockingThenFailFetcher fails its first attempt with resource
// exhaustion once released, then succeeds.
type blockingThenFailFetcher struct {
	mu       sync.Mutex
	release  chan struct{}
	attempts int
}

func (f *blockingThenFailFetcher) Fetch(ctx context.Context, req Request, consumer Consumer) {
	f.mu.Lock()
	first := f.attempts == 0
	f.attempts++
	f.mu.Unlock()

	go func() {
		if first {
			<-f.release
			consumer.OnComplete(ErrInsufficientResources)
			return
		}
		consumer.OnResponseStarted(200, nil)
		consumer.OnComplete(nil)
	}()
}

func TestHeaderLastValueWins(t *testing.T) {
	fetcher := &fakeFetcher{script: []attempt{{
		status: 200,
		headers: http.Header{
			"Set-Cookie": {"first=1", "second=2"},
		},
	}}}
	set := NewSet()

	done := startJob(t, 4, fetcher, &recordingSink{}, set)
	resp := waitTerminal(t, done)

	assert.Equal(t, "second=2", resp.Headers["Set-Cookie"])
}

func TestNotFoundResponse(t *testing.T) {
	resp := NotFoundResponse()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotNil(t, resp.Headers)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "scheduled", StateScheduled.String())
	assert.Equal(t, "retry-scheduled", StateRetryScheduled.String())
	assert.Equal(t, "unknown", State(99).String())
}
