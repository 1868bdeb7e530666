package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/inspectkit/bridge/internal/logging"
	"github.com/inspectkit/bridge/internal/resilience"
)

// ErrInsufficientResources is the retryable resource-exhaustion fetch
// failure. All other fetch errors are terminal.
var ErrInsufficientResources = errors.New("insufficient resources")

// IsResourceExhaustion reports whether err is the resource-exhaustion
// failure kind eligible for backoff retry.
func IsResourceExhaustion(err error) bool {
	return errors.Is(err, ErrInsufficientResources)
}

// Request describes the resource to fetch.
type Request struct {
	URL     string
	Headers http.Header
}

// Consumer receives one streamed fetch. Fragment delivery is strictly
// sequential: the fetcher does not read the next fragment until resume
// is called for the current one. OnComplete fires exactly once, after
// the last fragment or on failure.
type Consumer interface {
	OnResponseStarted(status int, headers http.Header)
	OnDataReceived(fragment []byte, resume func())
	OnComplete(err error)
}

// Fetcher issues one streaming fetch. Fetch returns immediately; the
// consumer callbacks run on the fetcher's goroutine.
type Fetcher interface {
	Fetch(ctx context.Context, req Request, consumer Consumer)
}

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	Timeout           time.Duration
	FragmentSize      int
	RequestsPerSecond float64
	Burst             int
	Logger            *logging.Logger
}

// HTTPFetcher fetches resources over HTTP, streaming the body in
// bounded reads. Requests pass a rate limiter and a circuit breaker
// before reaching the network.
type HTTPFetcher struct {
	client       *resty.Client
	limiter      *rate.Limiter
	breaker      *resilience.Breaker
	fragmentSize int
	logger       *logging.Logger
}

// NewHTTPFetcher creates a fetcher with the given limits.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FragmentSize == 0 {
		cfg.FragmentSize = 32 * 1024
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	// Transport-level retries stay off: the load job owns the retry
	// state machine and double-retrying would skew its backoff.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetDoNotParseResponse(true).
		SetHeader("User-Agent", "inspectkit-bridge/1.0")
	client.SetTransport(retryClient.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	breaker := resilience.New("resource-fetch", resilience.Settings{
		FailureThreshold: 10,
		Timeout:          30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("fetch circuit state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &HTTPFetcher{
		client:       client,
		limiter:      limiter,
		breaker:      breaker,
		fragmentSize: cfg.FragmentSize,
		logger:       logger,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request, consumer Consumer) {
	go f.run(ctx, req, consumer)
}

func (f *HTTPFetcher) run(ctx context.Context, req Request, consumer Consumer) {
	if err := f.limiter.Wait(ctx); err != nil {
		consumer.OnComplete(classifyFetchError(err))
		return
	}

	var resp *resty.Response
	err := f.breaker.Execute(func() error {
		r := f.client.R().SetContext(ctx)
		for name, values := range req.Headers {
			for _, value := range values {
				r.Header.Add(name, value)
			}
		}
		var reqErr error
		resp, reqErr = r.Get(req.URL)
		return reqErr
	})
	if err != nil {
		consumer.OnComplete(classifyFetchError(err))
		return
	}

	body := resp.RawBody()
	defer body.Close()

	consumer.OnResponseStarted(resp.StatusCode(), resp.Header())

	buf := make([]byte, f.fragmentSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			fragment := make([]byte, n)
			copy(fragment, buf[:n])
			f.deliver(consumer, fragment)
		}
		if readErr == io.EOF {
			consumer.OnComplete(nil)
			return
		}
		if readErr != nil {
			consumer.OnComplete(classifyFetchError(readErr))
			return
		}
	}
}

// deliver hands one fragment to the consumer and blocks until it calls
// resume, keeping body reads sequential with frontend delivery.
func (f *HTTPFetcher) deliver(consumer Consumer, fragment []byte) {
	resumed := make(chan struct{})
	var once sync.Once
	consumer.OnDataReceived(fragment, func() {
		once.Do(func() { close(resumed) })
	})
	<-resumed
}

// classifyFetchError maps transport errors into the loader's failure
// taxonomy. File-descriptor exhaustion is the one retryable kind;
// typed errno checks first, string matching as a fallback for wrapped
// errors that lost type information.
func classifyFetchError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EMFILE || errno == syscall.ENFILE) {
		return fmt.Errorf("%w: %v", ErrInsufficientResources, err)
	}
	if strings.Contains(err.Error(), "too many open files") {
		return fmt.Errorf("%w: %v", ErrInsufficientResources, err)
	}
	return err
}
