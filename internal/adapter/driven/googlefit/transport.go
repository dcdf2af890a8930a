package googlefit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"
	"github.com/zeromicro/go-zero/core/collection"
	"golang.org/x/time/rate"
)

// TransportConfig tunes the provider HTTP client.
type TransportConfig struct {
	// Timeout bounds a whole call, including rate limit and retry waits.
	Timeout time.Duration

	// RequestsPerSecond caps outgoing calls across all users. Zero disables
	// the limit.
	RequestsPerSecond float64
	Burst             int

	// MaxRetries is how many times a 429 or 503 answer is retried.
	MaxRetries int
	// MaxRetryWait is the longest single wait accepted. A Retry-After beyond
	// it returns the throttled response as is.
	MaxRetryWait time.Duration

	// CacheTTL is how long a user's response cache lives.
	CacheTTL time.Duration
}

// DefaultTransportConfig returns the production transport settings.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:           15 * time.Second,
		RequestsPerSecond: 10,
		Burst:             10,
		MaxRetries:        2,
		MaxRetryWait:      10 * time.Second,
		CacheTTL:          time.Hour,
	}
}

// NewHTTPClient creates the provider HTTP client with the following transport stack:
//  1. per-user httpcache (conditional request caching for GET listings and datasets)
//  2. throttle (client-side rate limit, then Retry-After aware retries on 429 and 503)
func NewHTTPClient(cfg TransportConfig) (*http.Client, error) {
	defaults := DefaultTransportConfig()
	if cfg.MaxRetryWait <= 0 {
		cfg.MaxRetryWait = defaults.MaxRetryWait
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	throttle := &throttleTransport{
		next:         http.DefaultTransport,
		limiter:      rate.NewLimiter(limit, burst),
		maxRetries:   cfg.MaxRetries,
		maxRetryWait: cfg.MaxRetryWait,
	}

	caches, err := collection.NewCache(cfg.CacheTTL, collection.WithName("provider-responses"))
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}

	return &http.Client{
		Transport: &userCacheTransport{next: throttle, caches: caches},
		Timeout:   cfg.Timeout,
	}, nil
}

type cacheScopeKey struct{}

// withCacheScope marks ctx as belonging to userID so its GET responses are
// cached in that user's cache only.
func withCacheScope(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, cacheScopeKey{}, userID)
}

// userCacheTransport keeps one response cache per user. Every provider path
// lives under /users/me, so the URL alone does not identify whose data a
// response holds. Requests without a user scope bypass caching.
type userCacheTransport struct {
	next   http.RoundTripper
	caches *collection.Cache
}

func (t *userCacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	userID, _ := req.Context().Value(cacheScopeKey{}).(string)
	if userID == "" {
		return t.next.RoundTrip(req)
	}

	v, err := t.caches.Take(userID, func() (any, error) {
		return &httpcache.Transport{
			Transport:           t.next,
			Cache:               httpcache.NewMemoryCache(),
			MarkCachedResponses: true,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("response cache for %s: %w", userID, err)
	}
	return v.(*httpcache.Transport).RoundTrip(req)
}

var errThrottled = errors.New("provider throttled the request")

// throttleTransport waits on a shared rate limiter before every attempt and
// retries 429 and 503 answers, honouring Retry-After when the provider sends
// it. When retries run out the last throttled response is returned.
type throttleTransport struct {
	next         http.RoundTripper
	limiter      *rate.Limiter
	maxRetries   int
	maxRetryWait time.Duration
}

func (t *throttleTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	fallback := backoff.NewExponentialBackOff()
	fallback.InitialInterval = 500 * time.Millisecond
	fallback.MaxInterval = t.maxRetryWait
	fallback.MaxElapsedTime = 0
	policy := &retryAfterBackOff{fallback: fallback}

	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		if resp != nil {
			drainAndClose(resp)
			resp = nil
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		out, err := t.send(req, attempt)
		attempt++
		if err != nil {
			return backoff.Permanent(err)
		}
		resp = out
		if out.StatusCode != http.StatusTooManyRequests && out.StatusCode != http.StatusServiceUnavailable {
			return nil
		}

		if wait, ok := parseRetryAfter(out.Header, time.Now()); ok {
			if wait > t.maxRetryWait {
				return backoff.Permanent(errThrottled)
			}
			policy.hintNext(wait)
		}
		return errThrottled
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.maxRetries)), ctx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil, errors.Is(err, errThrottled):
		return resp, nil
	default:
		if resp != nil {
			drainAndClose(resp)
		}
		return nil, err
	}
}

// send issues attempt n of req. Retries go out on a clone with a fresh body.
func (t *throttleTransport) send(req *http.Request, n int) (*http.Response, error) {
	if n == 0 {
		return t.next.RoundTrip(req)
	}

	retry := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}
	return t.next.RoundTrip(retry)
}

// retryAfterBackOff prefers the provider's Retry-After hint and falls back to
// exponential backoff when none was given.
type retryAfterBackOff struct {
	fallback backoff.BackOff
	hint     time.Duration
	hinted   bool
}

func (b *retryAfterBackOff) hintNext(d time.Duration) {
	b.hint, b.hinted = d, true
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	if b.hinted {
		b.hinted = false
		return b.hint
	}
	return b.fallback.NextBackOff()
}

func (b *retryAfterBackOff) Reset() {
	b.hinted = false
	b.fallback.Reset()
}

// parseRetryAfter reads a Retry-After header in either delay-seconds or
// HTTP-date form.
func parseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
