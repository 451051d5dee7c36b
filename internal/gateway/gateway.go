// Package gateway wraps every backend call. It attaches the bearer token,
// classifies failures into typed errors and runs the logout protocol exactly
// once when the backend rejects the session.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second

	sessionExpiredText = "Your session has expired. Please log in again."
)

// Request describes one backend call.
type Request struct {
	Method string
	Path   string // joined to the base URL, e.g. "/movies/popular"
	Query  url.Values
	Body   interface{} // JSON-encoded when non-nil
}

// Response is a fully-read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Options configures a Gateway. Tokens is required; everything else has a
// usable default.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client

	Tokens    domain.TokenStore
	Session   domain.SessionManager
	Navigator domain.Navigator
	Notifier  domain.Notifier

	RequestsPerSecond float64 // 0 disables client-side rate limiting
	Burst             int
	BreakerFailures   uint32 // consecutive transport failures before the breaker opens
	BreakerTimeout    time.Duration

	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Gateway is the single entry point for authenticated backend requests.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	tokens     domain.TokenStore
	session    domain.SessionManager
	navigator  domain.Navigator
	notifier   domain.Notifier
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *metrics
	logger     *slog.Logger

	mu            sync.Mutex
	epoch         uint64
	sessionCtx    context.Context
	cancelSession context.CancelFunc
}

// New creates a gateway.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	navigator := opts.Navigator
	if navigator == nil {
		navigator = domain.NoOpNavigator{}
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		session:    opts.Session,
		navigator:  navigator,
		notifier:   opts.Notifier,
		metrics:    newMetrics(opts.Registerer),
		logger:     logger,
	}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = defaultBreakerTimeout
	}
	g.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// HTTP statuses are the caller's business; only transport failures count.
		// Cancellation is the caller walking away, not the backend failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			g.metrics.breakerState.Set(stateToFloat(to))
		},
	})

	g.sessionCtx, g.cancelSession = context.WithCancel(context.Background())
	return g
}

// Dispatch performs an authenticated request.
//
// A missing token, a 401/403, or an error envelope naming the "token" field
// runs the logout protocol and returns ErrRedirecting. Other non-ok statuses
// return the response together with a *Error so callers can interpret them.
// Transport failures return a *Error of KindNetwork.
func (g *Gateway) Dispatch(ctx context.Context, req Request) (*Response, error) {
	// Capture the session before the token so a token read after an
	// invalidation can never be attributed to the new session.
	epoch, sessionCtx := g.currentSession()

	token, err := g.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	if token == "" {
		g.logger.Debug("no token, skipping request", "method", req.Method, "path", req.Path)
		g.invalidate(epoch, false, "not logged in")
		return nil, ErrRedirecting
	}

	// Tie the request to the session so invalidation cancels it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessionCtx, cancel)
	defer stop()

	resp, err := g.do(ctx, req, token)
	if err != nil {
		if sessionCtx.Err() != nil {
			return nil, ErrRedirecting
		}
		return nil, err
	}

	if resp.Status >= 200 && resp.Status < 300 {
		g.metrics.observe(outcomeOK)
		return resp, nil
	}

	fields, sessionInvalid := parseFailure(resp.Status, resp.Body)
	if sessionInvalid {
		g.metrics.observe(outcomeSessionInvalid)
		g.logger.Warn("session rejected by backend", "status", resp.Status, "path", req.Path)
		g.invalidate(epoch, true, "session expired")
		return nil, ErrRedirecting
	}

	g.metrics.observe(outcomeStatus)
	g.logger.Debug("backend returned error status", "status", resp.Status, "path", req.Path)
	return resp, statusError(resp.Status, fields)
}

// DispatchPublic performs an unauthenticated request (login). No session
// handling is applied: a 401 here means bad credentials.
func (g *Gateway) DispatchPublic(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.do(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if resp.Status >= 200 && resp.Status < 300 {
		g.metrics.observe(outcomeOK)
		return resp, nil
	}
	fields, _ := parseFailure(resp.Status, resp.Body)
	g.metrics.observe(outcomeStatus)
	return resp, statusError(resp.Status, fields)
}

// Epoch returns the number of times the session has been invalidated.
func (g *Gateway) Epoch() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch
}

func (g *Gateway) currentSession() (uint64, context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.epoch, g.sessionCtx
}

// invalidate runs the logout protocol once per session epoch.
func (g *Gateway) invalidate(epoch uint64, hadToken bool, reason string) {
	g.mu.Lock()
	if epoch != g.epoch {
		g.mu.Unlock()
		return
	}
	g.epoch++
	g.cancelSession()
	g.sessionCtx, g.cancelSession = context.WithCancel(context.Background())
	g.mu.Unlock()

	g.metrics.invalidations.Inc()
	g.logger.Info("session invalid, logging out", "reason", reason)

	if err := g.tokens.ClearToken(); err != nil {
		g.logger.Error("failed to clear token", "error", err)
	}
	if g.session != nil {
		if err := g.session.Logout(); err != nil {
			g.logger.Error("logout handler failed", "error", err)
		}
	}
	if hadToken && g.notifier != nil {
		g.notifier.Show(domain.MessageError, sessionExpiredText)
	}
	g.navigator.NavigateToLogin(reason)
}

// do builds, rate-limits and sends the request through the circuit breaker.
func (g *Gateway) do(ctx context.Context, req Request, token string) (*Response, error) {
	reqURL := g.baseURL + req.Path
	if len(req.Query) > 0 {
		reqURL = reqURL + "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	g.logger.Debug("backend request", "method", req.Method, "url", reqURL)

	httpResp, err := g.breaker.Execute(func() (*http.Response, error) {
		return g.httpClient.Do(httpReq)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.metrics.observe(outcomeRejected)
		} else {
			g.metrics.observe(outcomeNetwork)
		}
		g.logger.Error("backend request failed", "error", err, "url", reqURL)
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("%w: %w", domain.ErrServerOffline, err)}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}
