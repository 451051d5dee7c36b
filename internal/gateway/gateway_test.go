package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) SaveToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *memTokens) ClearToken() error { return m.SaveToken("") }

// hookTokens runs hook right after the first token read.
type hookTokens struct {
	memTokens
	once sync.Once
	hook func()
}

func (h *hookTokens) Token() (string, error) {
	token, err := h.memTokens.Token()
	h.once.Do(h.hook)
	return token, err
}

type countingSession struct{ calls atomic.Int32 }

func (c *countingSession) Logout() error {
	c.calls.Add(1)
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingNotifier) Show(_ domain.MessageKind, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return "id"
}

func (r *recordingNotifier) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type fixture struct {
	gw         *Gateway
	tokens     *memTokens
	session    *countingSession
	notifier   *recordingNotifier
	navigated  atomic.Int32
	registerer *prometheus.Registry
}

func newFixture(t *testing.T, baseURL, token string, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		tokens:     &memTokens{token: token},
		session:    &countingSession{},
		notifier:   &recordingNotifier{},
		registerer: prometheus.NewRegistry(),
	}
	o := Options{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		Tokens:     f.tokens,
		Session:    f.session,
		Notifier:   f.notifier,
		Navigator:  domain.NavigatorFunc(func(string) { f.navigated.Add(1) }),
		Registerer: f.registerer,
	}
	for _, fn := range opts {
		fn(&o)
	}
	f.gw = New(o)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDispatchAttachesBearerToken(t *testing.T) {
	var gotAuth, gotQuery, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": []int{1}})
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, "abc")
	resp, err := f.gw.Dispatch(context.Background(), Request{
		Method: http.MethodPut,
		Path:   "/me/ratings/7",
		Query:  map[string][]string{"page": {"2"}},
		Body:   map[string]int{"value": 8},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "page=2", gotQuery)
	assert.JSONEq(t, `{"value":8}`, gotBody)

	var out struct{ Items []int }
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, []int{1}, out.Items)
}

func TestDispatchWithoutTokenRedirectsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, "")

	for i := 0; i < 3; i++ {
		_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
		require.ErrorIs(t, err, ErrRedirecting)
	}

	assert.Zero(t, hits.Load(), "no network call without a token")
	assert.Equal(t, int32(3), f.session.calls.Load(), "each tokenless dispatch re-runs logout")
	assert.Equal(t, int32(3), f.navigated.Load())
	assert.Empty(t, f.notifier.Texts(), "no expiry message when there was no token")
}

func TestSessionInvalidIsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
	}{
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "forbidden", status: http.StatusForbidden},
		{
			name:   "token field error",
			status: http.StatusUnprocessableEntity,
			body:   map[string]interface{}{"errors": []FieldError{{Field: "token", Message: "expired"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL, "stale")

			_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
			require.ErrorIs(t, err, ErrRedirecting)
			assert.Equal(t, KindSessionInvalid, KindOf(err))

			token, _ := f.tokens.Token()
			assert.Empty(t, token, "token cleared")
			assert.Equal(t, int32(1), f.session.calls.Load())
			assert.Equal(t, int32(1), f.navigated.Load())
			assert.Equal(t, []string{sessionExpiredText}, f.notifier.Texts())

			// Subsequent dispatch has no token and never reaches the network.
			_, err = f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/movies/popular"})
			require.ErrorIs(t, err, ErrRedirecting)
			assert.Equal(t, int32(1), hits.Load())
			assert.Equal(t, int32(2), f.session.calls.Load())
			assert.Equal(t, uint64(2), f.gw.Epoch())
		})
	}
}

func TestNonAuthFailuresPassThrough(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     interface{}
		wantKind Kind
		wantErrs map[string]string
	}{
		{
			name:     "validation envelope",
			status:   http.StatusUnprocessableEntity,
			body:     map[string]interface{}{"errors": []FieldError{{Field: "name", Message: "is required"}}},
			wantKind: KindValidation,
			wantErrs: map[string]string{"name": "is required"},
		},
		{
			name:     "plain server error",
			status:   http.StatusInternalServerError,
			wantKind: KindStatus,
			wantErrs: map[string]string{},
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			wantKind: KindStatus,
			wantErrs: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL, "good")
			resp, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodPatch, Path: "/me"})
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.Status)

			var gerr *Error
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.wantKind, gerr.Kind)
			assert.Equal(t, tt.status, gerr.Status)
			assert.Equal(t, tt.wantErrs, gerr.FieldErrors())

			token, _ := f.tokens.Token()
			assert.Equal(t, "good", token, "token kept")
			assert.Zero(t, f.session.calls.Load())
			assert.Zero(t, f.navigated.Load())
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNetworkFailureIsNotSessionInvalid(t *testing.T) {
	var dials atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		dials.Add(1)
		return nil, errors.New("connection refused")
	})}

	f := newFixture(t, "http://backend.invalid", "good", func(o *Options) {
		o.HTTPClient = client
		o.BreakerFailures = 2
		o.BreakerTimeout = time.Minute
	})

	for i := 0; i < 3; i++ {
		_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
		require.Error(t, err)
		assert.True(t, IsNetwork(err))
		assert.ErrorIs(t, err, domain.ErrServerOffline)
		assert.NotErrorIs(t, err, ErrRedirecting)
	}

	assert.Equal(t, int32(2), dials.Load(), "open breaker rejects without dialing")
	assert.Zero(t, f.session.calls.Load())
	token, _ := f.tokens.Token()
	assert.Equal(t, "good", token)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.gw.metrics.requests.WithLabelValues(outcomeNetwork)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.gw.metrics.requests.WithLabelValues(outcomeRejected)))
}

func TestConcurrentInvalidationRunsOnce(t *testing.T) {
	const callers = 5

	var arrived sync.WaitGroup
	arrived.Add(callers)
	release := make(chan struct{})
	go func() {
		arrived.Wait()
		close(release)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, "stale")

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrRedirecting)
	}
	assert.Equal(t, int32(1), f.session.calls.Load())
	assert.Equal(t, int32(1), f.navigated.Load())
	assert.Len(t, f.notifier.Texts(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.gw.metrics.invalidations))
}

func TestInvalidationCancelsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			close(started)
			<-r.Context().Done()
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, "stale")

	slowErr := make(chan error, 1)
	go func() {
		_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
		slowErr <- err
	}()

	<-started
	_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
	require.ErrorIs(t, err, ErrRedirecting)

	select {
	case err := <-slowErr:
		assert.ErrorIs(t, err, ErrRedirecting)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}
	assert.Equal(t, int32(1), f.session.calls.Load())
}

func TestDispatchPublicIgnoresSessionHandling(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, "")
	resp, err := f.gw.DispatchPublic(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   domain.Credentials{Email: "a@b.c", Password: "x"},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, KindStatus, KindOf(err))
	assert.Empty(t, gotAuth)
	assert.Zero(t, f.session.calls.Load())
	assert.Zero(t, f.navigated.Load())
}

func TestInvalidationBetweenTokenReadAndSendRunsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{})
	}))
	defer srv.Close()

	var f *fixture
	tokens := &hookTokens{memTokens: memTokens{token: "stale"}}
	tokens.hook = func() { f.gw.invalidate(f.gw.Epoch(), true, "expired elsewhere") }
	f = newFixture(t, srv.URL, "", func(o *Options) { o.Tokens = tokens })

	_, err := f.gw.Dispatch(context.Background(), Request{Method: http.MethodGet, Path: "/me"})
	assert.ErrorIs(t, err, ErrRedirecting)

	assert.Equal(t, uint64(1), f.gw.Epoch())
	assert.Equal(t, int32(1), f.session.calls.Load())
	assert.Equal(t, int32(1), f.navigated.Load())
	assert.Equal(t, []string{sessionExpiredText}, f.notifier.Texts())
}
