package securitas

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a scripted stand-in for the vendor's GraphQL endpoint.
// Handlers are keyed by operation name and receive the per-op call number
// (starting at 1) and the request variables.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	vars     map[string][]map[string]any
	headers  map[string][]http.Header
	handlers map[string]func(call int, vars map[string]any) string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:        t,
		calls:    map[string]int{},
		vars:     map[string][]map[string]any{},
		headers:  map[string][]http.Header{},
		handlers: map[string]func(int, map[string]any) string{},
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
		Query         string         `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		b.t.Errorf("bad request body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.calls[body.OperationName]++
	call := b.calls[body.OperationName]
	b.vars[body.OperationName] = append(b.vars[body.OperationName], body.Variables)
	b.headers[body.OperationName] = append(b.headers[body.OperationName], r.Header.Clone())
	handler := b.handlers[body.OperationName]
	b.mu.Unlock()

	if handler == nil {
		b.t.Errorf("unexpected operation %q", body.OperationName)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(handler(call, body.Variables)))
}

func (b *fakeBackend) handle(op string, fn func(call int, vars map[string]any) string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[op] = fn
}

// reply registers a fixed response for an operation.
func (b *fakeBackend) reply(op, body string) {
	b.handle(op, func(int, map[string]any) string { return body })
}

func (b *fakeBackend) callCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *fakeBackend) sentVars(op string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vars[op]
}

func (b *fakeBackend) sentHeaders(op string) []http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers[op]
}

// client builds a Client pointed at the fake backend, with fast polling.
func (b *fakeBackend) client(t *testing.T) *Client {
	t.Helper()
	cli, err := New(Config{
		Username: "tester",
		Password: "hunter2",
		Country:  "ES",
		Poll:     PollPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 30},
	})
	require.NoError(t, err)
	cli.transport.endpoint = b.srv.URL
	return cli
}

// loggedIn builds a client that already holds a valid session.
func (b *fakeBackend) loggedIn(t *testing.T) *Client {
	t.Helper()
	cli := b.client(t)
	cli.setSession(&Session{
		Token:          testToken(t, time.Now().Add(time.Hour)),
		RefreshToken:   "refresh-1",
		IssuedAt:       time.Now(),
		ExpiresAt:      time.Now().Add(time.Hour),
		LoginTimestamp: time.Now().UnixMilli(),
	})
	return cli
}

// testToken signs a throwaway HS256 JWT carrying only an exp claim, which
// is all the client reads out of vendor tokens.
func testToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

// testInstallation is a resolved installation with a cached capabilities
// token, skipping the Srv round-trip.
func testInstallation(t *testing.T, cli *Client, perimetral bool) Installation {
	t.Helper()
	inst := Installation{
		Number:     "12345",
		Alias:      "Home",
		Panel:      "SDVFAST",
		Perimetral: perimetral,
	}
	cli.setCapability(inst.Number, capabilityToken{
		token: testToken(t, time.Now().Add(time.Hour)),
		exp:   time.Now().Add(time.Hour),
	})
	return inst
}
