package securitas

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	logp "github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "securitas",
})

// SetLogLevel adjusts the package logger.
func SetLogLevel(level logp.Level) { log.SetLevel(level) }

// Config configures a Client.
type Config struct {
	Username string
	Password string
	Country  string

	// HTTPClient sends the requests. Defaults to a client with a 30s
	// timeout; the library never builds transports beyond that.
	HTTPClient Doer

	// Device identifies this client to the backend. The OTP device
	// authorization is bound to it, so hosts should persist and reuse
	// one identity. A fresh one is generated when empty.
	Device DeviceIdentity

	// Poll is the default policy for driving commands to completion.
	Poll PollPolicy
}

// Client talks to the vendor's GraphQL API. It owns the single shared
// session and the per-installation command guards. All methods are safe
// for concurrent use.
type Client struct {
	transport *transport
	password  string
	poll      PollPolicy

	mu      sync.RWMutex
	session *Session
	protom  string // last protomResponse, echoed as currentStatus
	caps    map[string]capabilityToken

	refresh singleflight.Group

	cmdMu    sync.Mutex
	inflight map[string]*Command
}

type capabilityToken struct {
	token string
	exp   time.Time
}

// New creates a Client for the given account.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	if cfg.Country == "" {
		return nil, fmt.Errorf("country is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Device == (DeviceIdentity{}) {
		cfg.Device = NewDeviceIdentity()
	}
	cfg.Poll = cfg.Poll.withDefaults()
	return &Client{
		transport: newTransport(
			cfg.HTTPClient,
			cfg.Username,
			strings.ToUpper(cfg.Country),
			cfg.Device,
		),
		password: cfg.Password,
		poll:     cfg.Poll,
		caps:     map[string]capabilityToken{},
		inflight: map[string]*Command{},
	}, nil
}

// Session returns the current shared session, or nil before login.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) lastProtom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protom
}

func (c *Client) setProtom(v string) {
	if v == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protom = v
}

func (c *Client) capability(numinst string) (capabilityToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.caps[numinst]
	return tok, ok
}

func (c *Client) setCapability(numinst string, tok capabilityToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps[numinst] = tok
}

// ensureCapabilities returns a fresh capabilities token for the
// installation, re-querying services when the cached one is about to
// expire.
func (c *Client) ensureCapabilities(ctx context.Context, inst *Installation) (string, error) {
	if tok, ok := c.capability(inst.Number); ok &&
		(tok.exp.IsZero() || time.Now().Add(time.Minute).Before(tok.exp)) {
		return tok.token, nil
	}
	log.Debug("capabilities token stale, refreshing", "numinst", inst.Number)
	if _, err := c.resolveServices(ctx, inst); err != nil {
		return "", err
	}
	tok, _ := c.capability(inst.Number)
	return tok.token, nil
}
