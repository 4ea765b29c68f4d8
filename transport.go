package securitas

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	callBy    = "OWA_10"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/102.0.5005.124 Safari/537.36 Edg/102.0.1245.41"
)

// Doer sends a single HTTP request. The host injects whatever client it
// wants here; the library never constructs its own.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// DeviceIdentity is the device the backend believes it is talking to. It
// should be generated once and persisted by the host, since the OTP
// authorization is bound to it.
type DeviceIdentity struct {
	ID         string
	UUID       string
	Indigitall string
	Brand      string
	Name       string
	OSVersion  string
	Resolution string
	Type       string
	Version    string
}

// NewDeviceIdentity generates a fresh identity presenting as the vendor's
// Android app on a Galaxy S22.
func NewDeviceIdentity() DeviceIdentity {
	return DeviceIdentity{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		UUID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		Indigitall: uuid.NewString(),
		Brand:      "samsung",
		Name:       "SM-S901U",
		OSVersion:  "12",
		Version:    "10.102.0",
	}
}

// APIError is an error reported inside the GraphQL envelope.
type APIError struct {
	Message string
	Data    json.RawMessage
}

func (e *APIError) Error() string { return "api: " + e.Message }

type apiErrorItem struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// reason extracts the nested data.reason some error shapes carry.
func (e apiErrorItem) reason() string {
	var data struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	return data.Reason
}

// errorList tolerates both envelope shapes the backend emits: an array of
// errors and a single error object.
type errorList []apiErrorItem

func (l *errorList) UnmarshalJSON(b []byte) error {
	var items []apiErrorItem
	if err := json.Unmarshal(b, &items); err == nil {
		*l = items
		return nil
	}
	var item apiErrorItem
	if err := json.Unmarshal(b, &item); err != nil {
		return err
	}
	*l = errorList{item}
	return nil
}

type envelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors errorList                  `json:"errors"`
}

// unmarshal decodes data.<key> into v.
func (e *envelope) unmarshal(key string, v any) error {
	raw, ok := e.Data[key]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("no %s in response", key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("could not decode %s: %w", key, err)
	}
	return nil
}

type otpAnswer struct {
	Hash string
	Code string
}

// requestMeta is everything beyond the operation itself that shapes the
// request headers.
type requestMeta struct {
	session      *Session
	freshAuth    bool
	otp          *otpAnswer
	installation *Installation
	capabilities string
}

type transport struct {
	doer     Doer
	endpoint string
	user     string
	country  string
	lang     string
	device   DeviceIdentity
	apolloID string
}

func newTransport(doer Doer, user, country string, device DeviceIdentity) *transport {
	return &transport{
		doer:     doer,
		endpoint: Endpoint(country),
		user:     user,
		country:  strings.ToUpper(country),
		lang:     Language(country),
		device:   device,
		apolloID: randomHex(64),
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// requestID builds the per-request correlation id the backend expects in
// the auth header.
func (t *transport) requestID() string {
	now := time.Now()
	return fmt.Sprintf(
		"OWA_______________%s_______________%d%d%d%d%d%d",
		t.user,
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Nanosecond()/1000,
	)
}

var invalidSessionMessages = []string{
	"Invalid session. Please, try again later.",
	"Invalid token: Expired",
}

// execute posts one operation and decodes the GraphQL envelope. When the
// envelope carries errors, the envelope is still returned alongside the
// error: the login flow reads challenge data out of error responses.
func (t *transport) execute(
	ctx context.Context,
	op Operation,
	vars map[string]any,
	meta requestMeta,
) (*envelope, error) {
	body, err := json.Marshal(struct {
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables,omitempty"`
		Query         string         `json:"query"`
	}{op.Name, vars, op.Query})
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, t.endpoint, bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build %s request: %w", op.Name, err)
	}
	if err := t.setHeaders(req, op, meta); err != nil {
		return nil, err
	}

	log.Debug("executing operation", "op", op.Name, "endpoint", t.endpoint)
	resp, err := t.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not execute %s: %w", op.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf(
			"could not decode %s response (http %d): %w",
			op.Name, resp.StatusCode, err,
		)
	}

	if len(env.Errors) == 0 {
		return &env, nil
	}

	first := env.Errors[0]
	msg := first.Message
	if reason := first.reason(); reason != "" {
		msg = reason
	}
	for _, expired := range invalidSessionMessages {
		if first.Message == expired {
			return &env, &AuthError{Msg: first.Message, Err: ErrSessionExpired}
		}
	}
	return &env, &APIError{Message: msg, Data: first.Data}
}

func (t *transport) setHeaders(r *http.Request, op Operation, meta requestMeta) error {
	app, _ := json.Marshal(map[string]string{
		"appVersion": t.device.Version,
		"origin":     "native",
	})
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("app", string(app))
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("X-APOLLO-OPERATION-ID", t.apolloID)
	r.Header.Set("X-APOLLO-OPERATION-NAME", op.Name)
	r.Header.Set("extension", `{"mode":"full"}`)

	if inst := meta.installation; inst != nil {
		r.Header.Set("numinst", inst.Number)
		r.Header.Set("panel", inst.Panel)
		r.Header.Set("X-Capabilities", meta.capabilities)
	}

	auth := map[string]any{
		"user":    t.user,
		"id":      t.requestID(),
		"country": t.country,
		"lang":    t.lang,
		"callby":  callBy,
	}
	switch {
	case meta.freshAuth:
		// device validation, OTP and refresh run with an empty hash.
		auth["loginTimestamp"] = int64(0)
		auth["hash"] = ""
		auth["refreshToken"] = ""
		if meta.session != nil {
			auth["loginTimestamp"] = meta.session.LoginTimestamp
		}
	case meta.session != nil && meta.session.Token != "":
		auth["loginTimestamp"] = meta.session.LoginTimestamp
		auth["hash"] = meta.session.Token
	default:
		auth = nil
	}
	if auth != nil {
		header, err := json.Marshal(auth)
		if err != nil {
			return fmt.Errorf("could not encode auth header: %w", err)
		}
		r.Header.Set("auth", string(header))
	}

	if meta.otp != nil {
		security, err := json.Marshal(map[string]string{
			"token":   meta.otp.Code,
			"type":    "OTP",
			"otpHash": meta.otp.Hash,
		})
		if err != nil {
			return fmt.Errorf("could not encode security header: %w", err)
		}
		r.Header.Set("security", string(security))
	}
	return nil
}
