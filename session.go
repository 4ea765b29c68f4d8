package securitas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type loginPayload struct {
	Res                     string `json:"res"`
	Msg                     string `json:"msg"`
	Hash                    string `json:"hash"`
	RefreshToken            string `json:"refreshToken"`
	NeedDeviceAuthorization bool   `json:"needDeviceAuthorization"`
}

// Login authenticates with username/password. When the backend requires a
// second factor it returns an AuthChallenge instead of a Session; the
// caller then picks a phone, calls RequestOTP, and finishes with
// SubmitOTP. A failed login leaves no session state behind.
func (c *Client) Login(ctx context.Context) (*Session, *AuthChallenge, error) {
	log.Debug("logging in", "user", c.transport.user, "country", c.transport.country)
	env, err := c.transport.execute(ctx, opLoginToken, c.deviceVars(map[string]any{
		"user":     c.transport.user,
		"password": c.password,
		"id":       c.transport.requestID(),
	}), requestMeta{})
	if err != nil {
		var payload loginPayload
		if env != nil && env.unmarshal("xSLoginToken", &payload) == nil &&
			payload.NeedDeviceAuthorization {
			log.Info("login requires device authorization, requesting challenge")
			challenge, cerr := c.deviceChallenge(ctx)
			if cerr != nil {
				return nil, nil, cerr
			}
			return nil, challenge, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil, &AuthError{Msg: apiErr.Message, Err: apiErr}
		}
		return nil, nil, fmt.Errorf("could not log in: %w", err)
	}

	var payload loginPayload
	if err := env.unmarshal("xSLoginToken", &payload); err != nil {
		return nil, nil, &AuthError{Msg: "malformed login response", Err: err}
	}
	sess := newSession(payload.Hash, payload.RefreshToken)
	c.setSession(sess)
	log.Info("logged in", "expires", sess.ExpiresAt)
	return sess, nil, nil
}

// deviceChallenge asks the backend which phones can receive the OTP. The
// validate-device call is expected to be denied at this point; the
// challenge data rides on the error payload.
func (c *Client) deviceChallenge(ctx context.Context) (*AuthChallenge, error) {
	env, err := c.transport.execute(
		ctx, opValidateDevice, c.validateDeviceVars(),
		requestMeta{freshAuth: true, session: c.Session()},
	)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && len(apiErr.Data) > 0 {
			return parseChallenge(apiErr.Data)
		}
		return nil, fmt.Errorf("could not get OTP challenge: %w", err)
	}
	if len(env.Errors) > 0 && env.Errors[0].Message == "Unauthorized" {
		return parseChallenge(env.Errors[0].Data)
	}
	return nil, &AuthError{Msg: "expected an OTP challenge, got none"}
}

func parseChallenge(data json.RawMessage) (*AuthChallenge, error) {
	var payload struct {
		OTPHash string     `json:"auth-otp-hash"`
		Phones  []OTPPhone `json:"auth-phones"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.OTPHash == "" {
		return nil, &AuthError{Msg: "malformed OTP challenge", Err: err}
	}
	return &AuthChallenge{OTPHash: payload.OTPHash, Phones: payload.Phones}, nil
}

// RequestOTP asks the backend to send the one-time code to the given
// phone from the challenge's list.
func (c *Client) RequestOTP(ctx context.Context, challenge *AuthChallenge, phoneID int) error {
	log.Debug("requesting OTP", "phone", phoneID)
	env, err := c.transport.execute(ctx, opSendOTP, map[string]any{
		"recordId": phoneID,
		"otpHash":  challenge.OTPHash,
	}, requestMeta{freshAuth: true, session: c.Session()})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &AuthError{Msg: apiErr.Message, Err: apiErr}
		}
		return fmt.Errorf("could not request OTP: %w", err)
	}
	var payload struct {
		Res string `json:"res"`
		Msg string `json:"msg"`
	}
	if err := env.unmarshal("xSSendOtp", &payload); err != nil {
		return &AuthError{Msg: "malformed OTP response", Err: err}
	}
	if payload.Res != "OK" {
		return &AuthError{Msg: payload.Msg}
	}
	return nil
}

// SubmitOTP answers the challenge with the received code and, when
// accepted, authorizes the device and returns an active session.
func (c *Client) SubmitOTP(ctx context.Context, challenge *AuthChallenge, code string) (*Session, error) {
	env, err := c.transport.execute(
		ctx, opValidateDevice, c.validateDeviceVars(),
		requestMeta{
			freshAuth: true,
			session:   c.Session(),
			otp:       &otpAnswer{Hash: challenge.OTPHash, Code: code},
		},
	)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &AuthError{Msg: "OTP rejected: " + apiErr.Message, Err: apiErr}
		}
		return nil, fmt.Errorf("could not submit OTP: %w", err)
	}
	var payload loginPayload
	if err := env.unmarshal("xSValidateDevice", &payload); err != nil {
		return nil, &AuthError{Msg: "OTP rejected", Err: err}
	}
	if payload.Hash == "" {
		return nil, &AuthError{Msg: "OTP rejected: " + payload.Msg}
	}
	sess := newSession(payload.Hash, payload.RefreshToken)
	c.setSession(sess)
	log.Info("device authorized", "expires", sess.ExpiresAt)
	return sess, nil
}

// EnsureValid returns the shared session, refreshing it first when it is
// about to expire. Concurrent callers share a single in-flight refresh
// and all observe the same resulting session. A rejected refresh is
// terminal: the caller must Login again.
func (c *Client) EnsureValid(ctx context.Context) (*Session, error) {
	if sess := c.Session(); sess.validFor(time.Minute) {
		return sess, nil
	}
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		return c.refreshSession(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (c *Client) refreshSession(ctx context.Context) (*Session, error) {
	// another caller may have refreshed while we waited for the flight.
	if sess := c.Session(); sess.validFor(time.Minute) {
		return sess, nil
	}
	cur := c.Session()
	if cur == nil || cur.RefreshToken == "" {
		return nil, &AuthError{Msg: "no session to refresh"}
	}
	log.Debug("refreshing session")
	env, err := c.transport.execute(ctx, opRefreshLogin, c.deviceVars(map[string]any{
		"refreshToken": cur.RefreshToken,
		"id":           c.transport.requestID(),
	}), requestMeta{freshAuth: true, session: cur})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &AuthError{Msg: "refresh rejected: " + apiErr.Message, Err: apiErr}
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, fmt.Errorf("could not refresh session: %w", err)
	}
	var payload loginPayload
	if err := env.unmarshal("xSRefreshLogin", &payload); err != nil {
		return nil, &AuthError{Msg: "malformed refresh response", Err: err}
	}
	if payload.Hash == "" {
		return nil, &AuthError{Msg: "refresh rejected: " + payload.Msg}
	}
	sess := newSession(payload.Hash, payload.RefreshToken)
	c.setSession(sess)
	log.Info("session refreshed", "expires", sess.ExpiresAt)
	return sess, nil
}

// Logout invalidates the session on the backend and drops it locally.
func (c *Client) Logout(ctx context.Context) error {
	sess := c.Session()
	if sess == nil {
		return nil
	}
	_, err := c.transport.execute(ctx, opLogout, nil, requestMeta{session: sess})
	c.setSession(nil)
	if err != nil {
		return fmt.Errorf("could not log out: %w", err)
	}
	return nil
}

func newSession(token, refreshToken string) *Session {
	now := time.Now()
	return &Session{
		Token:          token,
		RefreshToken:   refreshToken,
		IssuedAt:       now,
		ExpiresAt:      tokenExpiry(token),
		LoginTimestamp: now.UnixMilli(),
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client is not the token's verifier, it only estimates freshness.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// deviceVars merges the device identification variables every auth
// mutation declares into vars.
func (c *Client) deviceVars(vars map[string]any) map[string]any {
	device := c.transport.device
	for k, v := range map[string]any{
		"country":            c.transport.country,
		"lang":               c.transport.lang,
		"callby":             callBy,
		"idDevice":           device.ID,
		"idDeviceIndigitall": device.Indigitall,
		"deviceType":         device.Type,
		"deviceVersion":      device.Version,
		"deviceResolution":   device.Resolution,
		"deviceName":         device.Name,
		"deviceBrand":        device.Brand,
		"deviceOsVersion":    device.OSVersion,
		"uuid":               device.UUID,
	} {
		vars[k] = v
	}
	return vars
}

func (c *Client) validateDeviceVars() map[string]any {
	device := c.transport.device
	return map[string]any{
		"idDevice":           device.ID,
		"idDeviceIndigitall": device.Indigitall,
		"uuid":               device.UUID,
		"deviceName":         device.Name,
		"deviceBrand":        device.Brand,
		"deviceOsVersion":    device.OSVersion,
		"deviceVersion":      device.Version,
	}
}
