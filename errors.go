package securitas

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is wrapped by AuthError when the backend rejects the
// current token and a new login is required.
var ErrSessionExpired = errors.New("session expired")

// AuthError is terminal: the credentials, OTP code, or session were
// rejected and the caller must log in again.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Msg, e.Err)
	}
	return "auth: " + e.Msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// DispatchError is a transport or server failure that happened before the
// backend assigned a reference id. No command exists, so retrying is safe.
type DispatchError struct {
	Op  string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Op, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// CapabilityError means the requested arm/disarm mode is not supported by
// the installation's configuration. Not retryable.
type CapabilityError struct {
	Request      RequestCode
	Installation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf(
		"request %s not supported by installation %s",
		e.Request, e.Installation,
	)
}

// CommandInProgressError means another arm/disarm command is still being
// driven to completion for the same installation.
type CommandInProgressError struct {
	Installation string
	ReferenceID  string
}

func (e *CommandInProgressError) Error() string {
	return fmt.Sprintf(
		"command %s already in progress for installation %s",
		e.ReferenceID, e.Installation,
	)
}

// ResolutionError means the backend returned malformed or incomplete
// installation metadata.
type ResolutionError struct {
	Installation string
	Msg          string
}

func (e *ResolutionError) Error() string {
	if e.Installation == "" {
		return "could not resolve installations: " + e.Msg
	}
	return fmt.Sprintf("could not resolve installation %s: %s", e.Installation, e.Msg)
}
