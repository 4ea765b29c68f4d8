package securitas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Poll results as reported in the status payload's res field.
const (
	resWait = "WAIT"
	resOK   = "OK"
	resKO   = "KO"
)

// PollPolicy bounds a command's poll loop. The vendor's tolerance is
// undocumented, so both knobs are caller-configurable with conservative
// defaults.
type PollPolicy struct {
	// Interval between polls. Defaults to 2s.
	Interval time.Duration
	// MaxAttempts bounds the poll counter. Defaults to 30.
	MaxAttempts int
	// Budget optionally bounds the loop in wall-clock time.
	Budget time.Duration
	// AllowForcing enables the single forced re-issue when the backend
	// offers it on a blocking condition.
	AllowForcing bool
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 30
	}
	return p
}

// Outcome is the terminal result of a command: CONFIRMED, FAILED, or
// TIMEOUT. These are results, not errors; TIMEOUT in particular means
// "no outcome observed", never "the panel refused".
type Outcome struct {
	State  CommandState
	Status AlarmStatus
}

// Wait drives the command to completion with the client's default policy.
func (c *Client) Wait(ctx context.Context, cmd *Command) (Outcome, error) {
	return c.WaitPolicy(ctx, cmd, c.poll)
}

// WaitPolicy drives the command to completion: it polls the matching
// status operation sequentially, echoing the reference id and a strictly
// increasing counter, until the backend answers OK or KO or the policy's
// budget runs out. Transient transport failures consume an attempt and
// are retried with exponential backoff inside the same budget.
// Cancelling ctx abandons the command with no outcome and releases its
// installation slot.
func (c *Client) WaitPolicy(ctx context.Context, cmd *Command, policy PollPolicy) (Outcome, error) {
	policy = policy.withDefaults()
	defer c.releaseCommand(cmd)

	cmd.State = CommandPolling
	var deadline time.Time
	if policy.Budget > 0 {
		deadline = time.Now().Add(policy.Budget)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.Interval
	bo.MaxInterval = 5 * policy.Interval

	var last AlarmStatus
	var lastErr error
	for {
		if cmd.Counter >= policy.MaxAttempts ||
			(!deadline.IsZero() && !time.Now().Before(deadline)) {
			cmd.State = CommandTimeout
			log.Warn(
				"command timed out, panel state unknown",
				"numinst", cmd.Installation,
				"reference", cmd.ReferenceID,
				"polls", cmd.Counter,
				"err", lastErr,
			)
			return Outcome{State: CommandTimeout, Status: last}, nil
		}

		if err := sleep(ctx, policy.Interval); err != nil {
			// abandoned, not failed: no outcome was observed.
			return Outcome{}, err
		}

		cmd.Counter++
		status, err := c.pollOnce(ctx, cmd)
		if err != nil {
			if ctx.Err() != nil || permanentPollError(err) {
				return Outcome{}, err
			}
			lastErr = err
			next := bo.NextBackOff()
			if next == backoff.Stop {
				return Outcome{}, err
			}
			log.Debug(
				"transient poll failure",
				"numinst", cmd.Installation,
				"counter", cmd.Counter,
				"backoff", next,
				"err", err,
			)
			if err := sleep(ctx, next); err != nil {
				return Outcome{}, err
			}
			continue
		}
		bo.Reset()
		last, lastErr = status, nil
		log.Debug(
			"poll",
			"numinst", cmd.Installation,
			"reference", cmd.ReferenceID,
			"counter", cmd.Counter,
			"res", status.Res,
		)

		switch {
		case status.Res == resWait:
			continue
		case status.Res == resOK:
			cmd.State = CommandConfirmed
			c.setProtom(status.ProtomResponse)
			return Outcome{State: CommandConfirmed, Status: status}, nil
		default: // KO or an explicit error object
			if status.Error != nil && status.Error.AllowForcing &&
				policy.AllowForcing && !cmd.forced {
				log.Info(
					"backend offers forcing, re-issuing once",
					"numinst", cmd.Installation,
					"code", status.Error.Code,
				)
				if err := c.sendMutation(ctx, cmd, true); err != nil {
					cmd.State = CommandFailed
					return Outcome{State: CommandFailed, Status: status}, err
				}
				cmd.Counter = 0
				continue
			}
			cmd.State = CommandFailed
			c.setProtom(status.ProtomResponse)
			return Outcome{State: CommandFailed, Status: status}, nil
		}
	}
}

// permanentPollError reports whether retrying the poll cannot help.
func permanentPollError(err error) bool {
	var authErr *AuthError
	var apiErr *APIError
	return errors.As(err, &authErr) || errors.As(err, &apiErr)
}

// pollOnce sends one status-check operation for the command.
func (c *Client) pollOnce(ctx context.Context, cmd *Command) (AlarmStatus, error) {
	var op Operation
	var respKey string
	vars := map[string]any{
		"numinst":     cmd.Installation,
		"panel":       cmd.Panel,
		"referenceId": cmd.ReferenceID,
		"counter":     cmd.Counter,
	}
	switch cmd.kind {
	case kindArm:
		op, respKey = opArmStatus, "xSArmStatus"
		vars["request"] = string(cmd.Request)
		vars["currentStatus"] = cmd.CurrentStatus
	case kindDisarm:
		op, respKey = opDisarmStatus, "xSDisarmStatus"
		vars["request"] = string(cmd.Request)
		vars["currentStatus"] = cmd.CurrentStatus
	case kindCheck:
		op, respKey = opCheckAlarmStatus, "xSCheckAlarmStatus"
		vars["idService"] = "11"
	}

	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return AlarmStatus{}, err
	}
	caps, err := c.ensureCapabilities(ctx, &cmd.inst)
	if err != nil {
		return AlarmStatus{}, err
	}

	env, err := c.transport.execute(ctx, op, vars, requestMeta{
		session:      sess,
		installation: &cmd.inst,
		capabilities: caps,
	})
	if err != nil {
		return AlarmStatus{}, fmt.Errorf("could not poll %s: %w", op.Name, err)
	}
	var status AlarmStatus
	if err := env.unmarshal(respKey, &status); err != nil {
		return AlarmStatus{}, fmt.Errorf("could not poll %s: %w", op.Name, err)
	}
	return status, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
