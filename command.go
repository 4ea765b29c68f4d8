package securitas

import (
	"context"
	"fmt"
)

// CommandState is the lifecycle state of an in-flight command.
type CommandState int

const (
	CommandIssued CommandState = iota
	CommandPolling
	CommandConfirmed
	CommandFailed
	CommandTimeout
)

func (s CommandState) String() string {
	switch s {
	case CommandIssued:
		return "ISSUED"
	case CommandPolling:
		return "POLLING"
	case CommandConfirmed:
		return "CONFIRMED"
	case CommandFailed:
		return "FAILED"
	case CommandTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is final. TIMEOUT is terminal but
// distinct from FAILED: the backend may still complete the action after
// the client gave up, so the alarm state is unknown, not known-bad.
func (s CommandState) Terminal() bool {
	return s == CommandConfirmed || s == CommandFailed || s == CommandTimeout
}

type commandKind int

const (
	kindArm commandKind = iota
	kindDisarm
	kindCheck
)

// Command is one in-flight arm/disarm (or panel check) request. The
// reference id is assigned by the backend on issue and echoed unchanged
// on every poll; the counter grows by one per poll sent.
type Command struct {
	Request       RequestCode
	Installation  string
	Panel         string
	CurrentStatus string
	ReferenceID   string
	Counter       int
	State         CommandState

	kind   commandKind
	inst   Installation
	forced bool
}

// acquireCommand reserves the per-installation command slot. It fails
// with CommandInProgressError while a previous command is not terminal.
func (c *Client) acquireCommand(cmd *Command) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if cur, ok := c.inflight[cmd.Installation]; ok && !cur.State.Terminal() {
		return &CommandInProgressError{
			Installation: cmd.Installation,
			ReferenceID:  cur.ReferenceID,
		}
	}
	c.inflight[cmd.Installation] = cmd
	return nil
}

// releaseCommand frees the slot if cmd still owns it.
func (c *Client) releaseCommand(cmd *Command) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	if c.inflight[cmd.Installation] == cmd {
		delete(c.inflight, cmd.Installation)
	}
}

// Arm sends an arming mutation for the installation.
func (c *Client) Arm(ctx context.Context, inst Installation, req RequestCode) (*Command, error) {
	if req.disarm() {
		return nil, fmt.Errorf("%s is not an arm request", req)
	}
	return c.IssueCommand(ctx, inst, req)
}

// Disarm sends a disarming mutation for the installation.
func (c *Client) Disarm(ctx context.Context, inst Installation, req RequestCode) (*Command, error) {
	if !req.disarm() {
		return nil, fmt.Errorf("%s is not a disarm request", req)
	}
	return c.IssueCommand(ctx, inst, req)
}

// IssueCommand validates the request against the installation's resolved
// capabilities and sends the arm or disarm mutation. The returned Command
// carries the backend's reference id and is ready to be driven by Wait.
// Failures before a reference id exists are DispatchErrors and leave no
// command behind.
func (c *Client) IssueCommand(ctx context.Context, inst Installation, req RequestCode) (*Command, error) {
	if req.perimetral() && !inst.Perimetral {
		return nil, &CapabilityError{Request: req, Installation: inst.Number}
	}

	cmd := &Command{
		Request:       req,
		Installation:  inst.Number,
		Panel:         inst.Panel,
		CurrentStatus: c.lastProtom(),
		State:         CommandIssued,
		kind:          kindArm,
		inst:          inst,
	}
	if req.disarm() {
		cmd.kind = kindDisarm
	}
	if err := c.acquireCommand(cmd); err != nil {
		return nil, err
	}

	if err := c.sendMutation(ctx, cmd, false); err != nil {
		c.releaseCommand(cmd)
		return nil, err
	}
	log.Info(
		"command issued",
		"numinst", cmd.Installation,
		"request", cmd.Request,
		"reference", cmd.ReferenceID,
	)
	return cmd, nil
}

// sendMutation runs the arm/disarm mutation and captures the reference
// id. With forced set it re-issues the same request overriding the
// backend's blocking condition.
func (c *Client) sendMutation(ctx context.Context, cmd *Command, forced bool) error {
	op := opArmPanel
	respKey := "xSArmPanel"
	if cmd.kind == kindDisarm {
		op = opDisarmPanel
		respKey = "xSDisarmPanel"
	}

	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return &DispatchError{Op: op.Name, Err: err}
	}
	caps, err := c.ensureCapabilities(ctx, &cmd.inst)
	if err != nil {
		return &DispatchError{Op: op.Name, Err: err}
	}

	vars := map[string]any{
		"request":       string(cmd.Request),
		"numinst":       cmd.Installation,
		"panel":         cmd.Panel,
		"currentStatus": cmd.CurrentStatus,
	}
	if forced {
		vars["forced"] = true
	}

	env, err := c.transport.execute(ctx, op, vars, requestMeta{
		session:      sess,
		installation: &cmd.inst,
		capabilities: caps,
	})
	if err != nil {
		return &DispatchError{Op: op.Name, Err: err}
	}

	var payload struct {
		Res         string `json:"res"`
		Msg         string `json:"msg"`
		ReferenceID string `json:"referenceId"`
	}
	if err := env.unmarshal(respKey, &payload); err != nil {
		return &DispatchError{Op: op.Name, Err: err}
	}
	if payload.Res != "OK" {
		return &DispatchError{Op: op.Name, Err: fmt.Errorf("backend rejected: %s", payload.Msg)}
	}
	if payload.ReferenceID == "" {
		return &DispatchError{Op: op.Name, Err: fmt.Errorf("no referenceId in response")}
	}

	cmd.ReferenceID = payload.ReferenceID
	cmd.forced = cmd.forced || forced
	return nil
}

// CheckAlarm asks the panel for its real state, returning a Command to be
// driven by Wait. This is the "verify against the physical panel" path;
// use LastKnownStatus for the cheap read.
func (c *Client) CheckAlarm(ctx context.Context, inst Installation) (*Command, error) {
	cmd := &Command{
		Installation: inst.Number,
		Panel:        inst.Panel,
		State:        CommandIssued,
		kind:         kindCheck,
		inst:         inst,
	}
	if err := c.acquireCommand(cmd); err != nil {
		return nil, err
	}

	sess, err := c.EnsureValid(ctx)
	if err != nil {
		c.releaseCommand(cmd)
		return nil, &DispatchError{Op: opCheckAlarm.Name, Err: err}
	}
	caps, err := c.ensureCapabilities(ctx, &inst)
	if err != nil {
		c.releaseCommand(cmd)
		return nil, &DispatchError{Op: opCheckAlarm.Name, Err: err}
	}

	env, err := c.transport.execute(ctx, opCheckAlarm, map[string]any{
		"numinst": inst.Number,
		"panel":   inst.Panel,
	}, requestMeta{session: sess, installation: &inst, capabilities: caps})
	if err != nil {
		c.releaseCommand(cmd)
		return nil, &DispatchError{Op: opCheckAlarm.Name, Err: err}
	}

	var payload struct {
		Res         string `json:"res"`
		Msg         string `json:"msg"`
		ReferenceID string `json:"referenceId"`
	}
	if err := env.unmarshal("xSCheckAlarm", &payload); err != nil {
		c.releaseCommand(cmd)
		return nil, &DispatchError{Op: opCheckAlarm.Name, Err: err}
	}
	if payload.ReferenceID == "" {
		c.releaseCommand(cmd)
		return nil, &DispatchError{
			Op:  opCheckAlarm.Name,
			Err: fmt.Errorf("no referenceId in response"),
		}
	}

	cmd.ReferenceID = payload.ReferenceID
	return cmd, nil
}

// LastKnownStatus performs the single lightweight status read used when
// panel verification is disabled.
func (c *Client) LastKnownStatus(ctx context.Context, inst Installation) (GeneralStatus, error) {
	sess, err := c.EnsureValid(ctx)
	if err != nil {
		return GeneralStatus{}, err
	}
	caps, err := c.ensureCapabilities(ctx, &inst)
	if err != nil {
		return GeneralStatus{}, err
	}

	env, err := c.transport.execute(ctx, opStatus, map[string]any{
		"numinst": inst.Number,
	}, requestMeta{session: sess, installation: &inst, capabilities: caps})
	if err != nil {
		return GeneralStatus{}, fmt.Errorf("could not get status: %w", err)
	}

	var payload GeneralStatus
	if err := env.unmarshal("xSStatus", &payload); err != nil {
		return GeneralStatus{}, fmt.Errorf("could not get status: %w", err)
	}
	return payload, nil
}
