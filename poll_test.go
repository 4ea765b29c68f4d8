package securitas

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArmRoundTrip(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","msg":"","referenceId":"OWP_ABC"}}}`)
	backend.handle("ArmStatus", func(call int, _ map[string]any) string {
		if call == 1 {
			return `{"data":{"xSArmStatus":{"res":"WAIT"}}}`
		}
		return `{"data":{"xSArmStatus":{"res":"OK","status":"ARMED","protomResponse":"T","protomResponseDate":"2026-08-25T10:00:00"}}}`
	})

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)
	ctx := context.Background()

	cmd, err := cli.IssueCommand(ctx, inst, RequestArm)
	require.NoError(t, err)
	require.Equal(t, "OWP_ABC", cmd.ReferenceID)
	require.Equal(t, CommandIssued, cmd.State)

	outcome, err := cli.Wait(ctx, cmd)
	require.NoError(t, err)
	require.Equal(t, CommandConfirmed, outcome.State)
	require.Equal(t, "ARMED", outcome.Status.Status)
	require.Equal(t, "T", cli.lastProtom(), "confirmed polls update the status snapshot")

	// one mutation, polls with the reference echoed and the counter
	// growing by one per poll.
	require.Equal(t, 1, backend.callCount("xSArmPanel"))
	polls := backend.sentVars("ArmStatus")
	require.Len(t, polls, 2)
	for i, vars := range polls {
		require.Equal(t, "OWP_ABC", vars["referenceId"])
		require.EqualValues(t, i+1, vars["counter"])
		require.Equal(t, string(RequestArm), vars["request"])
	}

	mutation := backend.sentVars("xSArmPanel")[0]
	require.Equal(t, "12345", mutation["numinst"])
	require.Equal(t, "SDVFAST", mutation["panel"])
	require.NotContains(t, mutation, "forced")
}

func TestDisarmRoundTrip(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSDisarmPanel",
		`{"data":{"xSDisarmPanel":{"res":"OK","referenceId":"OWP_D1"}}}`)
	backend.reply("DisarmStatus",
		`{"data":{"xSDisarmStatus":{"res":"OK","status":"DISARMED","protomResponse":"D"}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestDisarm)
	require.NoError(t, err)
	outcome, err := cli.Wait(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, CommandConfirmed, outcome.State)
	require.Equal(t, "DISARMED", outcome.Status.Status)
	require.Zero(t, backend.callCount("xSArmPanel"))
}

func TestWaitTimeoutIsNotFailure(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_T"}}}`)
	backend.reply("ArmStatus", `{"data":{"xSArmStatus":{"res":"WAIT","msg":"working"}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	outcome, err := cli.WaitPolicy(context.Background(), cmd, PollPolicy{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	})
	require.NoError(t, err, "timeout is an outcome, not an error")
	require.Equal(t, CommandTimeout, outcome.State)
	require.Equal(t, resWait, outcome.Status.Res)
	require.Equal(t, 3, backend.callCount("ArmStatus"))
}

func TestWaitRejectedWithoutForcing(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_K"}}}`)
	backend.reply("ArmStatus",
		`{"data":{"xSArmStatus":{"res":"KO","msg":"open door","error":{"code":"60067","allowForcing":true,"exceptionsNumber":1}}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	outcome, err := cli.Wait(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, CommandFailed, outcome.State)
	require.Equal(t, "open door", outcome.Status.Msg)
	// the backend offered forcing but the policy does not allow it:
	// the mutation must not be re-issued.
	require.Equal(t, 1, backend.callCount("xSArmPanel"))
}

func TestWaitForcingReissuesOnce(t *testing.T) {
	backend := newFakeBackend(t)
	backend.handle("xSArmPanel", func(call int, vars map[string]any) string {
		if call == 1 {
			require.NotContains(t, vars, "forced")
			return `{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_1"}}}`
		}
		require.Equal(t, true, vars["forced"])
		return `{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_2"}}}`
	})
	backend.handle("ArmStatus", func(_ int, vars map[string]any) string {
		if vars["referenceId"] == "OWP_1" {
			return `{"data":{"xSArmStatus":{"res":"KO","error":{"code":"60067","allowForcing":true}}}}`
		}
		return `{"data":{"xSArmStatus":{"res":"OK","status":"ARMED","protomResponse":"T"}}}`
	})

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	outcome, err := cli.WaitPolicy(context.Background(), cmd, PollPolicy{
		Interval:     time.Millisecond,
		MaxAttempts:  10,
		AllowForcing: true,
	})
	require.NoError(t, err)
	require.Equal(t, CommandConfirmed, outcome.State)
	require.Equal(t, 2, backend.callCount("xSArmPanel"))
	require.Equal(t, "OWP_2", cmd.ReferenceID)

	// the counter restarts with the new reference.
	polls := backend.sentVars("ArmStatus")
	last := polls[len(polls)-1]
	require.Equal(t, "OWP_2", last["referenceId"])
	require.EqualValues(t, 1, last["counter"])
}

func TestWaitForcingOnlyOnce(t *testing.T) {
	backend := newFakeBackend(t)
	backend.handle("xSArmPanel", func(call int, _ map[string]any) string {
		return `{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_F"}}}`
	})
	backend.reply("ArmStatus",
		`{"data":{"xSArmStatus":{"res":"KO","msg":"still blocked","error":{"code":"60067","allowForcing":true}}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	outcome, err := cli.WaitPolicy(context.Background(), cmd, PollPolicy{
		Interval:     time.Millisecond,
		MaxAttempts:  10,
		AllowForcing: true,
	})
	require.NoError(t, err)
	require.Equal(t, CommandFailed, outcome.State)
	// forced once, then the second KO is final.
	require.Equal(t, 2, backend.callCount("xSArmPanel"))
}

func TestCommandInProgress(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_BUSY"}}}`)
	backend.reply("ArmStatus", `{"data":{"xSArmStatus":{"res":"WAIT"}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd, err := cli.IssueCommand(ctx, inst, RequestArm)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := cli.Wait(ctx, cmd)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return backend.callCount("ArmStatus") > 0
	}, time.Second, time.Millisecond)

	_, err = cli.IssueCommand(ctx, inst, RequestDisarm)
	var busy *CommandInProgressError
	require.ErrorAs(t, err, &busy)
	require.Equal(t, "12345", busy.Installation)
	require.Equal(t, "OWP_BUSY", busy.ReferenceID)

	// abandoning the command yields no outcome and frees the slot.
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	backend.reply("xSDisarmPanel",
		`{"data":{"xSDisarmPanel":{"res":"OK","referenceId":"OWP_NEXT"}}}`)
	next, err := cli.IssueCommand(context.Background(), inst, RequestDisarm)
	require.NoError(t, err)
	require.Equal(t, "OWP_NEXT", next.ReferenceID)
}

func TestIssueCommandCapabilityGate(t *testing.T) {
	backend := newFakeBackend(t)
	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	_, err := cli.IssueCommand(context.Background(), inst, RequestArmPerimeter)
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, RequestArmPerimeter, capErr.Request)
	require.Zero(t, backend.callCount("xSArmPanel"), "rejected before any network call")

	peri := testInstallation(t, cli, true)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_P"}}}`)
	cmd, err := cli.IssueCommand(context.Background(), peri, RequestArmPerimeter)
	require.NoError(t, err)
	require.Equal(t, "OWP_P", cmd.ReferenceID)
}

func TestIssueCommandRejected(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"KO","msg":"panel offline"}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	_, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	require.Equal(t, "xSArmPanel", dispatchErr.Op)

	// the slot must be free again after a dispatch failure.
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_R"}}}`)
	_, err = cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
}

func TestWaitRetriesTransientFailures(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_TR"}}}`)
	backend.handle("ArmStatus", func(call int, _ map[string]any) string {
		if call == 1 {
			return `not json at all`
		}
		return `{"data":{"xSArmStatus":{"res":"OK","status":"ARMED","protomResponse":"T"}}}`
	})

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	outcome, err := cli.WaitPolicy(context.Background(), cmd, PollPolicy{
		Interval:    time.Millisecond,
		MaxAttempts: 5,
	})
	require.NoError(t, err)
	require.Equal(t, CommandConfirmed, outcome.State)

	// the failed poll consumed a counter value; the retry got the next one.
	polls := backend.sentVars("ArmStatus")
	require.Len(t, polls, 2)
	require.EqualValues(t, 1, polls[0]["counter"])
	require.EqualValues(t, 2, polls[1]["counter"])
}

func TestWaitStopsOnAuthError(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("xSArmPanel",
		`{"data":{"xSArmPanel":{"res":"OK","referenceId":"OWP_A"}}}`)
	backend.reply("ArmStatus",
		`{"errors":[{"message":"Invalid session. Please, try again later."}]}`)
	backend.reply("RefreshLogin",
		`{"errors":[{"message":"Invalid refresh token"}]}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.IssueCommand(context.Background(), inst, RequestArm)
	require.NoError(t, err)
	_, err = cli.WaitPolicy(context.Background(), cmd, PollPolicy{
		Interval:    time.Millisecond,
		MaxAttempts: 10,
	})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, 1, backend.callCount("ArmStatus"), "auth failures are not retried")
}

func TestCheckAlarmRoundTrip(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("CheckAlarm",
		`{"data":{"xSCheckAlarm":{"res":"OK","referenceId":"OWP_C"}}}`)
	backend.handle("CheckAlarmStatus", func(call int, vars map[string]any) string {
		require.Equal(t, "11", vars["idService"])
		if call == 1 {
			return `{"data":{"xSCheckAlarmStatus":{"res":"WAIT"}}}`
		}
		return `{"data":{"xSCheckAlarmStatus":{"res":"OK","status":"DISARMED","protomResponse":"D"}}}`
	})

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	cmd, err := cli.CheckAlarm(context.Background(), inst)
	require.NoError(t, err)
	require.Equal(t, "OWP_C", cmd.ReferenceID)

	outcome, err := cli.Wait(context.Background(), cmd)
	require.NoError(t, err)
	require.Equal(t, CommandConfirmed, outcome.State)
	require.Equal(t, "DISARMED", outcome.Status.Status)
	require.Equal(t, 2, backend.callCount("CheckAlarmStatus"))
}

func TestLastKnownStatus(t *testing.T) {
	backend := newFakeBackend(t)
	backend.reply("Status",
		`{"data":{"xSStatus":{"status":"E","timestampUpdate":"2026-08-25T09:00:00","exceptions":[{"status":"open","deviceType":"door","alias":"Front"}]}}}`)

	cli := backend.loggedIn(t)
	inst := testInstallation(t, cli, false)

	status, err := cli.LastKnownStatus(context.Background(), inst)
	require.NoError(t, err)
	require.Equal(t, "E", status.Status)
	require.Len(t, status.Exceptions, 1)
	require.Equal(t, "Front", status.Exceptions[0].Alias)
}
