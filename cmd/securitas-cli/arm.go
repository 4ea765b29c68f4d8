package main

import (
	"context"
	"fmt"

	securitas "github.com/homesec-labs/securitas-direct"
	"github.com/spf13/cobra"
)

var armStates = map[string]securitas.AlarmState{
	"total":     securitas.TotalArmed,
	"interior":  securitas.InteriorTotal,
	"day":       securitas.InteriorPartial,
	"night":     securitas.NightArmed,
	"perimeter": securitas.ExteriorArmed,
}

var armCmd = &cobra.Command{
	Use:   "arm",
	Short: "Arm an installation and wait for the panel to confirm",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		state, ok := armStates[mode]
		if !ok {
			return fmt.Errorf("unknown mode %q (total, interior, day, night, perimeter)", mode)
		}
		return runCommand(cmd, state)
	},
}

var disarmCmd = &cobra.Command{
	Use:   "disarm",
	Short: "Disarm an installation and wait for the panel to confirm",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCommand(cmd, securitas.TotalDisarmed)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{armCmd, disarmCmd} {
		cmd.Flags().String("numinst", "", "installation number")
		cmd.Flags().Bool("force", false, "force the command when the backend offers it (open doors)")
	}
	armCmd.Flags().String("mode", "total", "arming mode: total, interior, day, night, perimeter")
}

func runCommand(cmd *cobra.Command, state securitas.AlarmState) error {
	cli, err := newClient(cmd)
	if err != nil {
		return err
	}
	numinst, _ := cmd.Flags().GetString("numinst")
	inst, err := pickInstallation(cmd.Context(), cli, numinst)
	if err != nil {
		return err
	}
	req, err := inst.Request(state)
	if err != nil {
		return err
	}

	command, err := cli.IssueCommand(cmd.Context(), inst, req)
	if err != nil {
		return err
	}
	log.Info("command issued, waiting for the panel",
		"numinst", inst.Number, "request", req)

	force, _ := cmd.Flags().GetBool("force")
	outcome, err := waitForced(cmd.Context(), cli, command, force)
	if err != nil {
		return err
	}

	switch outcome.State {
	case securitas.CommandConfirmed:
		fmt.Printf("%s: %s\n",
			inst.Number,
			securitas.ProtomState(outcome.Status.ProtomResponse),
		)
		return nil
	case securitas.CommandTimeout:
		return fmt.Errorf("panel did not answer in time, its state is unknown")
	default:
		return fmt.Errorf("panel refused: %s", outcome.Status.Msg)
	}
}

func waitForced(ctx context.Context, cli *securitas.Client, command *securitas.Command, force bool) (securitas.Outcome, error) {
	policy := securitas.PollPolicy{AllowForcing: force}
	return cli.WaitPolicy(ctx, command, policy)
}
