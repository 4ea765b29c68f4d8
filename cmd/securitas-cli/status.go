package main

import (
	"fmt"

	securitas "github.com/homesec-labs/securitas-direct"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read the alarm state of an installation",
	Long: `Read the alarm state of an installation.

By default this asks the physical panel and waits for its answer; with
--cached it returns the backend's last known state without waking the
panel up.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli, err := newClient(cmd)
		if err != nil {
			return err
		}
		numinst, _ := cmd.Flags().GetString("numinst")
		inst, err := pickInstallation(cmd.Context(), cli, numinst)
		if err != nil {
			return err
		}

		if cached, _ := cmd.Flags().GetBool("cached"); cached {
			status, err := cli.LastKnownStatus(cmd.Context(), inst)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (as of %s)\n",
				inst.Number,
				securitas.ProtomState(status.Status),
				status.TimestampUpdate,
			)
			for _, exc := range status.Exceptions {
				fmt.Printf("  open: %s (%s)\n", exc.Alias, exc.DeviceType)
			}
			return nil
		}

		check, err := cli.CheckAlarm(cmd.Context(), inst)
		if err != nil {
			return err
		}
		outcome, err := cli.Wait(cmd.Context(), check)
		if err != nil {
			return err
		}
		if outcome.State != securitas.CommandConfirmed {
			return fmt.Errorf("panel check ended %s", outcome.State)
		}
		fmt.Printf("%s: %s\n",
			inst.Number,
			securitas.ProtomState(outcome.Status.ProtomResponse),
		)
		return nil
	},
}

func init() {
	statusCmd.Flags().String("numinst", "", "installation number")
	statusCmd.Flags().Bool("cached", false, "skip the panel check, use the last known state")
}
