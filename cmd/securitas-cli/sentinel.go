package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sentinelCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Read temperature, humidity and air quality from Sentinel devices",
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
		if len(inst.Sentinels) == 0 {
			return fmt.Errorf("installation %s has no Sentinel devices", inst.Number)
		}

		for _, svc := range inst.Sentinels {
			sentinel, err := cli.SentinelData(cmd.Context(), inst, svc)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%s: %d°C, %d%% humidity",
				sentinel.Alias, sentinel.Temperature, sentinel.Humidity)
			if air, err := cli.AirQualityData(cmd.Context(), inst, svc); err == nil {
				line += fmt.Sprintf(", air quality %s (%d)", air.Message, air.Current)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	sentinelCmd.Flags().String("numinst", "", "installation number")
}
