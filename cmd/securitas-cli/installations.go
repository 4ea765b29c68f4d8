package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installationsCmd = &cobra.Command{
	Use:   "installations",
	Short: "List the account's installations and their capabilities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli, err := newClient(cmd)
		if err != nil {
			return err
		}
		installations, err := cli.ResolveInstallations(cmd.Context())
		if err != nil {
			return err
		}
		for _, inst := range installations {
			fmt.Printf("%s  %q  panel=%s  perimetral=%v  services=%d  sentinels=%d\n",
				inst.Number,
				inst.Alias,
				inst.Panel,
				inst.Perimetral,
				len(inst.Services),
				len(inst.Sentinels),
			)
			fmt.Printf("    %s, %s %s (%s)\n",
				inst.Address, inst.PostalCode, inst.City, inst.Province)
		}
		return nil
	},
}
