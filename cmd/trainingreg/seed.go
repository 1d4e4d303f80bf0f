package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trainingreg/internal/infrastructure/notify"
)

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo trainings when the store has none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := newServices(c.cfg, store, notify.LogNotifier{}, 0)
			n, err := svc.trainings.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d trainings\n", n)
			return nil
		},
	}
}
