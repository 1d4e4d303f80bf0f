package main

import (
	"os"

	"github.com/spf13/cobra"

	"trainingreg/internal/config"
)

// cli carries the configuration loaded before any subcommand runs.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "trainingreg",
		Short:        "Training registrations with capacity limits and a waitlist",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The flag goes through the environment so validation sees it.
			if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
				if err := os.Setenv("STORE_DRIVER", driver); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().String("driver", "", "store driver override: postgres, sqlite or memory")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newSeedCmd(c),
		newTrainingsCmd(c),
	)
	return root
}
