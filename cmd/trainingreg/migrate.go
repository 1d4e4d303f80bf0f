package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured store",
		RunE: func(*cobra.Command, []string) error {
			return migrate(c.cfg)
		},
	}
}
