package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"trainingreg/internal/infrastructure/notify"
	"trainingreg/internal/ports/input"
	"trainingreg/pkg/tz"
)

func newTrainingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trainings",
		Short: "Inspect trainings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every training with its occupancy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := tz.Load(c.cfg.Timezone)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := newServices(c.cfg, store, notify.LogNotifier{}, 0)
			views, err := svc.catalog.ListTrainings(cmd.Context())
			if err != nil {
				return err
			}
			return printTrainings(cmd.OutOrStdout(), views, loc)
		},
	})
	return cmd
}

func printTrainings(w io.Writer, views []input.TrainingView, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKEY\tNAME\tOPENS\tSEATS\tWAITLIST\tSTATE")
	for _, v := range views {
		state := "closed"
		switch {
		case v.Open && v.Full:
			state = "full"
		case v.Open:
			state = "open"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			v.ID, v.Key, v.DisplayName, tz.Format(v.OpensAt, loc),
			v.ConfirmedCount, v.Capacity, v.WaitlistLength, state)
	}
	return tw.Flush()
}
