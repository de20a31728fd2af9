package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/viant/vigil/service/strategy"
)

var deactivateReason string

var strategiesCmd = &cobra.Command{
	Use:     "strategies",
	Aliases: []string{"strategy", "st"},
	Short:   "List, activate and deactivate strategies",
}

var strategiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered strategies with their totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer srv.Close()
		list := srv.Registry().List(cmd.Context())
		return render(list, func(w *tabwriter.Writer) { strategyTable(w, list) })
	},
}

var strategiesActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Reactivate a paused strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer srv.Close()
		if err := srv.Registry().ActivateStrategy(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("strategy %s activated\n", args[0])
		return nil
	},
}

var strategiesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Pause a strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer srv.Close()
		if err := srv.Registry().DeactivateStrategy(cmd.Context(), args[0], deactivateReason); err != nil {
			return err
		}
		fmt.Printf("strategy %s deactivated\n", args[0])
		return nil
	},
}

func init() {
	strategiesDeactivateCmd.Flags().StringVar(&deactivateReason, "reason", "deactivated by operator", "Deactivation reason")
	strategiesCmd.AddCommand(strategiesListCmd, strategiesActivateCmd, strategiesDeactivateCmd)
	rootCmd.AddCommand(strategiesCmd)
}

func strategyTable(w *tabwriter.Writer, list []*strategy.Strategy) {
	fmt.Fprintln(w, "ID\tTYPE\tACTIVE\tPRIORITY\tRUNS\tFAILURES\tREVENUE\tCOST\tREASON")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\t%.2f\t%.2f\t%s\n",
			s.ID, s.Type, s.Active, s.Priority, s.Executions, s.Failures, s.TotalRevenue, s.TotalCost, truncate(s.DeactivatedReason, 40))
	}
}
