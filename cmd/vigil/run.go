package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/vigil/service/runner"
)

var listenAddr string

var runCmd = &cobra.Command{
	Use:   "run [strategy-id]",
	Short: "Run all active strategies, or one by id",
	Long: `Run executes active strategies once. Gated steps block until their
approval requests are decided. With --listen the run exposes the HTTP API
so another terminal can decide them with 'vigil approvals approve --api ...'.

Examples:
  vigil run
  vigil run publish-weekly --listen :8080 -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srv, err := newService(ctx)
		if err != nil {
			return err
		}
		defer srv.Close()
		if listenAddr != "" {
			stop := listen(ctx, listenAddr, srv.Handler())
			defer stop()
		}

		if len(args) == 1 {
			result, err := srv.Runner().RunByID(ctx, args[0])
			if err != nil {
				return err
			}
			return render(result, func(w *tabwriter.Writer) { resultTable(w, []*runner.Result{result}) })
		}
		summary, err := srv.Runner().RunAll(ctx)
		if err != nil {
			return err
		}
		return render(summary, func(w *tabwriter.Writer) {
			resultTable(w, summary.Results)
			fmt.Fprintf(w, "\n%d/%d succeeded\trevenue %.2f\tcost %.2f\n", summary.Succeeded, summary.Total, summary.TotalRevenue, summary.TotalCost)
			for _, id := range summary.Tripped {
				fmt.Fprintf(w, "paused: %s\n", id)
			}
		})
	},
}

func resultTable(w *tabwriter.Writer, results []*runner.Result) {
	fmt.Fprintln(w, "STRATEGY\tEXECUTOR\tOK\tREVENUE\tCOST\tDURATION\tERROR")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%t\t%.2f\t%.2f\t%s\t%s\n", r.StrategyID, r.Executor, r.Success, r.Revenue, r.Cost, r.Duration, truncate(r.Error, 60))
	}
}

// listen serves handler on addr until the returned func is called.
func listen(ctx context.Context, addr string, handler http.Handler) func() {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("api listener stopped", "addr", addr, "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

func init() {
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "Serve the HTTP API on this address while running")
	rootCmd.AddCommand(runCmd)
}
