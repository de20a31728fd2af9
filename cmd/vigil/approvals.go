package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/vigil/service/approval"
)

var (
	identity     string
	rejectReason string
)

var approvalsCmd = &cobra.Command{
	Use:     "approvals",
	Aliases: []string{"approval", "ap"},
	Short:   "Inspect and decide approval requests",
	Long: `Approvals works against the configured store directly, or against a
running server when --api is set. Use --api while a server or a 'vigil run'
process holds the gate, so waiting steps see the decision immediately.

Examples:
  vigil approvals pending
  vigil approvals approve req-1 --as alice --api http://localhost:8080
  vigil approvals reject req-1 --reason "budget exceeded"`,
}

var approvalsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List requests still awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDecider(cmd.Context(), func(ctx context.Context, d decider) error {
			pending, err := d.Pending(ctx)
			if err != nil {
				return err
			}
			return render(pending, func(w *tabwriter.Writer) { requestTable(w, pending) })
		})
	},
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one approval request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDecider(cmd.Context(), func(ctx context.Context, d decider) error {
			request, err := d.Show(ctx, args[0])
			if err != nil {
				return err
			}
			return render(request, func(w *tabwriter.Writer) { requestDetail(w, request) })
		})
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Record an approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDecider(cmd.Context(), func(ctx context.Context, d decider) error {
			accepted, err := d.Approve(ctx, args[0], identity)
			if err != nil {
				return err
			}
			return reportDecision(args[0], "approval", accepted)
		})
	},
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDecider(cmd.Context(), func(ctx context.Context, d decider) error {
			accepted, err := d.Reject(ctx, args[0], identity, rejectReason)
			if err != nil {
				return err
			}
			return reportDecision(args[0], "rejection", accepted)
		})
	},
}

var approvalsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire requests past their deadline",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDecider(cmd.Context(), func(ctx context.Context, d decider) error {
			expired, err := d.Sweep(ctx)
			if err != nil {
				return err
			}
			return render(map[string]int{"expired": expired}, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "expired %d request(s)\n", expired)
			})
		})
	},
}

func init() {
	approvalsApproveCmd.Flags().StringVar(&identity, "as", currentUser(), "Approver identity")
	approvalsRejectCmd.Flags().StringVar(&identity, "as", currentUser(), "Rejector identity")
	approvalsRejectCmd.Flags().StringVar(&rejectReason, "reason", "", "Rejection reason")

	approvalsCmd.AddCommand(approvalsPendingCmd, approvalsShowCmd, approvalsApproveCmd, approvalsRejectCmd, approvalsSweepCmd)
	rootCmd.AddCommand(approvalsCmd)
}

func withDecider(ctx context.Context, fn func(ctx context.Context, d decider) error) error {
	d, err := openDecider(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}

func openDecider(ctx context.Context) (decider, error) {
	if apiURL != "" {
		return newRemoteDecider(apiURL), nil
	}
	srv, err := newService(ctx)
	if err != nil {
		return nil, err
	}
	return &localDecider{gate: srv.Gate(), close: srv.Close}, nil
}

func reportDecision(id, kind string, accepted bool) error {
	out := map[string]any{"id": id, "accepted": accepted}
	if err := render(out, func(w *tabwriter.Writer) {
		if accepted {
			fmt.Fprintf(w, "%s recorded for %s\n", kind, id)
			return
		}
		fmt.Fprintf(w, "%s for %s not accepted (unknown, decided, expired or repeated)\n", kind, id)
	}); err != nil {
		return err
	}
	if !accepted {
		return fmt.Errorf("%s for %s not accepted", kind, id)
	}
	return nil
}

func requestTable(w *tabwriter.Writer, requests []*approval.Request) {
	fmt.Fprintln(w, "ID\tTYPE\tRISK\tAPPROVALS\tEXPIRES\tTITLE")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID, r.Type, r.RiskLevel, len(r.Approvals), r.RequiredApprovals,
			time.Until(r.ExpiresAt).Round(time.Second), truncate(r.Title, 50))
	}
}

func requestDetail(w *tabwriter.Writer, r *approval.Request) {
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Type:\t%s\n", r.Type)
	fmt.Fprintf(w, "Title:\t%s\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", r.Description)
	}
	fmt.Fprintf(w, "Risk:\t%s\n", r.RiskLevel)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Approvals:\t%d/%d %s\n", len(r.Approvals), r.RequiredApprovals, strings.Join(r.Approvals, ", "))
	if len(r.Rejections) > 0 {
		fmt.Fprintf(w, "Rejections:\t%s\n", strings.Join(r.Rejections, ", "))
	}
	fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Expires:\t%s\n", r.ExpiresAt.Format(time.RFC3339))
}
