package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runthings/termgate/api"
)

var (
	auditEvent     string
	auditTerm      int64
	auditLimit     int
	auditOlderThan time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the persisted audit trail",
	Long:  `Commands for reading and pruning login and logout events recorded by the server.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		entries, err := api.NewAuditTrail(a.repo).List(api.AuditFilter{
			Event:  auditEvent,
			TermID: auditTerm,
			Limit:  auditLimit,
		})
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tEVENT\tTERM\tOBJECT\tREMOTE\tREASON")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt, e.Event, optionalID(e.TermID), optionalID(e.ObjectID), e.RemoteAddr, e.Reason)
		}
		return tw.Flush()
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit events older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		removed, err := api.NewAuditTrail(a.repo).Prune(time.Now().Add(-auditOlderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d audit events\n", removed)
		return nil
	},
}

func optionalID(id int64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprint(id)
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditPruneCmd)
	auditListCmd.Flags().StringVar(&auditEvent, "event", "", "Only show this event type")
	auditListCmd.Flags().Int64Var(&auditTerm, "term", 0, "Only show events for this term id")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of events (0 for all)")
	auditPruneCmd.Flags().DurationVar(&auditOlderThan, "older-than", 90*24*time.Hour, "Age beyond which events are deleted")
}
