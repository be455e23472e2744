package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pranavgnn/thirdeye/internal/model"
)

var reportsLimit int

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List recently filed violation reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("reports"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reports, err := st.ListReports(ctx, reportsLimit)
		if err != nil {
			return err
		}

		if len(reports) == 0 {
			fmt.Println("no reports")
			return nil
		}

		for _, r := range reports {
			fmt.Println(formatReport(r))
		}

		return nil
	},
}

func formatReport(r model.StoredReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "#%d  %s  %s", r.ID, r.ReportedAt.Format("2006-01-02 15:04"), r.Title)
	if r.ReporterPhone != nil {
		fmt.Fprintf(&sb, "  from %s", *r.ReporterPhone)
	}
	if len(r.Violations) > 0 {
		names := make([]string, len(r.Violations))
		for i, v := range r.Violations {
			names[i] = v.Name
		}
		fmt.Fprintf(&sb, "\n    violations: %s", strings.Join(names, ", "))
	}
	if r.LicensePlate != nil && *r.LicensePlate != "" {
		fmt.Fprintf(&sb, "\n    plate: %s", *r.LicensePlate)
	}
	if r.NeedsManualVerification != nil && *r.NeedsManualVerification {
		sb.WriteString("\n    needs manual verification")
	}

	return sb.String()
}

func init() {
	reportsCmd.Flags().IntVar(&reportsLimit, "limit", 20, "maximum number of reports to list")
	rootCmd.AddCommand(reportsCmd)
}
