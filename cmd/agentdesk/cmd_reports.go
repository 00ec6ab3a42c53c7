package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentdesk/internal/download"
	"agentdesk/internal/logging"
)

var reportDownload string

// reportsCmd lists or fetches reports stored by the service
var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List generated reports",
	Long: `List the reports the agent service has generated. With --download NAME
the report is saved into the configured download directory.`,
	Args: cobra.NoArgs,
	RunE: runReports,
}

func init() {
	reportsCmd.Flags().StringVar(&reportDownload, "download", "", "Download the named report")
}

func runReports(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if reportDownload != "" {
		saver := download.NewFileSaver(cfg.Download.Dir, nil)
		ctx := ctxOrBackground(cmd)
		path, err := saver.Save(ctx, client.ReportURL(reportDownload))
		if err != nil {
			return fmt.Errorf("failed to download %s: %w", reportDownload, err)
		}
		logging.For(logger, logging.CategoryDownload).Info("Report saved", zap.String("path", path))
		fmt.Fprintf(out, "Saved: %s\n", path)
		return nil
	}

	reports, err := client.ListReports(ctxOrBackground(cmd))
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports found.")
		return nil
	}

	fmt.Fprintln(out, "Reports")
	fmt.Fprintln(out, strings.Repeat("─", 50))
	for i, r := range reports {
		fmt.Fprintf(out, "  %d. %s\n", i+1, r)
	}
	fmt.Fprintln(out, strings.Repeat("─", 50))
	fmt.Fprintf(out, "Total: %d reports\n", len(reports))
	return nil
}
