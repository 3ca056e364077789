package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/ledger"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
	"github.com/odyssey-erp/ledgerline/internal/reports/export"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute reports offline from a ledger CSV export",
	}
	cmd.AddCommand(newReportPLCommand(), newReportDebtsCommand())
	return cmd
}

func newReportPLCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "pnl",
		Short: "Print the profit and loss report as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, skipped, err := loadEntries(file)
			if err != nil {
				return err
			}
			report := pnl.FromEntries(entries, pnl.ProjectTotals{})
			report.Skipped = append(skipped, report.Skipped...)
			warnSkipped(cmd.ErrOrStderr(), report.Skipped)
			return export.WritePLCSV(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "ledger CSV export (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newReportDebtsCommand() *cobra.Command {
	var file, asOf string
	cmd := &cobra.Command{
		Use:   "debts",
		Short: "Print counterparty debt balances as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("parse --as-of: %w", err)
				}
				today = parsed
			}
			entries, skipped, err := loadEntries(file)
			if err != nil {
				return err
			}
			var inRange []ledger.Entry
			for _, e := range entries {
				if !e.Date.After(today) {
					inRange = append(inRange, e)
				}
			}
			report := debts.Summarize(debts.Net(inRange, nil, today), today)
			report.Skipped = skipped
			warnSkipped(cmd.ErrOrStderr(), skipped)
			return export.WriteDebtsCSV(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "ledger CSV export (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD, default today)")
	return cmd
}

func loadEntries(path string) ([]ledger.Entry, []ledger.Skipped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()
	entries, skipped, err := readEntries(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, skipped, nil
}

func warnSkipped(w io.Writer, skipped []ledger.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(w, "skipped entry %d: %s\n", s.EntryID, s.Reason)
	}
}
