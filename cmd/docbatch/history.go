// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/history"
	"github.com/pdiddy/docbatch/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review and export past conversion runs",
	Long: `History reads the run ledger that convert appends to after each run.
The ledger is an audit trail only; runs are never resumed from it.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversion runs",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-19s  %-5s  %-9s  %-6s  %-7s  %-11s  %-10s  %s\n",
		"ID", "Started", "Fmt", "Converted", "Failed", "Skipped", "Quarantined", "Elapsed", "Source")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = "..." + source[len(source)-27:]
		}
		if r.Interrupted {
			source += " (interrupted)"
		}
		fmt.Fprintf(os.Stdout, "%-5d  %-19s  %-5s  %-9d  %-6d  %-7d  %-11d  %-10s  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Format,
			r.Converted, r.Failed, r.Unsupported, r.Quarantined,
			report.FormatElapsed(r.Elapsed), source)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history with failures to YAML or JSON on stdout",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	switch format {
	case "yaml", "":
		return store.ExportYAML(context.Background(), os.Stdout, limit)
	case "json":
		return store.ExportJSON(context.Background(), os.Stdout, limit)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- prune subcommand ---

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent runs",
	RunE:  runHistoryPrune,
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	keep, _ := cmd.Flags().GetInt("keep")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(context.Background(), keep)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d run(s)\n", removed)
	return nil
}

func openHistory() (*history.Store, error) {
	return history.NewStore(historyConfig())
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().Int("limit", 0, "maximum runs to export (0 = all)")

	historyPruneCmd.Flags().Int("keep", 50, "number of most recent runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyPruneCmd)

	rootCmd.AddCommand(historyCmd)
}
