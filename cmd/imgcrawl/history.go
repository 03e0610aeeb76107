package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/database"
	"github.com/nao1215/imgcrawl/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past crawl runs",
		Long: `Show the crawl runs recorded in the database.

Without arguments, the most recent runs are listed together with the number
of cached images and claims. With a run ID, the stored report of that run is
printed in the selected format.

Examples:
  # List the last 20 runs
  imgcrawl history

  # Show one run as JSON
  imgcrawl history 0b6f5a4e-5b0c-4f4c-9d59-0d5c2b8f1e7a --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().String("db-dir", "", "Directory for the crawl database (default: XDG data dir)")
	cmd.Flags().BoolP("json", "j", false, "Output report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output report in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.DBDir = dir
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl history found.")
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		return showRun(ctx, cmd, cfg, db, args[0])
	}
	return listRuns(ctx, out, db, limit)
}

// showRun prints the stored report of one run.
func showRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, db *database.CrawlDB, id string) error {
	stored, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("run not found: %s", id)
	}
	return outputReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.Write(stored)
		return err
	})
}

// listRuns prints a table of recent runs and the database totals.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl history found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tROOT\tDEPTH\tTRANSFORMS\tIMAGES\tSTATUS")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			run.RootURL,
			run.MaxDepth,
			strings.Join(run.Transforms, ","),
			run.Total,
			runStatus(run),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	images, err := db.CountImages(ctx)
	if err != nil {
		return err
	}
	claims, err := db.ClaimCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nCached images: %d\n", images)
	fmt.Fprintf(out, "Claims: %d done, %d failed, %d in progress\n",
		claims[database.ClaimStatusDone],
		claims[database.ClaimStatusFailed],
		claims[database.ClaimStatusClaimed])
	return nil
}

// runStatus describes how a run ended.
func runStatus(run database.RunSummary) string {
	switch {
	case !run.Finished():
		return "unfinished"
	case run.Cancelled:
		return "cancelled"
	default:
		return "complete"
	}
}
