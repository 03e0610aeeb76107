package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
)

// RunSummary is one row of the crawl history.
type RunSummary struct {
	ID         string
	RootURL    string
	MaxDepth   int
	Transforms []string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Cancelled  bool
}

// Finished reports whether the run recorded a final result.
func (r RunSummary) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// StartRun records the start of a crawl run.
func (cdb *CrawlDB) StartRun(ctx context.Context, report *model.CrawlReport) error {
	query := `
	INSERT INTO crawl_runs (id, root_url, max_depth, transforms, started_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := cdb.db.ExecContext(ctx, query,
		report.RunID,
		report.RootURL,
		report.MaxDepth,
		strings.Join(report.Transforms, ","),
		formatTimestamp(report.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final report of a run.
func (cdb *CrawlDB) FinishRun(ctx context.Context, report *model.CrawlReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	UPDATE crawl_runs
	SET finished_at = ?, total = ?, cancelled = ?, report_json = ?
	WHERE id = ?
	`

	result, err := cdb.db.ExecContext(ctx, query,
		formatTimestamp(report.StartedAt.Add(report.Duration)),
		report.Total,
		report.Cancelled,
		string(reportJSON),
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %q", report.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, root_url, max_depth, transforms, started_at, finished_at, total, cancelled
	FROM crawl_runs
	ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			run        RunSummary
			transforms string
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.RootURL, &run.MaxDepth, &transforms,
			&startedAt, &finishedAt, &run.Total, &run.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Transforms = splitNames(transforms)
		run.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTimestamp(finishedAt.String)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun returns the report of a run. Runs that never finished return a
// report rebuilt from the run row. A missing run returns nil, nil.
func (cdb *CrawlDB) GetRun(ctx context.Context, id string) (*model.CrawlReport, error) {
	query := `
	SELECT root_url, max_depth, transforms, started_at, report_json
	FROM crawl_runs
	WHERE id = ?
	`

	var (
		rootURL    string
		maxDepth   int
		transforms string
		startedAt  string
		reportJSON sql.NullString
	)
	err := cdb.db.QueryRowContext(ctx, query, id).Scan(&rootURL, &maxDepth, &transforms, &startedAt, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if reportJSON.Valid && reportJSON.String != "" {
		var report model.CrawlReport
		if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
			return nil, fmt.Errorf("failed to parse report: %w", err)
		}
		return &report, nil
	}

	report := model.NewCrawlReport(id, rootURL, maxDepth, splitNames(transforms))
	report.StartedAt = parseTimestamp(startedAt)
	report.Error = "run did not finish"
	return report, nil
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
