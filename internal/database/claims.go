package database

import (
	"context"
	"fmt"
	"time"
)

// Claim status values.
const (
	ClaimStatusClaimed = "claimed"
	ClaimStatusDone    = "done"
	ClaimStatusFailed  = "failed"
)

// TryClaim claims (imageURL, transform) for runID. It returns true only for
// the caller whose insert created the row.
func (cdb *CrawlDB) TryClaim(ctx context.Context, runID, imageURL, transform string) (bool, error) {
	query := `
	INSERT OR IGNORE INTO transform_claims (image_url, transform, run_id, status, claimed_at)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query,
		imageURL,
		transform,
		runID,
		ClaimStatusClaimed,
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim transform: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

// CompleteClaim records the outcome of a claim held by runID.
func (cdb *CrawlDB) CompleteClaim(ctx context.Context, runID, imageURL, transform string, ok bool) error {
	status := ClaimStatusDone
	if !ok {
		status = ClaimStatusFailed
	}

	query := `
	UPDATE transform_claims
	SET status = ?, completed_at = ?
	WHERE image_url = ? AND transform = ? AND run_id = ?
	`

	if _, err := cdb.db.ExecContext(ctx, query, status, formatTimestamp(time.Now()), imageURL, transform, runID); err != nil {
		return fmt.Errorf("failed to complete claim: %w", err)
	}
	return nil
}

// PruneFailedClaims deletes claims that failed or never completed, so the
// next run retries them. It must run before a crawl starts, while no other
// run holds claims. It returns the number of deleted claims.
func (cdb *CrawlDB) PruneFailedClaims(ctx context.Context) (int64, error) {
	result, err := cdb.db.ExecContext(ctx,
		`DELETE FROM transform_claims WHERE status IN (?, ?)`,
		ClaimStatusFailed, ClaimStatusClaimed)
	if err != nil {
		return 0, fmt.Errorf("failed to prune claims: %w", err)
	}
	return result.RowsAffected()
}

// ResetClaims deletes every claim, so all images are transformed again.
func (cdb *CrawlDB) ResetClaims(ctx context.Context) (int64, error) {
	result, err := cdb.db.ExecContext(ctx, `DELETE FROM transform_claims`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset claims: %w", err)
	}
	return result.RowsAffected()
}

// ClaimCounts returns the number of claims per status.
func (cdb *CrawlDB) ClaimCounts(ctx context.Context) (map[string]int, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM transform_claims GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan claim count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Gate is a cache gate backed by the claim table and bound to one run.
type Gate struct {
	db    *CrawlDB
	runID string
}

// Gate returns a cache gate whose claims belong to runID.
func (cdb *CrawlDB) Gate(runID string) *Gate {
	return &Gate{db: cdb, runID: runID}
}

// TryClaim admits the first caller for (imageID, transformID).
func (g *Gate) TryClaim(ctx context.Context, imageID, transformID string) (bool, error) {
	return g.db.TryClaim(ctx, g.runID, imageID, transformID)
}

// Complete records whether the admitted transform produced an image.
func (g *Gate) Complete(ctx context.Context, imageID, transformID string, ok bool) error {
	return g.db.CompleteClaim(ctx, g.runID, imageID, transformID, ok)
}
