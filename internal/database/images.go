package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
)

// ImageRecord is a stored image index entry.
type ImageRecord struct {
	URL       string
	CacheKey  string
	Format    string
	Width     int
	Height    int
	Size      int
	EXIF      map[string]string
	FetchedAt time.Time
}

// RecordImage inserts or updates the index entry of an acquired image.
func (cdb *CrawlDB) RecordImage(ctx context.Context, cacheKey string, img *model.Image) error {
	var exifJSON []byte
	if len(img.EXIF) > 0 {
		var err error
		exifJSON, err = json.Marshal(img.EXIF)
		if err != nil {
			return fmt.Errorf("failed to serialize EXIF tags: %w", err)
		}
	}

	bounds := img.Bounds()
	query := `
	INSERT INTO images (url, cache_key, format, width, height, size, exif_tags, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		cache_key = excluded.cache_key,
		format = excluded.format,
		width = excluded.width,
		height = excluded.height,
		size = excluded.size,
		exif_tags = excluded.exif_tags,
		fetched_at = excluded.fetched_at
	`

	_, err := cdb.db.ExecContext(ctx, query,
		img.SourceURL,
		cacheKey,
		img.Format,
		bounds.Dx(),
		bounds.Dy(),
		len(img.Data),
		sql.NullString{String: string(exifJSON), Valid: len(exifJSON) > 0},
		formatTimestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record image: %w", err)
	}
	return nil
}

// GetImage returns the index entry of an image URL, or nil, nil when the
// image is not indexed.
func (cdb *CrawlDB) GetImage(ctx context.Context, url string) (*ImageRecord, error) {
	query := `
	SELECT url, cache_key, format, width, height, size, exif_tags, fetched_at
	FROM images
	WHERE url = ?
	`

	var (
		rec       ImageRecord
		format    sql.NullString
		exifJSON  sql.NullString
		fetchedAt string
	)
	err := cdb.db.QueryRowContext(ctx, query, url).Scan(
		&rec.URL, &rec.CacheKey, &format, &rec.Width, &rec.Height, &rec.Size, &exifJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	rec.Format = format.String
	rec.FetchedAt = parseTimestamp(fetchedAt)
	if exifJSON.Valid && exifJSON.String != "" {
		if err := json.Unmarshal([]byte(exifJSON.String), &rec.EXIF); err != nil {
			rec.EXIF = nil
		}
	}
	return &rec, nil
}

// CountImages returns the number of indexed images.
func (cdb *CrawlDB) CountImages(ctx context.Context) (int, error) {
	var n int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}
