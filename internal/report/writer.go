package report

import (
	"io"

	"github.com/nao1215/imgcrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one crawl report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteBatch outputs the reports of a batch crawl, followed by a summary.
	WriteBatch(reports []*model.CrawlReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the batch to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// BatchSummary aggregates the reports of a batch crawl.
type BatchSummary struct {
	Roots     int   `json:"roots"`
	Total     int   `json:"total"`
	Pages     int64 `json:"pages"`
	Failed    int   `json:"failed"`
	Cancelled int   `json:"cancelled"`
}

// Summarize aggregates reports, skipping nil entries.
func Summarize(reports []*model.CrawlReport) BatchSummary {
	var s BatchSummary
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Roots++
		s.Total += r.Total
		s.Pages += r.Stats.PagesFetched
		switch r.Status() {
		case "cancelled":
			s.Cancelled++
		case "error":
			s.Failed++
		}
	}
	return s
}
