package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the detailed crawl counters.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeTransforms(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs every report followed by a batch summary.
func (w *SimpleWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	var sb strings.Builder

	for _, report := range reports {
		if report == nil {
			continue
		}
		w.writeHeader(&sb, report)
		w.writeSummary(&sb, report)
		w.writeTransforms(&sb, report)
	}

	s := Summarize(reports)
	writeSection(&sb, "BATCH SUMMARY")
	sb.WriteString(fmt.Sprintf("  Roots:            %d\n", s.Roots))
	sb.WriteString(fmt.Sprintf("  Images produced:  %d\n", s.Total))
	sb.WriteString(fmt.Sprintf("  Pages fetched:    %d\n", s.Pages))
	if s.Failed > 0 || s.Cancelled > 0 {
		sb.WriteString(fmt.Sprintf("  Failed roots:     %d\n", s.Failed))
		sb.WriteString(fmt.Sprintf("  Cancelled roots:  %d\n", s.Cancelled))
	}
	sb.WriteString("\n")
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         IMGCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Root URL:    %s\n", report.RootURL))
	if report.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run:         %s\n", report.RunID))
	}
	sb.WriteString(fmt.Sprintf("Started:     %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", report.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Max Depth:   %d\n", report.MaxDepth))

	switch report.Status() {
	case "cancelled":
		sb.WriteString("Status:      CANCELLED (partial results)\n")
	case "error":
		sb.WriteString(fmt.Sprintf("Status:      ERROR - %s\n", report.Error))
	default:
		sb.WriteString("Status:      Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the crawl counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.CrawlReport) {
	writeSection(sb, "SUMMARY")

	st := report.Stats
	sb.WriteString(fmt.Sprintf("  Images produced:    %d\n", report.Total))
	sb.WriteString(fmt.Sprintf("  Pages fetched:      %d\n", st.PagesFetched))
	sb.WriteString(fmt.Sprintf("  Images acquired:    %d\n", st.ImagesAcquired))
	if w.verbose {
		sb.WriteString(fmt.Sprintf("  Pages failed:       %d\n", st.PagesFailed))
		sb.WriteString(fmt.Sprintf("  Beyond max depth:   %d\n", st.PagesSkippedDepth))
		sb.WriteString(fmt.Sprintf("  Already visited:    %d\n", st.PagesDeduped))
		sb.WriteString(fmt.Sprintf("  Images failed:      %d\n", st.ImagesFailed))
		sb.WriteString(fmt.Sprintf("  Transforms failed:  %d\n", st.TransformsFailed))
		sb.WriteString(fmt.Sprintf("  Already processed:  %d\n", st.ClaimsRejected))
	}
	sb.WriteString("\n")
}

// writeTransforms writes one line per configured transform.
func (w *SimpleWriter) writeTransforms(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Transforms) == 0 {
		return
	}
	writeSection(sb, "TRANSFORMS")
	for _, name := range report.Transforms {
		sb.WriteString(fmt.Sprintf("  %-12s %d\n", transform.DisplayName(name)+":", report.Stats.PerTransform[name]))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by imgcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
