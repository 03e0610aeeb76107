package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// MarkdownWriter outputs reports in Markdown format for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("imgcrawl Report")
	md.PlainText("")
	w.writeReport(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by one section per report.
func (w *MarkdownWriter) WriteBatch(reports []*model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("imgcrawl Batch Report")
	md.PlainText("")

	s := Summarize(reports)
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		rows = append(rows, []string{
			"`" + r.RootURL + "`",
			strconv.Itoa(r.Total),
			strconv.FormatInt(r.Stats.PagesFetched, 10),
			w.getStatusText(r),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(s.Total) + "**",
		"**" + strconv.FormatInt(s.Pages, 10) + "**",
		"",
	})
	md.Table(markdown.TableSet{
		Header: []string{"Root", "Images", "Pages", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range reports {
		if r == nil {
			continue
		}
		md.H2(r.RootURL)
		md.PlainText("")
		w.writeReport(md, r)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.CrawlReport) {
	w.writeOverview(md, report)
	w.writeTransforms(md, report)
	w.writeAlert(md, report)
}

// writeOverview writes the run information and counters.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, report *model.CrawlReport) {
	st := report.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root URL", "`" + report.RootURL + "`"},
			{"Run", report.RunID},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Max Depth", strconv.Itoa(report.MaxDepth)},
			{"Status", w.getStatusText(report)},
			{"Images Produced", "**" + strconv.Itoa(report.Total) + "**"},
			{"Pages Fetched", strconv.FormatInt(st.PagesFetched, 10)},
			{"Pages Failed", strconv.FormatInt(st.PagesFailed, 10)},
			{"Images Acquired", strconv.FormatInt(st.ImagesAcquired, 10)},
			{"Images Failed", strconv.FormatInt(st.ImagesFailed, 10)},
			{"Already Processed", strconv.FormatInt(st.ClaimsRejected, 10)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.CrawlReport) string {
	switch report.Status() {
	case "cancelled":
		return "⚠️ Cancelled (partial results)"
	case "error":
		return "❌ Error - " + report.Error
	default:
		return "✅ Complete"
	}
}

// writeTransforms writes the per-transform table and pie chart.
func (w *MarkdownWriter) writeTransforms(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Transforms) == 0 {
		return
	}

	md.H3("Transforms")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Transforms))
	produced := false
	for _, name := range report.Transforms {
		n := report.Stats.PerTransform[name]
		if n > 0 {
			produced = true
		}
		rows = append(rows, []string{
			transform.DisplayName(name),
			transform.Description(name),
			strconv.FormatInt(n, 10),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Transform", "Description", "Images"},
		Rows:   rows,
	})
	md.PlainText("")

	if produced {
		w.writePieChart(md, report)
	}
}

// writePieChart writes a mermaid pie chart of images per transform.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Images per Transform"),
		piechart.WithShowData(true),
	)

	for _, name := range report.Transforms {
		if n := report.Stats.PerTransform[name]; n > 0 {
			chart.LabelAndIntValue(transform.DisplayName(name), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert summarizing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	st := report.Stats
	switch {
	case report.Cancelled:
		md.Cautionf("The crawl was cancelled. %d image(s) were produced before it stopped; the total is partial.", report.Total)
	case report.Error != "":
		md.Warningf("The crawl failed: %s", report.Error)
	case st.PagesFetched == 0:
		md.Warningf("The root page could not be fetched.")
	case st.TransformsFailed > 0 || st.ImagesFailed > 0:
		md.Importantf("%d image(s) could not be downloaded and %d transform(s) failed.", st.ImagesFailed, st.TransformsFailed)
	case report.Total == 0 && st.ClaimsRejected > 0:
		md.Note("Every image found had already been processed by an earlier run.")
	default:
		md.Tip("All reachable images were processed.")
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by imgcrawl*")
}
