package crawler

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
	"github.com/nao1215/imgcrawl/internal/transform"
)

// fakeSite is an in-memory PageFetcher. Each URL maps to the elements of
// its page; URLs not in the map fail.
type fakeSite struct {
	pages map[string][]model.PageElement

	mu    sync.Mutex
	calls map[string]int

	// block, when set, makes GetPage for that URL wait for cancellation
	// and then return its page anyway, like I/O that completes late.
	block   string
	started chan struct{}

	afterCancel atomic.Int64
}

func newFakeSite(pages map[string][]model.PageElement) *fakeSite {
	return &fakeSite{
		pages:   pages,
		calls:   make(map[string]int),
		started: make(chan struct{}),
	}
}

func (s *fakeSite) GetPage(ctx context.Context, pageURL string) (*model.Page, error) {
	if ctx.Err() != nil {
		s.afterCancel.Add(1)
	}
	s.mu.Lock()
	s.calls[pageURL]++
	s.mu.Unlock()

	if pageURL == s.block {
		close(s.started)
		<-ctx.Done()
	}

	elems, ok := s.pages[pageURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return model.NewPage(pageURL, "", elems...), nil
}

func (s *fakeSite) fetches(pageURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pageURL]
}

func (s *fakeSite) totalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// fakeImages returns a 1x1 image for every URL except those in fail.
type fakeImages struct {
	fail  map[string]bool
	calls atomic.Int64
}

func (f *fakeImages) GetOrDownload(_ context.Context, imageURL string) (*model.Image, error) {
	f.calls.Add(1)
	if f.fail[imageURL] {
		return nil, errors.New("download failed")
	}
	return &model.Image{
		SourceURL: imageURL,
		Format:    "png",
		Decoded:   image.NewNRGBA(image.Rect(0, 0, 1, 1)),
	}, nil
}

// countingTransform counts applications per image and fails for the
// images in fail.
type countingTransform struct {
	name string
	fail map[string]bool
	wait time.Duration

	mu    sync.Mutex
	calls map[string]int

	running    atomic.Int64
	maxRunning atomic.Int64
}

func newCountingTransform(name string, fail ...string) *countingTransform {
	t := &countingTransform{
		name:  name,
		fail:  make(map[string]bool),
		calls: make(map[string]int),
	}
	for _, f := range fail {
		t.fail[f] = true
	}
	return t
}

func (t *countingTransform) Name() string { return t.name }

func (t *countingTransform) Apply(_ context.Context, img *model.Image) (*model.Image, error) {
	n := t.running.Add(1)
	defer t.running.Add(-1)
	for {
		m := t.maxRunning.Load()
		if n <= m || t.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	if t.wait > 0 {
		time.Sleep(t.wait)
	}

	t.mu.Lock()
	t.calls[img.SourceURL]++
	t.mu.Unlock()

	if t.fail[img.SourceURL] {
		return nil, errors.New("transform failed")
	}
	return img.WithPixels(img.Decoded), nil
}

func (t *countingTransform) applied(imageURL string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[imageURL]
}

func pageLink(u string) model.PageElement {
	return model.PageElement{Kind: model.KindPage, URL: u}
}

func imageRef(u string) model.PageElement {
	return model.PageElement{Kind: model.KindImage, URL: u}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCrawler(site PageFetcher, images ImageSource, opts ...Option) *Crawler {
	return New(site, images, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestCrawlDepthBound(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]model.PageElement{
		"root": {pageLink("a")},
		"a":    {pageLink("b")},
		"b":    {imageRef("img-b")},
	})
	c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(2))

	if _, err := c.CrawlURL(context.Background(), "root", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := site.fetches("a"); got != 1 {
		t.Errorf("expected a to be fetched once, got %d", got)
	}
	if got := site.fetches("b"); got != 0 {
		t.Errorf("expected b (depth 3) never to be fetched, got %d", got)
	}
	if c.Stats().PagesSkippedDepth != 1 {
		t.Errorf("expected 1 depth skip, got %d", c.Stats().PagesSkippedDepth)
	}
}

func TestCrawlDepthBoundary(t *testing.T) {
	t.Parallel()

	pages := map[string][]model.PageElement{
		"root": {pageLink("a"), imageRef("img-root")},
		"a":    {pageLink("b"), imageRef("img-a")},
		"b":    {imageRef("img-b")},
	}

	t.Run("max depth 1 fetches only the root", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(pages)
		tr := newCountingTransform("t")
		c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(1), WithTransforms(tr))

		total, err := c.CrawlURL(context.Background(), "root", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 1 {
			t.Errorf("expected total 1, got %d", total)
		}
		if site.totalFetches() != 1 {
			t.Errorf("expected 1 fetch, got %d", site.totalFetches())
		}
	})

	t.Run("max depth 2 fetches direct links only", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(pages)
		tr := newCountingTransform("t")
		c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(2), WithTransforms(tr))

		total, err := c.CrawlURL(context.Background(), "root", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		if site.fetches("a") != 1 || site.fetches("b") != 0 {
			t.Errorf("expected a fetched and b not, got a=%d b=%d", site.fetches("a"), site.fetches("b"))
		}
	})

	t.Run("depth beyond the bound has no side effect", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(pages)
		c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(1))

		total, err := c.CrawlURL(context.Background(), "root", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 0 || site.totalFetches() != 0 {
			t.Errorf("expected no work, got total=%d fetches=%d", total, site.totalFetches())
		}
		if c.Visited() != 0 {
			t.Errorf("expected the URL not to be marked visited, got %d", c.Visited())
		}
	})
}

func TestCrawlDedup(t *testing.T) {
	t.Parallel()

	t.Run("url reachable by two paths is fetched once", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string][]model.PageElement{
			"root": {pageLink("a"), pageLink("b"), pageLink("x")},
			"a":    {pageLink("x")},
			"b":    {pageLink("x")},
			"x":    {},
		})
		c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(3))

		if _, err := c.CrawlURL(context.Background(), "root", 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := site.fetches("x"); got != 1 {
			t.Errorf("expected x to be fetched exactly once, got %d", got)
		}
	})

	t.Run("cycles terminate", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string][]model.PageElement{
			"root": {pageLink("a")},
			"a":    {pageLink("root"), pageLink("a")},
		})
		c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(50))

		if _, err := c.CrawlURL(context.Background(), "root", 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.fetches("root") != 1 || site.fetches("a") != 1 {
			t.Errorf("expected one fetch each, got root=%d a=%d", site.fetches("root"), site.fetches("a"))
		}
	})
}

func TestCrawlCacheGateExactlyOnce(t *testing.T) {
	t.Parallel()

	pages := map[string][]model.PageElement{
		"root": {pageLink("p1"), pageLink("p2"), pageLink("p3"), pageLink("p4"), pageLink("p5")},
	}
	for _, p := range []string{"p1", "p2", "p3", "p4", "p5"} {
		pages[p] = []model.PageElement{imageRef("shared.png")}
	}

	site := newFakeSite(pages)
	tr := newCountingTransform("t")
	c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(2), WithTransforms(tr))

	total, err := c.CrawlURL(context.Background(), "root", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tr.applied("shared.png"); got != 1 {
		t.Errorf("expected the transform to be applied once, got %d", got)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}
	if got := c.Stats().ClaimsRejected; got != 4 {
		t.Errorf("expected 4 rejected claims, got %d", got)
	}
}

func TestCrawlAggregate(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]model.PageElement{
		"root": {imageRef("i1"), pageLink("a")},
		"a":    {imageRef("i2"), pageLink("b")},
		"b":    {imageRef("i3"), imageRef("i1")},
	})
	t1 := newCountingTransform("one")
	t2 := newCountingTransform("two")
	c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(3), WithTransforms(t1, t2))

	report, err := c.Crawl(context.Background(), "root")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 6 {
		t.Errorf("expected total 6, got %d", report.Total)
	}
	if report.Cancelled {
		t.Error("expected a complete report")
	}
	if report.Stats.PagesFetched != 3 {
		t.Errorf("expected 3 pages, got %d", report.Stats.PagesFetched)
	}
	if report.Stats.PerTransform["one"] != 3 || report.Stats.PerTransform["two"] != 3 {
		t.Errorf("unexpected per-transform counts: %v", report.Stats.PerTransform)
	}
	if report.RunID != c.RunID() || report.MaxDepth != 3 {
		t.Errorf("unexpected report header: %+v", report)
	}
}

func TestCrawlPartialFailure(t *testing.T) {
	t.Parallel()

	t.Run("failing transform on one image", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string][]model.PageElement{
			"root": {imageRef("a.png"), imageRef("b.png")},
		})
		t1 := newCountingTransform("one", "a.png")
		t2 := newCountingTransform("two", "a.png")
		c := newTestCrawler(site, &fakeImages{}, WithTransforms(t1, t2))

		total, err := c.CrawlURL(context.Background(), "root", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		if got := c.Stats().TransformsFailed; got != 2 {
			t.Errorf("expected 2 failed transforms, got %d", got)
		}
	})

	t.Run("failing download and page", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(map[string][]model.PageElement{
			"root": {imageRef("broken.png"), imageRef("ok.png"), pageLink("missing"), pageLink("a")},
			"a":    {imageRef("a.png")},
		})
		tr := newCountingTransform("t")
		images := &fakeImages{fail: map[string]bool{"broken.png": true}}
		c := newTestCrawler(site, images, WithTransforms(tr))

		total, err := c.CrawlURL(context.Background(), "root", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
		stats := c.Stats()
		if stats.PagesFailed != 1 || stats.ImagesFailed != 1 {
			t.Errorf("expected 1 failed page and image, got %+v", stats)
		}
	})
}

func TestCrawlCancellation(t *testing.T) {
	t.Parallel()

	pages := map[string][]model.PageElement{
		"root": {pageLink("slow"), imageRef("root.png")},
		"slow": {pageLink("a"), pageLink("b"), imageRef("slow.png")},
		"a":    {pageLink("c")},
		"b":    {},
		"c":    {},
	}
	site := newFakeSite(pages)
	site.block = "slow"
	c := newTestCrawler(site, &fakeImages{}, WithMaxDepth(10), WithTransforms(newCountingTransform("t")))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report *model.CrawlReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := c.Crawl(ctx, "root")
		done <- result{report, err}
	}()

	<-site.started
	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", res.err)
		}
		if res.report == nil || !res.report.Cancelled {
			t.Error("expected a cancelled report")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("crawl did not return after cancellation")
	}

	if got := site.afterCancel.Load(); got != 0 {
		t.Errorf("expected no fetch to start after cancellation, got %d", got)
	}
	if got := site.fetches("a") + site.fetches("b"); got != 0 {
		t.Errorf("expected links of the late page not to be crawled, got %d", got)
	}
}

func TestCrawlCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]model.PageElement{"root": {}})
	c := newTestCrawler(site, &fakeImages{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	total, err := c.CrawlURL(ctx, "root", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if total != 0 || site.totalFetches() != 0 {
		t.Errorf("expected no work, got total=%d fetches=%d", total, site.totalFetches())
	}

	n, err := c.ProcessImage(ctx, "img.png")
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Errorf("expected cancelled ProcessImage, got %d, %v", n, err)
	}
}

// errGate fails every claim.
type errGate struct{}

func (errGate) TryClaim(context.Context, string, string) (bool, error) {
	return false, errors.New("database is locked")
}

// recordingGate admits every claim and records completions.
type recordingGate struct {
	mu      sync.Mutex
	results map[string]bool
}

func (g *recordingGate) TryClaim(context.Context, string, string) (bool, error) {
	return true, nil
}

func (g *recordingGate) Complete(_ context.Context, imageID, transformID string, ok bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[imageID+"|"+transformID] = ok
	return nil
}

// failingSink fails every save.
type failingSink struct{}

func (failingSink) Save(context.Context, *model.Image, string) (string, error) {
	return "", errors.New("disk full")
}

type memorySink struct {
	mu    sync.Mutex
	saved []string
}

func (s *memorySink) Save(_ context.Context, img *model.Image, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, name+":"+img.SourceURL)
	return name + "/" + img.SourceURL, nil
}

func TestProcessImage(t *testing.T) {
	t.Parallel()

	t.Run("gate error counts as not admitted", func(t *testing.T) {
		t.Parallel()

		tr := newCountingTransform("t")
		c := newTestCrawler(newFakeSite(nil), &fakeImages{}, WithTransforms(tr), WithCacheGate(errGate{}))

		n, err := c.ProcessImage(context.Background(), "img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 || tr.applied("img.png") != 0 {
			t.Errorf("expected no transform, got n=%d applied=%d", n, tr.applied("img.png"))
		}
	})

	t.Run("claim outcomes are recorded", func(t *testing.T) {
		t.Parallel()

		gate := &recordingGate{results: make(map[string]bool)}
		good := newCountingTransform("good")
		bad := newCountingTransform("bad", "img.png")
		c := newTestCrawler(newFakeSite(nil), &fakeImages{}, WithTransforms(good, bad), WithCacheGate(gate))

		n, err := c.ProcessImage(context.Background(), "img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1, got %d", n)
		}
		if ok, found := gate.results["img.png|good"]; !found || !ok {
			t.Error("expected good claim to be recorded as done")
		}
		if ok, found := gate.results["img.png|bad"]; !found || ok {
			t.Error("expected bad claim to be recorded as failed")
		}
	})

	t.Run("sink failure counts zero", func(t *testing.T) {
		t.Parallel()

		c := newTestCrawler(newFakeSite(nil), &fakeImages{},
			WithTransforms(newCountingTransform("t")), WithSink(failingSink{}))

		n, err := c.ProcessImage(context.Background(), "img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})

	t.Run("results are saved to the sink", func(t *testing.T) {
		t.Parallel()

		sink := &memorySink{}
		c := newTestCrawler(newFakeSite(nil), &fakeImages{},
			WithTransforms(newCountingTransform("a"), newCountingTransform("b")), WithSink(sink))

		n, err := c.ProcessImage(context.Background(), "img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 || len(sink.saved) != 2 {
			t.Errorf("expected 2 saved images, got n=%d saved=%v", n, sink.saved)
		}
	})

	t.Run("real transforms", func(t *testing.T) {
		t.Parallel()

		ts, err := transform.Parse([]string{"grayscale", "sepia", "tint"})
		if err != nil {
			t.Fatalf("failed to parse transforms: %v", err)
		}
		c := newTestCrawler(newFakeSite(nil), &fakeImages{}, WithTransforms(ts...))

		n, err := c.ProcessImage(context.Background(), "img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3, got %d", n)
		}
	})
}

func TestCrawlComputeLimit(t *testing.T) {
	t.Parallel()

	elems := make([]model.PageElement, 0, 8)
	for _, u := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		elems = append(elems, imageRef(u+".png"))
	}
	site := newFakeSite(map[string][]model.PageElement{"root": elems})
	tr := newCountingTransform("t")
	tr.wait = 5 * time.Millisecond
	c := newTestCrawler(site, &fakeImages{}, WithTransforms(tr), WithConcurrency(1))

	total, err := c.CrawlURL(context.Background(), "root", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 8 {
		t.Errorf("expected 8, got %d", total)
	}
	if got := tr.maxRunning.Load(); got != 1 {
		t.Errorf("expected at most 1 concurrent transform, got %d", got)
	}
}

func TestCrawlProgressAndReset(t *testing.T) {
	t.Parallel()

	site := newFakeSite(map[string][]model.PageElement{
		"root": {imageRef("a.png"), imageRef("b.png")},
	})
	var last atomic.Int64
	c := newTestCrawler(site, &fakeImages{},
		WithTransforms(newCountingTransform("t")),
		WithProgress(func(total int64) {
			for {
				cur := last.Load()
				if total <= cur || last.CompareAndSwap(cur, total) {
					return
				}
			}
		}))

	if _, err := c.Crawl(context.Background(), "root"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.Load() != 2 {
		t.Errorf("expected progress to reach 2, got %d", last.Load())
	}

	firstRun := c.RunID()
	c.Reset()
	if c.RunID() == firstRun {
		t.Error("expected a new run ID after Reset")
	}
	if c.Visited() != 0 || c.Stats().PagesFetched != 0 {
		t.Error("expected Reset to clear visited URLs and stats")
	}

	// The gate survives Reset, so the same images are not transformed again.
	total, err := c.CrawlURL(context.Background(), "root", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("expected 0 after reset with the same gate, got %d", total)
	}
}
