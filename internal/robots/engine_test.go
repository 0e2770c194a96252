package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/webchecks/internal/cache"
	"github.com/nao1215/webchecks/internal/transport"
	"github.com/nao1215/webchecks/internal/urlmodel"
)

// fakeFetcher serves robots files from a map keyed by link.
type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls []string
}

func (f *fakeFetcher) ExpressRequest(_ context.Context, link string) transport.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, link)
	return transport.Response{Content: []byte(f.files[link]), Header: http.Header{}, URL: link}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func openCache(t *testing.T, root string) *cache.Cache {
	t.Helper()

	c, err := cache.Open(root, cache.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func addr(t *testing.T, s string) urlmodel.Address {
	t.Helper()

	a, err := urlmodel.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return a
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEngine_FetchesOnceAndReuses(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{files: map[string]string{
		"www.example.com/robots.txt": "User-agent: *\nDisallow: /private/\n",
	}}
	e := NewEngine(openCache(t, t.TempDir()), quiet())
	ctx := t.Context()

	if !e.Allowed(ctx, addr(t, "https://www.example.com/public"), f) {
		t.Error("/public should be allowed")
	}
	if e.Allowed(ctx, addr(t, "https://www.example.com/private/data?x=1"), f) {
		t.Error("/private/data should be denied")
	}
	if got := f.callCount(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
	if got := len(e.rulesFor("www.example.com")); got != 1 {
		t.Errorf("rulesFor() len = %d, want 1", got)
	}
}

func TestEngine_ConcurrentLookupsFetchOnce(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{files: map[string]string{
		"www.example.com/robots.txt": "User-agent: *\nDisallow: /private/\n",
	}}
	e := NewEngine(openCache(t, t.TempDir()), quiet())
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			link := fmt.Sprintf("https://www.example.com/page%d", i)
			if !e.Allowed(ctx, addr(t, link), f) {
				t.Errorf("%s should be allowed", link)
			}
		})
	}
	wg.Wait()

	if got := f.callCount(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestEngine_RobotsFileIsExempt(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{files: map[string]string{}}
	e := NewEngine(openCache(t, t.TempDir()), quiet(), WithFallback(FallbackStrict))

	if !e.Allowed(t.Context(), addr(t, "https://example.com/robots.txt"), f) {
		t.Error("/robots.txt must always be allowed")
	}
	if f.callCount() != 0 {
		t.Error("checking /robots.txt must not fetch anything")
	}
}

func TestEngine_LoadsFromCacheAfterRestart(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c := openCache(t, root)
	if _, err := c.Store(t.Context(), "example.com", []byte("User-agent: *\nDisallow: /\n"), "robots.txt", cache.DurationDay); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	f := &fakeFetcher{files: map[string]string{}}
	e := NewEngine(c, quiet())
	if e.Allowed(t.Context(), addr(t, "example.com/page"), f) {
		t.Error("cached Disallow: / should deny")
	}
	if f.callCount() != 0 {
		t.Errorf("fresh engine fetched %d times, want 0 with a live cache", f.callCount())
	}
}

func TestEngine_RecompilesWhenCacheChanges(t *testing.T) {
	t.Parallel()

	c := openCache(t, t.TempDir())
	f := &fakeFetcher{files: map[string]string{"example.com/robots.txt": "User-agent: *\nDisallow: /a\n"}}
	e := NewEngine(c, quiet())
	ctx := t.Context()

	if e.Allowed(ctx, addr(t, "example.com/a"), f) {
		t.Fatal("/a should be denied")
	}

	// Another writer replaces the cached file; the hash no longer matches.
	if _, err := c.Store(ctx, "example.com", []byte("User-agent: *\nDisallow: /b\n"), "robots.txt", cache.DurationDay); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	f.mu.Lock()
	f.files["example.com/robots.txt"] = "User-agent: *\nDisallow: /b\n"
	f.mu.Unlock()

	if !e.Allowed(ctx, addr(t, "example.com/a"), f) {
		t.Error("/a should be allowed after the file changed")
	}
	if e.Allowed(ctx, addr(t, "example.com/b"), f) {
		t.Error("/b should be denied after the file changed")
	}
}

func TestEngine_Fallback(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		fallback Fallback
		want     bool
	}{
		{name: "free allows", fallback: FallbackFree, want: true},
		{name: "strict denies", fallback: FallbackStrict, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeFetcher{files: map[string]string{}}
			e := NewEngine(openCache(t, t.TempDir()), quiet(), WithFallback(tc.fallback))
			if got := e.Allowed(t.Context(), addr(t, "example.com/x"), f); got != tc.want {
				t.Errorf("Allowed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEngine_RetryInterval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	f := &fakeFetcher{files: map[string]string{}}
	e := NewEngine(openCache(t, t.TempDir()), quiet(),
		WithFallback(FallbackFree), WithClock(clock), WithRetryInterval(time.Minute))
	ctx := t.Context()

	e.Allowed(ctx, addr(t, "example.com/1"), f)
	e.Allowed(ctx, addr(t, "example.com/2"), f)
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetches within retry interval = %d, want 1", got)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	e.Allowed(ctx, addr(t, "example.com/3"), f)
	if got := f.callCount(); got != 2 {
		t.Errorf("fetches after retry interval = %d, want 2", got)
	}
}

func TestEngine_CrawlDelay(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{files: map[string]string{
		"example.com/robots.txt": "User-agent: *\nCrawl-delay: 7\nDisallow: /tmp/\n",
		"other.org/robots.txt":   "User-agent: *\nDisallow: /tmp/\n",
	}}
	e := NewEngine(openCache(t, t.TempDir()), quiet())
	ctx := t.Context()

	e.Allowed(ctx, addr(t, "example.com/"), f)
	e.Allowed(ctx, addr(t, "other.org/"), f)

	if got := e.CrawlDelay("example.com"); got != 7*time.Second {
		t.Errorf("CrawlDelay(example.com) = %v, want 7s", got)
	}
	if got := e.CrawlDelay("other.org"); got != 0 {
		t.Errorf("CrawlDelay(other.org) = %v, want 0", got)
	}
}

func TestEngine_EmptyPathIsRoot(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{files: map[string]string{"example.com/robots.txt": "User-agent: *\nDisallow: /\n"}}
	e := NewEngine(openCache(t, t.TempDir()), quiet())
	if e.Allowed(t.Context(), addr(t, "example.com"), f) {
		t.Error("a bare host is the root path and should be denied by Disallow: /")
	}
}

func TestParseFallback(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"free", "strict"} {
		if f, err := ParseFallback(s); err != nil || string(f) != s {
			t.Errorf("ParseFallback(%q) = (%q, %v)", s, f, err)
		}
	}
	if _, err := ParseFallback("lenient"); !errors.Is(err, ErrInvalidFallback) {
		t.Errorf("ParseFallback(lenient) error = %v, want ErrInvalidFallback", err)
	}
}
