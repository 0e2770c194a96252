package archive

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type memLinkStore struct {
	mu    sync.Mutex
	links map[string]string
}

func (s *memLinkStore) StoreLinkLocation(_ context.Context, weblink, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links == nil {
		s.links = make(map[string]string)
	}
	s.links[weblink] = localID
	return nil
}

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func setupTestArchive(t *testing.T, opts ...Option) *Archive {
	t.Helper()

	opts = append([]Option{WithClock(func() time.Time { return fixedTime }), WithRunID("run-1")}, opts...)
	a, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func htmlHeader() http.Header {
	return http.Header{"Content-Type": []string{"text/html; charset=utf-8"}}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 200)
	testCases := []struct {
		name string
		link string
		ext  string
		want string
	}{
		{name: "root path", link: "https://example.com/", ext: "html", want: "MAINPAGE.html"},
		{name: "no path", link: "https://example.com", ext: ".html", want: "MAINPAGE.html"},
		{name: "nested path", link: "https://example.com/a/b", ext: ".html", want: "a_b.html"},
		{name: "extension kept once", link: "https://example.com/a/c.html?x=1", ext: ".html", want: "a_c.html"},
		{name: "no extension", link: "https://example.com/a/", ext: "", want: "a_"},
		{name: "long path truncated", link: "https://example.com/" + long, ext: ".txt", want: long[:150] + ".txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := FileName(tc.link, tc.ext); got != tc.want {
				t.Errorf("FileName(%q, %q) = %q, want %q", tc.link, tc.ext, got, tc.want)
			}
		})
	}
}

func TestSaveAndRetrieve(t *testing.T) {
	t.Parallel()

	t.Run("html is compressed and restored", func(t *testing.T) {
		t.Parallel()

		store := &memLinkStore{}
		a := setupTestArchive(t, WithLinkStore(store))
		content := []byte("<html><body>" + strings.Repeat("hello world ", 100) + "</body></html>")

		name, err := a.Save(context.Background(), "example.com", "https://example.com/docs/index.html", htmlHeader(), content)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if name != "docs_index.html" {
			t.Errorf("name = %q, want %q", name, "docs_index.html")
		}

		onDisk, err := os.ReadFile(filepath.Join(a.Root(), "example.com", "content", name))
		if err != nil {
			t.Fatalf("content file missing: %v", err)
		}
		if bytes.Equal(onDisk, content) {
			t.Error("content file was not compressed")
		}

		got, err := a.Retrieve("example.com", name)
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Error("Retrieve() did not return the original content")
		}

		if loc := store.links["https://example.com/docs/index.html"]; loc != "example.com/docs_index.html" {
			t.Errorf("link location = %q, want %q", loc, "example.com/docs_index.html")
		}
	})

	t.Run("compression disabled", func(t *testing.T) {
		t.Parallel()

		a := setupTestArchive(t, WithCompression(false))
		content := []byte("<html><body>plain</body></html>")

		name, err := a.Save(context.Background(), "example.com", "https://example.com/", htmlHeader(), content)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if name != "MAINPAGE.html" {
			t.Errorf("name = %q, want MAINPAGE.html", name)
		}
		onDisk, err := os.ReadFile(filepath.Join(a.Root(), "example.com", "content", name))
		if err != nil {
			t.Fatalf("content file missing: %v", err)
		}
		if !bytes.Equal(onDisk, content) {
			t.Error("content file should be stored verbatim")
		}
	})

	t.Run("binary content is not compressed", func(t *testing.T) {
		t.Parallel()

		a := setupTestArchive(t)
		content := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		header := http.Header{"Content-Type": []string{"image/png"}}

		name, err := a.Save(context.Background(), "example.com", "https://example.com/img/logo", header, content)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if name != "img_logo.png" {
			t.Errorf("name = %q, want img_logo.png", name)
		}
		meta, err := a.Metadata("example.com", name)
		if err != nil {
			t.Fatalf("Metadata() error = %v", err)
		}
		if meta.Compressed {
			t.Error("png should not be compressed")
		}
	})

	t.Run("type is sniffed without header", func(t *testing.T) {
		t.Parallel()

		a := setupTestArchive(t)
		name, err := a.Save(context.Background(), "example.com", "https://example.com/page", nil, []byte("<html><head></head><body>x</body></html>"))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if name != "page.html" {
			t.Errorf("name = %q, want page.html", name)
		}
	})

	t.Run("rejects domain escaping root", func(t *testing.T) {
		t.Parallel()

		a := setupTestArchive(t)
		_, err := a.Save(context.Background(), "../evil", "https://evil.com/", htmlHeader(), []byte("x"))
		if !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("Save() error = %v, want ErrInvalidDomain", err)
		}
	})
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	a := setupTestArchive(t)
	content := []byte("<html><body>metadata</body></html>")
	name, err := a.Save(context.Background(), "www.example.com", "https://www.example.com/about", htmlHeader(), content)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	meta, err := a.Metadata("www.example.com", name)
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if meta.Name != name {
		t.Errorf("Name = %q, want %q", meta.Name, name)
	}
	if meta.URL != "https://www.example.com/about" {
		t.Errorf("URL = %q", meta.URL)
	}
	if meta.ContentType != "text/html" {
		t.Errorf("ContentType = %q, want text/html", meta.ContentType)
	}
	if !meta.Retrieved.Equal(fixedTime) {
		t.Errorf("Retrieved = %v, want %v", meta.Retrieved, fixedTime)
	}
	if meta.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", meta.RunID)
	}
	if !meta.Compressed {
		t.Error("Compressed = false, want true")
	}

	raw, err := os.ReadFile(filepath.Join(a.Root(), "www.example.com", "metadata", name+".txt"))
	if err != nil {
		t.Fatalf("metadata file missing: %v", err)
	}
	if !strings.HasPrefix(string(raw), "compressed : true\nname : about.html\nbytes : ") {
		t.Errorf("unexpected metadata header:\n%s", raw)
	}
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: "compressed : false\nname : a.html\nbytes : 3\n"},
		{name: "missing name", raw: "compressed : false\nbytes : 3\n", wantErr: true},
		{name: "bad bool", raw: "compressed : maybe\nname : a.html\n", wantErr: true},
		{name: "bad bytes", raw: "name : a.html\nbytes : many\n", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseMetadata([]byte(tc.raw))
			if tc.wantErr && !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("parseMetadata() error = %v, want ErrInvalidMetadata", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("parseMetadata() unexpected error = %v", err)
			}
		})
	}
}

func TestVisited(t *testing.T) {
	t.Parallel()

	a := setupTestArchive(t)

	links, err := a.LoadVisited("example.com")
	if err != nil {
		t.Fatalf("LoadVisited() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("LoadVisited() on new host = %v, want none", links)
	}

	want := []string{"https://example.com/", "https://example.com/a"}
	if err := a.SaveVisited("example.com", want); err != nil {
		t.Fatalf("SaveVisited() error = %v", err)
	}
	got, err := a.LoadVisited("example.com")
	if err != nil {
		t.Fatalf("LoadVisited() error = %v", err)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("LoadVisited() = %v, want %v", got, want)
	}
}
