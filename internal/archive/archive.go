package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

const (
	contentDir  = "content"
	metadataDir = "metadata"
	visitedFile = "visited.txt"
)

var (
	// ErrInvalidDomain is returned when a host name cannot be used as a directory.
	ErrInvalidDomain = errors.New("invalid archive domain")

	// ErrInvalidMetadata is returned when a metadata file cannot be parsed.
	ErrInvalidMetadata = errors.New("invalid archive metadata")
)

// LinkStore records where the content of a web link was archived.
type LinkStore interface {
	StoreLinkLocation(ctx context.Context, weblink, localID string) error
}

// Metadata describes one archived resource.
type Metadata struct {
	Compressed  bool
	Name        string
	Bytes       int
	ContentType string
	Retrieved   time.Time
	URL         string
	RunID       string
}

// Archive writes fetched content to a directory tree, one subdirectory per host.
type Archive struct {
	root     string
	compress bool
	links    LinkStore
	now      func() time.Time
	runID    string
	logger   *slog.Logger
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// Option configures an Archive.
type Option func(*Archive)

// WithCompression toggles zstd compression of text content.
func WithCompression(enabled bool) Option {
	return func(a *Archive) { a.compress = enabled }
}

// WithLinkStore records the local name of every saved link.
func WithLinkStore(s LinkStore) Option {
	return func(a *Archive) { a.links = s }
}

// WithClock overrides the retrieval timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) { a.now = now }
}

// WithRunID sets the identifier written to every metadata file.
func WithRunID(id string) Option {
	return func(a *Archive) { a.runID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// New creates the archive root if needed. Compression is on by default.
func New(root string, opts ...Option) (*Archive, error) {
	a := &Archive{
		root:     root,
		compress: true,
		now:      time.Now,
		runID:    uuid.NewString(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	a.encoder = enc
	a.decoder = dec
	return a, nil
}

// Close releases the compression codecs.
func (a *Archive) Close() error {
	a.decoder.Close()
	return a.encoder.Close()
}

// Root returns the archive root directory.
func (a *Archive) Root() string { return a.root }

// RunID returns the identifier written to metadata files.
func (a *Archive) RunID() string { return a.runID }

// Save stores content fetched from link under fqdn and returns its file name.
func (a *Archive) Save(ctx context.Context, fqdn, link string, header http.Header, content []byte) (string, error) {
	dir, err := a.domainDir(fqdn)
	if err != nil {
		return "", err
	}

	mediaType := mediaTypeOf(header, content)
	name := FileName(link, extension(mediaType, content))

	data := content
	compressed := a.compress && isText(mediaType)
	if compressed {
		data = a.encoder.EncodeAll(content, make([]byte, 0, len(content)/2))
	}

	if err := writeFile(filepath.Join(dir, contentDir, name), data); err != nil {
		return "", fmt.Errorf("failed to write content of %s: %w", link, err)
	}

	meta := Metadata{
		Compressed:  compressed,
		Name:        name,
		Bytes:       len(data),
		ContentType: mediaType,
		Retrieved:   a.now().UTC(),
		URL:         link,
		RunID:       a.runID,
	}
	if err := writeFile(filepath.Join(dir, metadataDir, name+".txt"), meta.encode()); err != nil {
		return "", fmt.Errorf("failed to write metadata of %s: %w", link, err)
	}

	if a.links != nil {
		if err := a.links.StoreLinkLocation(ctx, urlmodel.StrongStrip(link), fqdn+"/"+name); err != nil {
			return "", fmt.Errorf("failed to record location of %s: %w", link, err)
		}
	}

	a.logger.Debug("archived", "url", link, "name", name, "bytes", len(data), "compressed", compressed)
	return name, nil
}

// Metadata reads the metadata file of an archived resource.
func (a *Archive) Metadata(fqdn, name string) (Metadata, error) {
	dir, err := a.domainDir(fqdn)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, metadataDir, filepath.Base(name)+".txt"))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return parseMetadata(raw)
}

// Retrieve returns the original bytes of an archived resource, decompressing
// them when needed.
func (a *Archive) Retrieve(fqdn, name string) ([]byte, error) {
	meta, err := a.Metadata(fqdn, name)
	if err != nil {
		return nil, err
	}
	dir, err := a.domainDir(fqdn)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, contentDir, meta.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if !meta.Compressed {
		return data, nil
	}
	out, err := a.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
	}
	return out, nil
}

// LoadVisited returns the links recorded by the last SaveVisited for fqdn.
// A host that was never crawled has none.
func (a *Archive) LoadVisited(fqdn string) ([]string, error) {
	dir, err := a.domainDir(fqdn)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, visitedFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read visited links: %w", err)
	}

	var links []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			links = append(links, line)
		}
	}
	return links, sc.Err()
}

// SaveVisited replaces the visited-link file of fqdn.
func (a *Archive) SaveVisited(fqdn string, links []string) error {
	dir, err := a.domainDir(fqdn)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, l := range links {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := writeFile(filepath.Join(dir, visitedFile), []byte(b.String())); err != nil {
		return fmt.Errorf("failed to write visited links: %w", err)
	}
	return nil
}

func (a *Archive) domainDir(fqdn string) (string, error) {
	if fqdn == "" || !filepath.IsLocal(fqdn) || strings.ContainsAny(fqdn, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, fqdn)
	}
	return filepath.Join(a.root, fqdn), nil
}

// mediaTypeOf prefers the declared Content-Type and sniffs otherwise.
func mediaTypeOf(header http.Header, content []byte) string {
	if header != nil {
		if mt, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil && mt != "" {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(mimetype.Detect(content).String())
	return mt
}

func extension(mediaType string, content []byte) string {
	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if ext := mimetype.Detect(content).Extension(); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// isText reports whether mediaType is worth compressing.
func isText(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		strings.HasSuffix(mediaType, "+xml"),
		strings.HasSuffix(mediaType, "+json"):
		return true
	}
	switch mediaType {
	case "application/json", "application/xml", "application/javascript",
		"application/x-javascript", "application/xhtml+xml", "image/svg+xml":
		return true
	}
	for m := mimetype.Lookup(mediaType); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (m Metadata) encode() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "compressed : %t\n", m.Compressed)
	fmt.Fprintf(&b, "name : %s\n", m.Name)
	fmt.Fprintf(&b, "bytes : %d\n", m.Bytes)
	fmt.Fprintf(&b, "type : %s\n", m.ContentType)
	fmt.Fprintf(&b, "retrieved : %s\n", m.Retrieved.Format(time.RFC3339))
	fmt.Fprintf(&b, "url : %s\n", m.URL)
	fmt.Fprintf(&b, "run : %s\n", m.RunID)
	return []byte(b.String())
}

func parseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	for line := range strings.SplitSeq(string(raw), "\n") {
		key, value, ok := strings.Cut(line, " : ")
		if !ok {
			continue
		}
		var err error
		switch key {
		case "compressed":
			m.Compressed, err = strconv.ParseBool(value)
		case "name":
			m.Name = value
		case "bytes":
			m.Bytes, err = strconv.Atoi(value)
		case "type":
			m.ContentType = value
		case "retrieved":
			m.Retrieved, err = time.Parse(time.RFC3339, value)
		case "url":
			m.URL = value
		case "run":
			m.RunID = value
		}
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: %s: %w", ErrInvalidMetadata, key, err)
		}
	}
	if m.Name == "" {
		return Metadata{}, fmt.Errorf("%w: missing name", ErrInvalidMetadata)
	}
	return m, nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
