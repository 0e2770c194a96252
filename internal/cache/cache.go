package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DurationDay is the refresh interval used for robots files.
const DurationDay = 24 * time.Hour

// metaFile is the SQLite file holding metadata and link locations, under the cache root.
const metaFile = "meta.db"

var (
	// ErrInvalidName is returned when a domain or name would escape the cache root.
	ErrInvalidName = errors.New("invalid cache name")

	// ErrCacheNotFound is returned by Open when CreateIfNotExists is false and
	// there is no cache at the given root.
	ErrCacheNotFound = errors.New("cache not found")
)

// Cache is a persistent content store with per-entry expiry and content
// hashes, plus a table mapping web links to local identifiers. Content lives
// in files under <root>/<domain>/<name>; metadata lives in SQLite.
//
// All operations are serialized, so a Cache may be shared by the robots
// engine, the archive and express fetches without outside locking.
type Cache struct {
	db   *sql.DB
	root string
	now  func() time.Time
	mu   sync.Mutex
}

// Options configures Cache behavior.
type Options struct {
	// CreateIfNotExists creates the root directory and database if missing.
	CreateIfNotExists bool

	// EnableWAL enables SQLite write-ahead logging.
	EnableWAL bool

	// Now overrides the clock used for expiry. Nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default cache options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Entry is cached content together with its hash.
type Entry struct {
	Content []byte
	Hash    string
}

// Record is one metadata row.
type Record struct {
	Domain    string
	Name      string
	Hash      string
	ExpiresAt time.Time
	StoredAt  time.Time
}

// Open opens or creates the cache rooted at root.
func Open(root string, opts Options) (*Cache, error) {
	dbPath := filepath.Join(root, metaFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrCacheNotFound, root)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check cache path: %w", err)
		}
	} else if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	c := &Cache{db: db, root: root, now: now}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := c.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Root returns the directory the cache stores content in.
func (c *Cache) Root() string { return c.root }

func (c *Cache) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS metadata (
		domain TEXT NOT NULL,
		name TEXT NOT NULL,
		hash TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		stored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (domain, name)
	);

	-- links is append-only; the newest row for a weblink wins.
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		weblink TEXT NOT NULL,
		local_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_links_weblink ON links(weblink);
	`
	_, err := c.db.ExecContext(context.Background(), schema)
	return err
}

// Store writes content under (domain, name) for ttl and returns its hash.
// A ttl of zero or less stores nothing and returns "".
func (c *Cache) Store(ctx context.Context, domain string, content []byte, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", nil
	}
	path, err := c.contentPath(domain, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFileAtomic(path, content); err != nil {
		return "", fmt.Errorf("failed to write cached content: %w", err)
	}

	hash := Hash(content)
	query := `
	INSERT INTO metadata (domain, name, hash, expires_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(domain, name) DO UPDATE SET
		hash = excluded.hash,
		expires_at = excluded.expires_at,
		stored_at = CURRENT_TIMESTAMP
	`
	if _, err := c.db.ExecContext(ctx, query, domain, name, hash, c.now().Add(ttl).UnixNano()); err != nil {
		return "", fmt.Errorf("failed to store cache metadata: %w", err)
	}
	return hash, nil
}

// Load returns the content stored under (domain, name), or nil when there is
// none or it has expired. Expired entries are deleted.
func (c *Cache) Load(ctx context.Context, domain, name string) (*Entry, error) {
	path, err := c.contentPath(domain, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hash, err := c.liveHash(ctx, domain, name)
	if err != nil || hash == "" {
		return nil, err
	}
	content, err := os.ReadFile(path) //nolint:gosec // path is confined to the cache root
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached content: %w", err)
	}
	return &Entry{Content: content, Hash: Hash(content)}, nil
}

// GetHash returns the hash stored for (domain, name), or "" when there is none
// or it has expired. Expired entries are deleted.
func (c *Cache) GetHash(ctx context.Context, domain, name string) (string, error) {
	if _, err := c.contentPath(domain, name); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.liveHash(ctx, domain, name)
}

// liveHash must be called with mu held.
func (c *Cache) liveHash(ctx context.Context, domain, name string) (string, error) {
	var hash string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT hash, expires_at FROM metadata WHERE domain = ? AND name = ?`,
		domain, name,
	).Scan(&hash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache metadata: %w", err)
	}

	if c.now().UnixNano() > expiresAt {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM metadata WHERE domain = ? AND name = ?`, domain, name,
		); err != nil {
			return "", fmt.Errorf("failed to delete expired cache entry: %w", err)
		}
		_ = os.Remove(filepath.Join(c.root, domain, name))
		return "", nil
	}
	return hash, nil
}

// StoreLinkLocation records that the content of weblink is stored under localID.
func (c *Cache) StoreLinkLocation(ctx context.Context, weblink, localID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO links (weblink, local_id) VALUES (?, ?)`, weblink, localID,
	); err != nil {
		return fmt.Errorf("failed to store link location: %w", err)
	}
	return nil
}

// GetLinkLocation returns the most recent local identifier recorded for
// weblink, or "" when there is none.
func (c *Cache) GetLinkLocation(ctx context.Context, weblink string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var localID string
	err := c.db.QueryRowContext(ctx,
		`SELECT local_id FROM links WHERE weblink = ? ORDER BY id DESC LIMIT 1`, weblink,
	).Scan(&localID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get link location: %w", err)
	}
	return localID, nil
}

// records lists the metadata rows, expired ones included, ordered by domain and name.
func (c *Cache) records(ctx context.Context) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT domain, name, hash, expires_at, stored_at FROM metadata ORDER BY domain, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache metadata: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var expiresAt int64
		var storedAt string
		if err := rows.Scan(&r.Domain, &r.Name, &r.Hash, &expiresAt, &storedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache metadata: %w", err)
		}
		r.ExpiresAt = time.Unix(0, expiresAt)
		r.StoredAt = parseTimestamp(storedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// contentPath returns <root>/<domain>/<name>, rejecting components that would
// leave the cache root.
func (c *Cache) contentPath(domain, name string) (string, error) {
	if domain == "" || name == "" || !filepath.IsLocal(domain) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, domain, name)
	}
	return filepath.Join(c.root, domain, name), nil
}

func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
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

// Hash returns the hex encoded SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries the formats SQLite may return and falls back to the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
