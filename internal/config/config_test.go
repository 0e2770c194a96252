package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webchecks/internal/profile"
	"github.com/nao1215/webchecks/internal/robots"
	"github.com/nao1215/webchecks/internal/security"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("https is enforced", func(t *testing.T) {
		t.Parallel()
		if !cfg.EnforceHTTPS {
			t.Error("expected EnforceHTTPS to be true")
		}
		if cfg.AllowRedirect {
			t.Error("expected AllowRedirect to be false")
		}
	})

	t.Run("unguided policy is strict", func(t *testing.T) {
		t.Parallel()
		if cfg.UnguidedPolicy != "strict" {
			t.Errorf("expected UnguidedPolicy 'strict', got %q", cfg.UnguidedPolicy)
		}
	})

	t.Run("agent and user agent are webchecks", func(t *testing.T) {
		t.Parallel()
		if cfg.AgentName != "webchecks" || cfg.UserAgent != "webchecks" {
			t.Errorf("got agent %q, user agent %q", cfg.AgentName, cfg.UserAgent)
		}
	})

	t.Run("timing defaults", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 20*time.Second {
			t.Errorf("expected Timeout 20s, got %v", cfg.Timeout)
		}
		if cfg.Duration != 1000*time.Second {
			t.Errorf("expected Duration 1000s, got %v", cfg.Duration)
		}
		if cfg.PacingAlgorithm != "EXPONENTIAL_RND_MIN" {
			t.Errorf("expected EXPONENTIAL_RND_MIN, got %q", cfg.PacingAlgorithm)
		}
		if cfg.AverageWait != 25*time.Second || cfg.MinimumWait != 20*time.Second {
			t.Errorf("expected 25s/20s waits, got %v/%v", cfg.AverageWait, cfg.MinimumWait)
		}
	})

	t.Run("crawl and compression enabled, javascript disabled", func(t *testing.T) {
		t.Parallel()
		if !cfg.Crawl || !cfg.Compress || cfg.JavaScript {
			t.Errorf("got Crawl=%v Compress=%v JavaScript=%v", cfg.Crawl, cfg.Compress, cfg.JavaScript)
		}
	})

	t.Run("directories follow XDG", func(t *testing.T) {
		t.Parallel()
		if !strings.HasPrefix(cfg.ResultDir, XDGDataDir()) {
			t.Errorf("ResultDir %q not under %q", cfg.ResultDir, XDGDataDir())
		}
		if cfg.CacheDir != XDGCacheDir() {
			t.Errorf("CacheDir = %q, want %q", cfg.CacheDir, XDGCacheDir())
		}
	})
}

// TestConfigValidate tests the Validate method with table-driven tests.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			modify:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "no seed",
			modify:  func(c *Config) { c.Seeds = nil },
			wantErr: ErrNoSeed,
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Timeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative duration",
			modify:  func(c *Config) { c.Duration = -time.Second },
			wantErr: ErrInvalidDuration,
		},
		{
			name:    "negative max body size",
			modify:  func(c *Config) { c.MaxBodySize = -1 },
			wantErr: ErrInvalidMaxBodySize,
		},
		{
			name: "json and markdown together",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "unknown unguided policy",
			modify:  func(c *Config) { c.UnguidedPolicy = "lenient" },
			wantErr: ErrInvalidPolicy,
		},
		{
			name:    "bad whitelist pattern",
			modify:  func(c *Config) { c.WhitelistDomains = []string{"(unclosed"} },
			wantErr: ErrInvalidPattern,
		},
		{
			name:    "non-positive average wait",
			modify:  func(c *Config) { c.AverageWait = 0 },
			wantErr: ErrInvalidWait,
		},
		{
			name: "bad domain override",
			modify: func(c *Config) {
				c.File = &File{Domains: map[string]DomainConfig{"example.com": {AverageWait: -time.Second}}}
			},
			wantErr: ErrInvalidWait,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.Seeds = []string{"example.com"}
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("unknown algorithm is an options error", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Seeds = []string{"example.com"}
		cfg.PacingAlgorithm = "RANDOM"

		var optErr *profile.OptionsError
		if err := cfg.Validate(); !errors.As(err, &optErr) {
			t.Fatalf("expected OptionsError, got %v", err)
		}
		if optErr.Option != "algorithm" {
			t.Errorf("Option = %q, want algorithm", optErr.Option)
		}
	})
}

func TestFallback(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.UnguidedPolicy = "free"
	f, err := cfg.Fallback()
	if err != nil {
		t.Fatalf("Fallback() error = %v", err)
	}
	if f != robots.FallbackFree {
		t.Errorf("Fallback() = %q, want free", f)
	}
}

func TestPolicyConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags only", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.WhitelistTLD = []string{"org"}
		cfg.BlacklistedTLD = []string{"xyz"}
		cfg.SingleDomainOnly = `example\.org`

		pc := cfg.PolicyConfig()
		if !pc.WhitelistedTLDOnly || pc.WhitelistedDomainsOnly {
			t.Errorf("unexpected switches: %+v", pc)
		}
		if pc.SingleDomainOnly != `example\.org` || !pc.EnforceHTTPS {
			t.Errorf("unexpected policy: %+v", pc)
		}
	})

	t.Run("merged with file", func(t *testing.T) {
		t.Parallel()

		filePolicy := &security.PolicyConfig{
			WhitelistDomains:       []string{"a\\.com"},
			WhitelistedDomainsOnly: true,
			AllowRedirect:          true,
			SingleDomainOnly:       "file",
		}
		cfg := NewConfig()
		cfg.File = &File{Policy: filePolicy}
		cfg.WhitelistDomains = []string{"b\\.com"}
		cfg.EnforceHTTPS = false

		pc := cfg.PolicyConfig()
		if len(pc.WhitelistDomains) != 2 {
			t.Errorf("WhitelistDomains = %v, want both entries", pc.WhitelistDomains)
		}
		if !pc.AllowRedirect || !pc.WhitelistedDomainsOnly {
			t.Errorf("file switches lost: %+v", pc)
		}
		if pc.SingleDomainOnly != "file" {
			t.Errorf("SingleDomainOnly = %q, want file", pc.SingleDomainOnly)
		}
		if pc.EnforceHTTPS {
			t.Error("EnforceHTTPS comes from the flag")
		}
		if len(filePolicy.WhitelistDomains) != 1 {
			t.Error("file policy must not be modified")
		}
	})
}

// TestFileDomainConfig tests merging a domain entry over the defaults.
func TestFileDomainConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: DomainConfig{
			Algorithm:   "EQUISPACED",
			AverageWait: 10 * time.Second,
			Headers:     map[string]string{"X-Default": "1"},
		},
		Domains: map[string]DomainConfig{
			"example.com": {
				AverageWait: 30 * time.Second,
				Cookie:      "session=xyz",
				Headers:     map[string]string{"X-Site": "2"},
				JavaScript:  JavaScriptTrusted,
			},
		},
	}

	t.Run("unknown domain gets defaults", func(t *testing.T) {
		t.Parallel()

		dc := cf.DomainConfig("other.org")
		if dc.Algorithm != "EQUISPACED" || dc.AverageWait != 10*time.Second {
			t.Errorf("unexpected config: %+v", dc)
		}
	})

	t.Run("domain overrides are merged", func(t *testing.T) {
		t.Parallel()

		dc := cf.DomainConfig("example.com")
		if dc.Algorithm != "EQUISPACED" {
			t.Errorf("Algorithm = %q, want inherited EQUISPACED", dc.Algorithm)
		}
		if dc.AverageWait != 30*time.Second {
			t.Errorf("AverageWait = %v, want 30s", dc.AverageWait)
		}
		if dc.Headers["X-Default"] != "1" || dc.Headers["X-Site"] != "2" {
			t.Errorf("Headers = %v", dc.Headers)
		}
		if dc.JavaScript != JavaScriptTrusted {
			t.Errorf("JavaScript = %q", dc.JavaScript)
		}
	})

	t.Run("defaults are not modified", func(t *testing.T) {
		t.Parallel()

		_ = cf.DomainConfig("example.com")
		if _, ok := cf.Defaults.Headers["X-Site"]; ok {
			t.Error("domain headers leaked into defaults")
		}
	})
}

func TestDomainSettings(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.File = &File{
		Domains: map[string]DomainConfig{
			"example.com": {
				Algorithm:   "equispaced",
				AverageWait: 5 * time.Second,
				Cookie:      "a=b",
				JavaScript:  "trusted",
			},
			"plain.org": {},
		},
	}

	settings, err := cfg.DomainSettings()
	if err != nil {
		t.Fatalf("DomainSettings() error = %v", err)
	}

	ex := settings["example.com"]
	if ex.Pacing.Algorithm != profile.Equispaced || ex.Pacing.Average != 5*time.Second {
		t.Errorf("example.com pacing = %+v", ex.Pacing)
	}
	if ex.Headers["Cookie"] != "a=b" {
		t.Errorf("example.com headers = %v", ex.Headers)
	}
	if !ex.JavaScript {
		t.Error("example.com should trust JavaScript")
	}

	plain := settings["plain.org"]
	if plain.Pacing != profile.DefaultPacing() {
		t.Errorf("plain.org pacing = %+v, want defaults", plain.Pacing)
	}
	if plain.JavaScript {
		t.Error("plain.org should follow the global JavaScript switch")
	}

	t.Run("invalid javascript value", func(t *testing.T) {
		t.Parallel()

		bad := NewConfig()
		bad.File = &File{Domains: map[string]DomainConfig{"x.com": {JavaScript: "maybe"}}}
		var optErr *profile.OptionsError
		if _, err := bad.DomainSettings(); !errors.As(err, &optErr) {
			t.Errorf("expected OptionsError, got %v", err)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.webchecks.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `policy:
  whitelistedTLDOnly: true
  whitelistTLD:
    - com
    - org
  blacklistedTLD:
    - xyz
defaults:
  algorithm: EXPONENTIAL_RND
  averageWait: 30s
domains:
  example.com:
    minimumWait: 45s
    cookie: "session=xyz"
    headers:
      Accept-Language: "de"
    javascript: trusted
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Policy == nil || !cf.Policy.WhitelistedTLDOnly || len(cf.Policy.WhitelistTLD) != 2 {
			t.Errorf("unexpected policy: %+v", cf.Policy)
		}
		if cf.Defaults.AverageWait != 30*time.Second {
			t.Errorf("expected default average 30s, got %v", cf.Defaults.AverageWait)
		}
		site, ok := cf.Domains["example.com"]
		if !ok {
			t.Fatal("expected example.com in domains")
		}
		if site.MinimumWait != 45*time.Second {
			t.Errorf("expected minimum 45s, got %v", site.MinimumWait)
		}
		if site.Headers["Accept-Language"] != "de" {
			t.Errorf("expected Accept-Language header")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Domains map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("defaults:\n  averageWait: 10s\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Domains == nil {
			t.Error("expected Domains map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("XDG %s dir %q does not end with %q", name, dir, AppName)
		}
	}
}
