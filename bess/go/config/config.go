// Package config holds the shared runtime configuration of the crawler
// binaries. Flags populate the struct; a few operational knobs fall back to
// environment variables so they can be flipped on a running deployment
// without changing the command line.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/go/skerr"
)

// Env vars consulted as fallbacks.
const (
	EnvSSLInsecureAllowlist = "CRAWL_SSL_INSECURE_ALLOWLIST"
	EnvAllowHTTPFallback    = "CRAWL_ALLOW_HTTP_FALLBACK"
)

// Defaults.
const (
	DefaultQueueName            = "crawl"
	DefaultCrawlMode            = string(prefilter.ModeFast)
	DefaultGlobalConcurrency    = 100
	DefaultPerDomainConcurrency = 2
	DefaultTimeout              = 30 * time.Second
	DefaultRetries              = 3
	DefaultPDFMaxSizeMB         = 25
	DefaultStorageBasePath      = "/data/documents"
	DefaultPageCacheBase        = "/data/cache"
	DefaultTextCacheBase        = "/data/text_cache"
)

// Config is the runtime configuration shared by the worker and the
// orchestrator.
type Config struct {
	// PostgresDSN is the connection string for the results database.
	PostgresDSN string
	// RedisURL points at the job queue broker.
	RedisURL string
	// QueueName is the Redis list both binaries use.
	QueueName string

	// StorageBasePath is where fetched documents are stored
	// content-addressed.
	StorageBasePath string
	// PageCacheBase is the on-disk HTTP page cache.
	PageCacheBase string
	// TextCacheBase is the extracted-PDF-text cache.
	TextCacheBase string

	// CrawlMode is "fast" or "deep" and controls prefilter thresholds and
	// politeness jitter.
	CrawlMode string
	// GlobalConcurrency caps in-flight requests across all hosts.
	GlobalConcurrency int
	// PerDomainConcurrency caps in-flight requests per host.
	PerDomainConcurrency int
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration
	// Retries is the fetch retry budget per URL.
	Retries int
	// PDFMaxSizeMB skips PDF downloads larger than this.
	PDFMaxSizeMB int

	// AllowHTTPFallback permits a plain-HTTP retry for RIS hosts whose
	// HTTPS endpoint is broken. Off by default.
	AllowHTTPFallback bool
	// SSLInsecureAllowlist lists hosts allowed a verify-off TLS retry.
	SSLInsecureAllowlist []string
}

// New returns a Config with the defaults applied.
func New() *Config {
	return &Config{
		QueueName:            DefaultQueueName,
		StorageBasePath:      DefaultStorageBasePath,
		PageCacheBase:        DefaultPageCacheBase,
		TextCacheBase:        DefaultTextCacheBase,
		CrawlMode:            DefaultCrawlMode,
		GlobalConcurrency:    DefaultGlobalConcurrency,
		PerDomainConcurrency: DefaultPerDomainConcurrency,
		Timeout:              DefaultTimeout,
		Retries:              DefaultRetries,
		PDFMaxSizeMB:         DefaultPDFMaxSizeMB,
	}
}

// ApplyEnv fills in the env-var-backed knobs that have no flag equivalent.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSSLInsecureAllowlist); v != "" {
		c.SSLInsecureAllowlist = splitAndTrim(v)
	}
	if v := os.Getenv(EnvAllowHTTPFallback); v != "" {
		c.AllowHTTPFallback = v == "1" || strings.EqualFold(v, "true")
	}
}

// Validate returns an error describing the first invalid field.
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return skerr.Fmt("postgres DSN is required")
	}
	if c.RedisURL == "" {
		return skerr.Fmt("redis URL is required")
	}
	if c.QueueName == "" {
		return skerr.Fmt("queue name is required")
	}
	if c.CrawlMode != string(prefilter.ModeFast) && c.CrawlMode != string(prefilter.ModeDeep) {
		return skerr.Fmt("invalid crawl mode %q; must be %q or %q", c.CrawlMode, prefilter.ModeFast, prefilter.ModeDeep)
	}
	if c.GlobalConcurrency < 1 {
		return skerr.Fmt("global concurrency must be at least 1, got %d", c.GlobalConcurrency)
	}
	if c.PerDomainConcurrency < 1 {
		return skerr.Fmt("per-domain concurrency must be at least 1, got %d", c.PerDomainConcurrency)
	}
	if c.Timeout <= 0 {
		return skerr.Fmt("timeout must be positive, got %s", c.Timeout)
	}
	// With zero retries the fetch loop would never issue a request.
	if c.Retries < 1 {
		return skerr.Fmt("retries must be at least 1, got %d", c.Retries)
	}
	if c.PDFMaxSizeMB < 1 {
		return skerr.Fmt("PDF max size must be at least 1 MB, got %d", c.PDFMaxSizeMB)
	}
	return nil
}

// Mode returns the crawl mode as a prefilter.Mode.
func (c *Config) Mode() prefilter.Mode {
	return prefilter.Mode(c.CrawlMode)
}

func splitAndTrim(s string) []string {
	rv := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			rv = append(rv, part)
		}
	}
	return rv
}
