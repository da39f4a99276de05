package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

// PageMeta is the sidecar metadata stored next to each cached body.
type PageMeta struct {
	URL           string `json:"url"`
	CachedAt      string `json:"cached_at"`
	ContentLength int    `json:"content_length"`
	ETag          string `json:"etag,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
}

// PageCache stores fetched bodies on disk, keyed by sha256(url) and sharded
// by the first two hex chars. Conditional headers from the sidecar let Get
// revalidate with If-None-Match / If-Modified-Since.
type PageCache struct {
	base string
}

// NewPageCache returns a PageCache rooted at base.
func NewPageCache(base string) *PageCache {
	return &PageCache{base: base}
}

func urlHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *PageCache) paths(url string) (string, string) {
	h := urlHash(url)
	dir := filepath.Join(c.base, h[:2])
	return filepath.Join(dir, h+".bin"), filepath.Join(dir, h+".meta.json")
}

// Get returns the cached body and metadata for the URL.
func (c *PageCache) Get(url string) ([]byte, *PageMeta, bool) {
	contentPath, metaPath := c.paths(url)
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, false
	}
	var meta PageMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		sklog.Debugf("Corrupt cache metadata for %s: %s", url, err)
		return nil, nil, false
	}
	body, err := os.ReadFile(contentPath)
	if err != nil {
		return nil, nil, false
	}
	return body, &meta, true
}

// Put stores the body and its metadata.
func (c *PageCache) Put(url string, body []byte, headers http.Header) error {
	contentPath, metaPath := c.paths(url)
	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		return skerr.Wrap(err)
	}
	if err := os.WriteFile(contentPath, body, 0644); err != nil {
		return skerr.Wrap(err)
	}
	meta := PageMeta{
		URL:           url,
		CachedAt:      time.Now().UTC().Format(time.RFC3339),
		ContentLength: len(body),
		ETag:          headers.Get("ETag"),
		LastModified:  headers.Get("Last-Modified"),
		ContentType:   headers.Get("Content-Type"),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return skerr.Wrap(err)
	}
	return skerr.Wrap(os.WriteFile(metaPath, metaBytes, 0644))
}

// ConditionalHeaders returns If-None-Match / If-Modified-Since headers for
// the URL, or an empty map when it isn't cached.
func (c *PageCache) ConditionalHeaders(url string) map[string]string {
	_, meta, ok := c.Get(url)
	if !ok {
		return map[string]string{}
	}
	headers := map[string]string{}
	if meta.ETag != "" {
		headers["If-None-Match"] = meta.ETag
	}
	if meta.LastModified != "" {
		headers["If-Modified-Since"] = meta.LastModified
	}
	return headers
}
