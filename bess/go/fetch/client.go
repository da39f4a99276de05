// Package fetch is the polite HTTP substrate of the crawler. It layers rate
// limiting, robots.txt, retries, an on-disk page cache, and the TLS and HTTP
// fallbacks for broken municipal infrastructure on top of go/httputils.
package fetch

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/go/httputils"
	"github.com/witto13/BESS-Crawler/go/metrics2"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

// UserAgent identifies the crawler to municipal servers.
const UserAgent = "BESS-Forensic-Crawler/1.0 (Research/Transparency; +https://github.com/bess-crawler)"

const (
	defaultHostDelay = time.Second

	jitterMinMs = 50
	jitterMaxMs = 250
)

// hostDelayOverrides are hosts with stricter crawl-delay requirements.
var hostDelayOverrides = map[string]time.Duration{
	"geobasis-bb.de":     10 * time.Second,
	"www.geobasis-bb.de": 10 * time.Second,
}

// defaultInsecureAllowlist lists RIS hosts with permanently broken
// certificate chains. Only these may get a verify-off retry.
var defaultInsecureAllowlist = []string{
	"ssl.ratsinfo-online.net",
}

// risMarkers identify a RIS page. An HTTP fallback response is only
// accepted when it contains one of these.
var risMarkers = []string{
	"sitzung",
	"gremium",
	"tagesordnung",
	"beschluss",
	"sessionnet",
	"ratsinformationssystem",
	"ris",
	"vorlage",
	"antrag",
}

// Response is the outcome of a successful fetch.
type Response struct {
	Body        []byte
	StatusCode  int
	ContentType string
	FromCache   bool
	FinalURL    string
}

// Client is the shared crawler HTTP client. All crawlers in a process use
// one Client so the politeness limits hold globally.
type Client struct {
	client         *http.Client
	insecureClient *http.Client

	mode              prefilter.Mode
	retries           int
	allowHTTPFallback bool
	insecureAllowlist map[string]bool

	global    *semaphore.Weighted
	perHost   int64
	hostDelay time.Duration
	hostsMtx  sync.Mutex
	hostSems  map[string]*semaphore.Weighted
	limiters  map[string]*rate.Limiter

	robots *robotsCache
	cache  *PageCache

	sslErrors       metrics2.Counter
	sslFallbacks    metrics2.Counter
	httpFallbacks   metrics2.Counter
	robotsSkips     metrics2.Counter
	cacheHits       metrics2.Counter
	cacheRevalidate metrics2.Counter
}

// New builds a Client from the runtime config.
func New(cfg *config.Config) *Client {
	clientCfg := httputils.DefaultClientConfig().WithRequestTimeout(cfg.Timeout)
	insecure := clientCfg.Client()
	insecure.Transport = &insecureTransport{wrap: insecure.Transport}

	allowlist := map[string]bool{}
	for _, h := range defaultInsecureAllowlist {
		allowlist[h] = true
	}
	for _, h := range cfg.SSLInsecureAllowlist {
		allowlist[strings.ToLower(h)] = true
	}

	c := &Client{
		client:            clientCfg.Client(),
		insecureClient:    insecure,
		mode:              cfg.Mode(),
		retries:           cfg.Retries,
		allowHTTPFallback: cfg.AllowHTTPFallback,
		insecureAllowlist: allowlist,
		global:            semaphore.NewWeighted(int64(cfg.GlobalConcurrency)),
		perHost:           int64(cfg.PerDomainConcurrency),
		hostDelay:         defaultHostDelay,
		hostSems:          map[string]*semaphore.Weighted{},
		limiters:          map[string]*rate.Limiter{},
		sslErrors:         metrics2.GetCounter("ssl_errors_total", nil),
		sslFallbacks:      metrics2.GetCounter("ssl_fallback_used_total", nil),
		httpFallbacks:     metrics2.GetCounter("http_fallback_used_total", nil),
		robotsSkips:       metrics2.GetCounter("robots_disallowed_total", nil),
		cacheHits:         metrics2.GetCounter("page_cache_hits_total", nil),
		cacheRevalidate:   metrics2.GetCounter("page_cache_revalidations_total", nil),
	}
	c.robots = newRobotsCache(c)
	if cfg.PageCacheBase != "" {
		c.cache = NewPageCache(cfg.PageCacheBase)
	}
	return c
}

// NewForTesting returns a Client that sends all requests through httpClient
// with the politeness delays shrunk, for tests using mockhttpclient.
func NewForTesting(cfg *config.Config, httpClient *http.Client) *Client {
	c := New(cfg)
	c.client = httpClient
	c.insecureClient = httpClient
	c.hostDelay = time.Millisecond
	return c
}

// insecureTransport disables certificate verification. Only used for the
// single fallback retry against allowlisted hosts.
type insecureTransport struct {
	wrap http.RoundTripper
	once sync.Once
	rt   http.RoundTripper
}

func (t *insecureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.once.Do(func() {
		base := &http.Transport{
			Dial:            httputils.DialTimeout,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		t.rt = base
	})
	return t.rt.RoundTrip(req)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func (c *Client) hostSemaphore(host string) *semaphore.Weighted {
	c.hostsMtx.Lock()
	defer c.hostsMtx.Unlock()
	sem, ok := c.hostSems[host]
	if !ok {
		sem = semaphore.NewWeighted(c.perHost)
		c.hostSems[host] = sem
	}
	return sem
}

func (c *Client) hostLimiter(host string) *rate.Limiter {
	c.hostsMtx.Lock()
	defer c.hostsMtx.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		delay := c.hostDelay
		if override, ok := hostDelayOverrides[host]; ok {
			delay = override
		}
		l = rate.NewLimiter(rate.Every(delay), 1)
		c.limiters[host] = l
	}
	return l
}

// acquire blocks until the URL may be fetched politely. The returned release
// func must be called when the request is done.
func (c *Client) acquire(ctx context.Context, rawURL string) (func(), error) {
	host := hostOf(rawURL)
	if err := c.global.Acquire(ctx, 1); err != nil {
		return nil, skerr.Wrap(err)
	}
	hostSem := c.hostSemaphore(host)
	if err := hostSem.Acquire(ctx, 1); err != nil {
		c.global.Release(1)
		return nil, skerr.Wrap(err)
	}
	if err := c.hostLimiter(host).Wait(ctx); err != nil {
		hostSem.Release(1)
		c.global.Release(1)
		return nil, skerr.Wrap(err)
	}
	if c.mode == prefilter.ModeFast {
		jitter := time.Duration(jitterMinMs+rand.Intn(jitterMaxMs-jitterMinMs)) * time.Millisecond
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			hostSem.Release(1)
			c.global.Release(1)
			return nil, skerr.Wrap(ctx.Err())
		}
	}
	return func() {
		hostSem.Release(1)
		c.global.Release(1)
	}, nil
}

// isTLSError reports whether err is a certificate verification failure.
func isTLSError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}
	// Some TLS alert failures only surface as strings.
	return err != nil && strings.Contains(err.Error(), "certificate")
}

func (c *Client) do(ctx context.Context, client *http.Client, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, skerr.Wrapf(err, "building request for %s", rawURL)
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

// getOnce performs one fetch attempt, including the verify-off TLS fallback
// for allowlisted hosts.
func (c *Client) getOnce(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	resp, err := c.do(ctx, c.client, rawURL, headers)
	if err == nil {
		return resp, nil
	}
	if !isTLSError(err) {
		return nil, skerr.Wrap(err)
	}
	c.sslErrors.Inc(1)
	host := hostOf(rawURL)
	if !c.insecureAllowlist[host] {
		return nil, skerr.Wrapf(err, "TLS error for non-allowlisted host %s", host)
	}
	sklog.Warningf("SSL_FALLBACK_VERIFY_FALSE: host=%s url=%s", host, rawURL)
	resp, err = c.do(ctx, c.insecureClient, rawURL, headers)
	if err != nil {
		return nil, skerr.Wrapf(err, "TLS fallback for %s", rawURL)
	}
	c.sslFallbacks.Inc(1)
	return resp, nil
}

// terminalStatus is an HTTP status that retrying will not fix.
func terminalStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusGone || code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Get fetches the URL politely: robots check, rate limit, page cache with
// conditional revalidation, retries with exponential backoff. A 404 is
// returned as a Response, not an error, so callers can record it.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if allowed, reason := c.robots.Allowed(ctx, rawURL); !allowed {
		c.robotsSkips.Inc(1)
		return nil, skerr.Fmt("robots.txt disallows %s: %s", rawURL, reason)
	}

	headers := map[string]string{}
	if c.cache != nil {
		headers = c.cache.ConditionalHeaders(rawURL)
	}

	release, err := c.acquire(ctx, rawURL)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, skerr.Wrap(ctx.Err())
			}
		}
		resp, err := c.getOnce(ctx, rawURL, headers)
		if err != nil {
			lastErr = err
			continue
		}
		rv, done, err := c.handleResponse(rawURL, resp)
		if err != nil {
			lastErr = err
			continue
		}
		if done {
			return rv, nil
		}
	}
	return nil, skerr.Wrapf(lastErr, "fetching %s after %d attempts", rawURL, c.retries)
}

// handleResponse consumes resp. done is false when the attempt should be
// retried.
func (c *Client) handleResponse(rawURL string, resp *http.Response) (*Response, bool, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified && c.cache != nil {
		if body, meta, ok := c.cache.Get(rawURL); ok {
			c.cacheRevalidate.Inc(1)
			return &Response{
				Body:        body,
				StatusCode:  http.StatusOK,
				ContentType: meta.ContentType,
				FromCache:   true,
				FinalURL:    rawURL,
			}, true, nil
		}
		return nil, false, skerr.Fmt("got 304 for %s but cache entry is gone", rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, skerr.Wrapf(err, "reading body of %s", rawURL)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.cache != nil {
			if err := c.cache.Put(rawURL, body, resp.Header); err != nil {
				sklog.Warningf("Failed to cache %s: %s", rawURL, err)
			}
		}
		finalURL := rawURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		return &Response{
			Body:        body,
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			FinalURL:    finalURL,
		}, true, nil
	}
	if terminalStatus(resp.StatusCode) {
		return &Response{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			FinalURL:    rawURL,
		}, true, nil
	}
	return nil, false, skerr.Fmt("HTTP status %d for %s", resp.StatusCode, rawURL)
}

// looksLikeRIS reports whether body contains any RIS marker.
func looksLikeRIS(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range risMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// GetRIS fetches a RIS URL. On a TLS failure it additionally tries the
// plain-HTTP variant of the URL, if enabled, accepting the response only
// when it still looks like a RIS page.
func (c *Client) GetRIS(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.Get(ctx, rawURL)
	if err == nil {
		return resp, nil
	}
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Scheme != "https" || !c.allowHTTPFallback {
		return nil, err
	}
	u.Scheme = "http"
	httpURL := u.String()
	sklog.Infof("Attempting HTTP fallback for RIS URL: %s -> %s", rawURL, httpURL)
	httpResp, httpErr := c.Get(ctx, httpURL)
	if httpErr != nil {
		return nil, skerr.Wrapf(err, "HTTPS failed and HTTP fallback also failed: %s", httpErr)
	}
	if httpResp.StatusCode != http.StatusOK || !looksLikeRIS(httpResp.Body) {
		return nil, skerr.Wrapf(err, "HTTPS failed and HTTP fallback did not return a RIS page")
	}
	c.httpFallbacks.Inc(1)
	sklog.Warningf("RIS_HTTP_FALLBACK_USED: original=%s http_fallback=%s", rawURL, httpURL)
	return httpResp, nil
}

// HeadInfo is the result of a HEAD request, used for PDF size checks.
type HeadInfo struct {
	StatusCode    int
	ContentLength int64
	ContentType   string
}

// Head issues a HEAD request without consuming a retry budget.
func (c *Client) Head(ctx context.Context, rawURL string) (*HeadInfo, error) {
	release, err := c.acquire(ctx, rawURL)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, skerr.Wrapf(err, "HEAD %s", rawURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return &HeadInfo{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

// SHA256 returns the hex digest of b.
func SHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
