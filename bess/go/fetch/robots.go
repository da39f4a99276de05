package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"

	"github.com/witto13/BESS-Crawler/go/sklog"
)

const (
	robotsCacheTTL     = 12 * time.Hour
	robotsCacheCleanup = time.Hour
)

// robotsCache fetches and caches robots.txt per origin. A fetch failure is
// treated as allow-all; municipal sites frequently have no robots.txt and a
// broken one should not stall the crawl.
type robotsCache struct {
	client *Client
	cache  *gocache.Cache
}

func newRobotsCache(client *Client) *robotsCache {
	return &robotsCache{
		client: client,
		cache:  gocache.New(robotsCacheTTL, robotsCacheCleanup),
	}
}

// group returns the robots group for our user agent at the given origin.
// Returns nil when everything is allowed.
func (r *robotsCache) group(ctx context.Context, origin string) *robotstxt.Group {
	if cached, ok := r.cache.Get(origin); ok {
		if g, ok := cached.(*robotstxt.Group); ok {
			return g
		}
		return nil
	}

	var group *robotstxt.Group
	data := r.fetch(ctx, origin+"/robots.txt")
	if data != nil {
		robots, err := robotstxt.FromBytes(data)
		if err != nil {
			sklog.Debugf("Failed to parse robots.txt for %s: %s", origin, err)
		} else {
			group = robots.FindGroup(UserAgent)
		}
	}
	// Cache nil results too so dead origins aren't re-probed.
	r.cache.Set(origin, group, gocache.DefaultExpiration)
	return group
}

// fetch gets robots.txt directly, bypassing Get to avoid recursing into the
// robots check. Returns nil on any failure.
func (r *robotsCache) fetch(ctx context.Context, robotsURL string) []byte {
	release, err := r.client.acquire(ctx, robotsURL)
	if err != nil {
		return nil
	}
	defer release()
	resp, err := r.client.do(ctx, r.client.client, robotsURL, nil)
	if err != nil {
		sklog.Debugf("Failed to fetch %s: %s", robotsURL, err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return body
}

// Allowed reports whether robots.txt permits fetching the URL, with a short
// reason when it does not.
func (r *robotsCache) Allowed(ctx context.Context, rawURL string) (bool, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, ""
	}
	origin := u.Scheme + "://" + u.Host
	group := r.group(ctx, origin)
	if group == nil {
		return true, ""
	}
	if group.Test(u.Path) {
		return true, ""
	}
	return false, "disallowed by robots.txt"
}
