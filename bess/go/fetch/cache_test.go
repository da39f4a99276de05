package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageCache(t *testing.T) {
	cache := NewPageCache(t.TempDir())
	const url = "https://www.testdorf.de/amtsblatt"

	_, _, ok := cache.Get(url)
	require.False(t, ok)

	require.NoError(t, cache.Put(url, []byte("Inhalt"), http.Header{
		"Etag":          []string{`"v1"`},
		"Last-Modified": []string{"Mon, 01 Jul 2024 10:00:00 GMT"},
		"Content-Type":  []string{"text/html"},
	}))

	body, meta, ok := cache.Get(url)
	require.True(t, ok)
	require.Equal(t, []byte("Inhalt"), body)
	require.Equal(t, url, meta.URL)
	require.Equal(t, 6, meta.ContentLength)
	require.Equal(t, `"v1"`, meta.ETag)
	require.Equal(t, "text/html", meta.ContentType)

	// A different URL misses.
	_, _, ok = cache.Get("https://www.testdorf.de/andere")
	require.False(t, ok)
}

func TestConditionalHeaders(t *testing.T) {
	cache := NewPageCache(t.TempDir())
	const url = "https://www.testdorf.de/amtsblatt"

	require.Empty(t, cache.ConditionalHeaders(url))

	require.NoError(t, cache.Put(url, []byte("Inhalt"), http.Header{
		"Etag":          []string{`"v1"`},
		"Last-Modified": []string{"Mon, 01 Jul 2024 10:00:00 GMT"},
	}))
	require.Equal(t, map[string]string{
		"If-None-Match":     `"v1"`,
		"If-Modified-Since": "Mon, 01 Jul 2024 10:00:00 GMT",
	}, cache.ConditionalHeaders(url))

	// Without validators there is nothing to send.
	require.NoError(t, cache.Put("https://www.testdorf.de/ohne", []byte("x"), http.Header{}))
	require.Empty(t, cache.ConditionalHeaders("https://www.testdorf.de/ohne"))
}
