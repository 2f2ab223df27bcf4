package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/infra/scraper"
	"feed-digest/internal/resilience/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func serveFeed(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSFetcher_Fetch_RSS(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Article 1</title>
      <link>https://example.com/article1</link>
      <guid>urn:article:1</guid>
      <description>&lt;p&gt;Description &lt;b&gt;1&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Article 2</title>
      <link>https://example.com/article2</link>
      <description>Description 2</description>
      <pubDate>Tue, 02 Jan 2024 09:30:00 +0900</pubDate>
    </item>
  </channel>
</rss>`)

	fetcher := scraper.NewRSSFetcher(server.Client(), scraper.WithRetryConfig(fastRetry()))
	items, err := fetcher.Fetch(context.Background(), entity.Source{Name: "Test", URL: server.URL})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "urn:article:1", items[0].ID)
	assert.Equal(t, "Article 1", items[0].Title)
	assert.Equal(t, "https://example.com/article1", items[0].Link)
	assert.Equal(t, "Description 1", items[0].Summary)
	assert.Equal(t, "Test", items[0].SourceName)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), items[0].PublishedAt)

	// No GUID: the link becomes the identifier.
	assert.Equal(t, "https://example.com/article2", items[1].ID)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC), items[1].PublishedAt)
}

func TestRSSFetcher_Fetch_AtomUsesUpdatedWhenNotPublished(t *testing.T) {
	server := serveFeed(t, "application/atom+xml", `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Atom Article 1</title>
    <link href="https://example.com/atom1"/>
    <id>tag:example.com,2024:atom1</id>
    <updated>2024-01-05T12:00:00Z</updated>
    <summary>Atom Summary 1</summary>
  </entry>
</feed>`)

	fetcher := scraper.NewRSSFetcher(server.Client())
	items, err := fetcher.Fetch(context.Background(), entity.Source{Name: "Atom", URL: server.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "tag:example.com,2024:atom1", items[0].ID)
	assert.Equal(t, "Atom Article 1", items[0].Title)
	assert.Equal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), items[0].PublishedAt)
}

func TestRSSFetcher_Fetch_MissingDateLeavesZero(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title>
  <item><title>Undated</title><link>https://example.com/u</link></item>
</channel></rss>`)

	items, err := scraper.NewRSSFetcher(server.Client()).Fetch(context.Background(), entity.Source{Name: "T", URL: server.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].PublishedAt.IsZero())
}

func TestRSSFetcher_Fetch_WithContent(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Article with Content</title>
      <link>https://example.com/article</link>
      <description>Short description</description>
      <content:encoded><![CDATA[<p>Full content <em>here</em></p><script>alert(1)</script>]]></content:encoded>
    </item>
  </channel>
</rss>`)

	items, err := scraper.NewRSSFetcher(server.Client()).Fetch(context.Background(), entity.Source{Name: "T", URL: server.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Full content here", items[0].Content)
	assert.Equal(t, "Short description", items[0].Summary)
	assert.Equal(t, "Full content here", items[0].Body())
}

func TestRSSFetcher_Fetch_EmptyFeed(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Empty Feed</title>
    <link>https://example.com</link>
  </channel>
</rss>`)

	items, err := scraper.NewRSSFetcher(server.Client()).Fetch(context.Background(), entity.Source{Name: "E", URL: server.URL})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRSSFetcher_Fetch_InvalidXML(t *testing.T) {
	server := serveFeed(t, "application/rss+xml", "Invalid XML <><><>")

	_, err := scraper.NewRSSFetcher(server.Client(), scraper.WithRetryConfig(fastRetry())).
		Fetch(context.Background(), entity.Source{Name: "Bad", URL: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad")
}

func TestRSSFetcher_Fetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>T</title>
<item><title>Recovered</title><link>https://example.com/r</link></item></channel></rss>`))
	}))
	defer server.Close()

	fetcher := scraper.NewRSSFetcher(server.Client(), scraper.WithRetryConfig(fastRetry()))
	items, err := fetcher.Fetch(context.Background(), entity.Source{Name: "Flaky", URL: server.URL})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRSSFetcher_Fetch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := scraper.NewRSSFetcher(server.Client(), scraper.WithRetryConfig(fastRetry()))
	_, err := fetcher.Fetch(context.Background(), entity.Source{Name: "Gone", URL: server.URL})
	require.Error(t, err)

	var httpErr *retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRSSFetcher_Fetch_SendsUserAgent(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>T</title></channel></rss>`))
	}))
	defer server.Close()

	_, err := scraper.NewRSSFetcher(server.Client(), scraper.WithUserAgent("digest-test/2")).
		Fetch(context.Background(), entity.Source{Name: "UA", URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "digest-test/2", gotUA.Load())
}

func TestRSSFetcher_Fetch_RejectsOversizedFeed(t *testing.T) {
	server := serveFeed(t, "application/rss+xml",
		`<rss version="2.0"><channel><title>`+strings.Repeat("x", 4096)+`</title></channel></rss>`)

	_, err := scraper.NewRSSFetcher(server.Client(), scraper.WithMaxFeedBytes(1024)).
		Fetch(context.Background(), entity.Source{Name: "Huge", URL: server.URL})
	assert.ErrorIs(t, err, scraper.ErrFeedTooLarge)
}

func TestRSSFetcher_Fetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scraper.NewRSSFetcher(server.Client()).Fetch(ctx, entity.Source{Name: "Slow", URL: server.URL})
	assert.Error(t, err)
}
