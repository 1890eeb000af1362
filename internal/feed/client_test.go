package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>AI News</title>
    <item>
      <title>First story</title>
      <link>https://example.com/first</link>
      <description>First body</description>
      <pubDate>Mon, 10 Aug 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/second</link>
      <description>Second body</description>
      <pubDate>Tue, 11 Aug 2026 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestClientFetch_ParsesEntriesInFeedOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	entries, err := client.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "First story", entries[0].Title)
	assert.Equal(t, "https://example.com/first", entries[0].URL)
	assert.Equal(t, "First body", entries[0].Content)
	assert.Equal(t, "Second story", entries[1].Title)
	assert.Equal(t, 2026, entries[0].PublishedAt.Year())
}

func TestClientFetch_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchTransient)
}

func TestClientFetch_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}

func TestClientFetch_UnparsableFeedIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchPermanent)
}

func TestClientFetch_UnreachableHostIsTransient(t *testing.T) {
	client := NewClient(time.Second)
	_, err := client.Fetch(context.Background(), "http://127.0.0.1:1/feed.xml")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchTransient)
}
