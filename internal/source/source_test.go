package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
	<title>Sample RSS Feed</title>
	<link>http://example.com/rss</link>
	<description>This is a sample RSS feed.</description>
	<item>
		<title>RSS Entry 2</title>
		<link>http://example.com/rss/entry2</link>
		<pubDate>Tue, 02 Jan 2023 11:00:00 +0000</pubDate>
		<guid>entry-2</guid>
		<description>Description for RSS Entry 2</description>
		<media:content url="http://example.com/img/2.jpg" medium="image" />
	</item>
	<item>
		<title>RSS Entry 1</title>
		<link>http://example.com/rss/entry1</link>
		<pubDate>Mon, 01 Jan 2023 10:00:00 +0000</pubDate>
		<guid>entry-1</guid>
		<description>Description for RSS Entry 1</description>
		<enclosure url="http://example.com/img/1.png" type="image/png" length="100" />
	</item>
</channel>
</rss>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestGofeedFetch(t *testing.T) {
	srv := serve(t, http.StatusOK, sampleRSS)

	res, err := NewGofeed(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.False(t, res.Malformed)
	require.Len(t, res.Entries, 2)

	newest := res.Entries[0]
	assert.Equal(t, "entry-2", newest.ID)
	assert.Equal(t, "http://example.com/rss/entry2", newest.Link)
	assert.Equal(t, "RSS Entry 2", newest.Title)
	assert.Equal(t, "Description for RSS Entry 2", newest.Summary)
	assert.Equal(t, []string{"http://example.com/img/2.jpg"}, newest.MediaURLs)

	oldest := res.Entries[1]
	assert.Equal(t, "entry-1", oldest.ID)
	require.Len(t, oldest.Enclosures, 1)
	assert.Equal(t, "http://example.com/img/1.png", oldest.Enclosures[0].URL)
	assert.Equal(t, "image/png", oldest.Enclosures[0].Type)
}

func TestRSSFetch(t *testing.T) {
	srv := serve(t, http.StatusOK, sampleRSS)

	res, err := NewRSS(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.False(t, res.Malformed)
	require.Len(t, res.Entries, 2)

	assert.Equal(t, "RSS Entry 2", res.Entries[0].Title)
	assert.Equal(t, "http://example.com/rss/entry1", res.Entries[1].Link)
}

func TestFetchMalformed(t *testing.T) {
	srv := serve(t, http.StatusOK, "this is not a feed")

	res, err := NewGofeed(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Malformed)
	assert.NotEmpty(t, res.Detail)
	assert.Empty(t, res.Entries)
}

func TestFetchBadStatus(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "")

	_, err := NewGofeed(5*time.Second).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchCanceled(t *testing.T) {
	srv := serve(t, http.StatusOK, sampleRSS)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGofeed(5*time.Second).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"gofeed", "rss"} {
		src, err := New(name, time.Second)
		require.NoError(t, err)
		assert.Equal(t, name, src.Name())
	}

	_, err := New("atom", time.Second)
	assert.Error(t, err)
}
