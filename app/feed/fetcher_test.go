package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sample</title>
    <link>https://example.com</link>
    <item>
      <title>One</title>
      <link>https://example.com/1</link>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Two</title>
      <link>https://example.com/2</link>
    </item>
  </channel>
</rss>`

func TestFetcher_Fetch_Success(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 03 Jul 2023 12:00:00 GMT")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, "pulse-test")
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)

	assert.False(t, res.NotModified)
	assert.Equal(t, "Sample", res.Metadata.Title)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "https://example.com/1", res.Entries[0].Link)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 03 Jul 2023 12:00:00 GMT", res.LastModified)
	assert.Equal(t, "pulse-test", gotUA)
}

func TestFetcher_Fetch_ConditionalNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, "")

	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, ETag: `"v1"`})
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Empty(t, res.Entries)
	assert.Equal(t, `"v1"`, res.ETag)

	res, err = f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, res.NotModified)
	assert.Len(t, res.Entries, 2)
}

func TestFetcher_Fetch_HTTPErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, "")
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestFetcher_Fetch_MalformedIsParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, "")
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.False(t, errors.Is(err, ErrNetwork))
}

func TestFetcher_Fetch_UnreachableIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewFetcher(nil, nil, "")
	_, err := f.Fetch(context.Background(), Request{URL: url, Timeout: 2 * time.Second})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestFetcher_Fetch_HungSourceTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	f := NewFetcher(srv.Client(), nil, "")

	start := time.Now()
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Timeout: 200 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, elapsed, time.Second)
}

// blockingTransport never returns and ignores request cancellation.
type blockingTransport struct {
	release chan struct{}
}

func (b blockingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	<-b.release
	return nil, errors.New("released")
}

func TestFetcher_Fetch_TimeoutHoldsWhenTransportIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	f := NewFetcher(&http.Client{Transport: blockingTransport{release: release}}, nil, "")

	start := time.Now()
	_, err := f.Fetch(context.Background(), Request{URL: "http://feeds.invalid/rss", Timeout: 150 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, elapsed, time.Second)
}

func TestFetcher_Fetch_ParentCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	f := NewFetcher(&http.Client{Transport: blockingTransport{release: release}}, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, Request{URL: "http://feeds.invalid/rss", Timeout: time.Minute})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, context.Canceled))
}
