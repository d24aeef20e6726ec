package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "RSS Pulse/1.0"

	maxBodySize = 20 << 20
)

type Request struct {
	URL          string
	Timeout      time.Duration
	ETag         string
	LastModified string
}

type Result struct {
	Metadata     *Metadata
	Entries      []Entry
	NotModified  bool
	ETag         string
	LastModified string
}

type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if parser == nil {
		parser = NewParser()
	}
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  cmp.Or(userAgent, DefaultUserAgent),
	}
}

// Fetch downloads and parses a feed document. The whole attempt, body read and
// parse included, is bounded by req.Timeout; a stalled source yields ErrTimeout
// even if the underlying transport ignores cancellation.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		result *Result
		err    error
	}
	done := make(chan reply, 1)

	go func() {
		result, err := f.fetch(fetchCtx, req)
		done <- reply{result: result, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return nil, &FetchError{Kind: ErrTimeout, URL: req.URL, Err: fmt.Errorf("no response within %s", timeout)}
		}
		return r.result, r.err
	case <-fetchCtx.Done():
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			slog.Debug("Fetch abandoned after timeout", "url", req.URL, "timeout", timeout)
			return nil, &FetchError{Kind: ErrTimeout, URL: req.URL, Err: fmt.Errorf("no response within %s", timeout)}
		}
		return nil, &FetchError{Kind: ErrNetwork, URL: req.URL, Err: fetchCtx.Err()}
	}
}

func (f *Fetcher) fetch(ctx context.Context, req Request) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, URL: req.URL, Err: err}
	}

	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		httpReq.Header.Set("If-Modified-Since", req.LastModified)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{
			NotModified:  true,
			ETag:         cmp.Or(resp.Header.Get("ETag"), req.ETag),
			LastModified: cmp.Or(resp.Header.Get("Last-Modified"), req.LastModified),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: ErrNetwork, URL: req.URL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Kind: ErrNetwork, URL: req.URL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	metadata, entries, err := f.parser.Run(data)
	if err != nil {
		return nil, &FetchError{Kind: ErrParse, URL: req.URL, Err: err}
	}

	return &Result{
		Metadata:     metadata,
		Entries:      entries,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
