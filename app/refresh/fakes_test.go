package refresh

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/rss-pulse/app/database"
	"github.com/lysyi3m/rss-pulse/app/feed"
)

// memStore is an in-memory FeedStore and ArticleStore.
type memStore struct {
	mu       sync.Mutex
	feeds    map[string]*database.Feed
	articles map[string][]database.NewArticle // by feed id, insertion order
	keys     map[string]map[string]struct{}

	dueErr      error
	insertErr   error
	scheduleErr map[string]error
}

func newMemStore(feeds ...database.Feed) *memStore {
	s := &memStore{
		feeds:       make(map[string]*database.Feed),
		articles:    make(map[string][]database.NewArticle),
		keys:        make(map[string]map[string]struct{}),
		scheduleErr: make(map[string]error),
	}
	for i := range feeds {
		f := feeds[i]
		if f.Status == "" {
			f.Status = database.FeedStatusActive
		}
		s.feeds[f.ID] = &f
	}
	return s
}

func (s *memStore) feed(id string) database.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.feeds[id]
}

func (s *memStore) stored(feedID string) []database.NewArticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.articles[feedID])
}

func (s *memStore) seed(feedID string, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if s.keys[feedID] == nil {
			s.keys[feedID] = make(map[string]struct{})
		}
		s.keys[feedID][k] = struct{}{}
		s.articles[feedID] = append(s.articles[feedID], database.NewArticle{NaturalKey: k})
	}
}

func (s *memStore) FindFeedsDueForRefresh(_ context.Context, now time.Time) ([]database.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	var due []database.Feed
	for _, f := range s.feeds {
		if f.IsDue(now) {
			due = append(due, *f)
		}
	}
	slices.SortFunc(due, func(a, b database.Feed) int { return strings.Compare(a.Name, b.Name) })
	return due, nil
}

func (s *memStore) UpdateFeedSchedule(_ context.Context, id string, update database.ScheduleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scheduleErr[id]; err != nil {
		return err
	}
	f, ok := s.feeds[id]
	if !ok {
		return errors.New("feed not found")
	}
	last := update.LastRefreshedAt
	next := update.NextFetchAt
	f.LastRefreshedAt = &last
	f.NextFetchAt = &next
	f.Status = update.Status
	f.LastError = update.LastError
	f.ConsecutiveFailures = update.ConsecutiveFailures
	return nil
}

func (s *memStore) UpdateFeedMetadata(_ context.Context, id string, metadata database.FeedMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[id]
	if !ok {
		return errors.New("feed not found")
	}
	if metadata.Title != "" {
		f.Title = metadata.Title
	}
	f.ETag = metadata.ETag
	f.LastModified = metadata.LastModified
	return nil
}

func (s *memStore) FindExistingArticleKeys(_ context.Context, feedID string, keys []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]struct{})
	for _, k := range keys {
		if _, ok := s.keys[feedID][k]; ok {
			found[k] = struct{}{}
		}
	}
	return found, nil
}

func (s *memStore) InsertArticles(_ context.Context, feedID string, articles []database.NewArticle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	if s.keys[feedID] == nil {
		s.keys[feedID] = make(map[string]struct{})
	}
	inserted := 0
	for _, a := range articles {
		if _, ok := s.keys[feedID][a.NaturalKey]; ok {
			continue
		}
		s.keys[feedID][a.NaturalKey] = struct{}{}
		s.articles[feedID] = append(s.articles[feedID], a)
		inserted++
	}
	return inserted, nil
}

// stubFetcher answers by URL.
type stubFetcher struct {
	mu       sync.Mutex
	handlers map[string]func(feed.Request) (*feed.Result, error)
	requests []feed.Request
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{handlers: make(map[string]func(feed.Request) (*feed.Result, error))}
}

func (s *stubFetcher) on(url string, fn func(feed.Request) (*feed.Result, error)) {
	s.handlers[url] = fn
}

func (s *stubFetcher) Fetch(_ context.Context, req feed.Request) (*feed.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn, ok := s.handlers[req.URL]
	s.mu.Unlock()
	if !ok {
		return nil, &feed.FetchError{Kind: feed.ErrNetwork, URL: req.URL, StatusCode: 404}
	}
	return fn(req)
}

func (s *stubFetcher) lastRequest(url string) (feed.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].URL == url {
			return s.requests[i], true
		}
	}
	return feed.Request{}, false
}

func entriesResult(entries ...feed.Entry) func(feed.Request) (*feed.Result, error) {
	return func(feed.Request) (*feed.Result, error) {
		return &feed.Result{Metadata: &feed.Metadata{Title: "Source"}, Entries: entries}, nil
	}
}

type stubSettings map[string]*feed.Config

func (s stubSettings) Lookup(name string) (*feed.Config, bool) {
	c, ok := s[name]
	return c, ok
}

type stubExtractor struct {
	mu    sync.Mutex
	calls []string
	body  string
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, pageURL string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pageURL)
	return s.body, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fetchFunc adapts a function that needs the request context to Fetcher.
type fetchFunc func(ctx context.Context, req feed.Request) (*feed.Result, error)

func (f fetchFunc) Fetch(ctx context.Context, req feed.Request) (*feed.Result, error) {
	return f(ctx, req)
}

// hangingExtractor blocks until its context ends.
type hangingExtractor struct {
	calls atomic.Int32
}

func (h *hangingExtractor) Extract(ctx context.Context, _ string, _ time.Duration) (string, error) {
	h.calls.Add(1)
	<-ctx.Done()
	return "", ctx.Err()
}
