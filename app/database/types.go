package database

import (
	"time"
)

type FeedStatus string

const (
	FeedStatusActive FeedStatus = "ACTIVE"
	FeedStatusPaused FeedStatus = "PAUSED"
	FeedStatusError  FeedStatus = "ERROR"
)

func (s FeedStatus) Valid() bool {
	switch s {
	case FeedStatusActive, FeedStatusPaused, FeedStatusError:
		return true
	}
	return false
}

type Feed struct {
	ID                     string // UUID
	Name                   string // Unique slug; matches the YAML config file name when configured from disk
	URL                    string
	Title                  string
	Link                   string
	Description            string
	ImageURL               string
	Language               string
	Status                 FeedStatus
	TranslationEnabled     bool
	RefreshIntervalSeconds int // 0 means the default cadence
	FetchTimeoutSeconds    int // 0 means the default fetch timeout
	ETag                   string
	LastModified           string
	LastError              string
	ConsecutiveFailures    int
	LastRefreshedAt        *time.Time
	NextFetchAt            *time.Time // nil until the first refresh attempt
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsDue reports whether the feed is eligible for a scheduled refresh at now.
func (f *Feed) IsDue(now time.Time) bool {
	if f.Status != FeedStatusActive {
		return false
	}
	return f.NextFetchAt == nil || !f.NextFetchAt.After(now)
}

func (f *Feed) RefreshInterval() time.Duration {
	return time.Duration(f.RefreshIntervalSeconds) * time.Second
}

func (f *Feed) FetchTimeout() time.Duration {
	return time.Duration(f.FetchTimeoutSeconds) * time.Second
}

type Article struct {
	ID          string
	FeedID      string
	NaturalKey  string
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	Authors     []string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// NewArticle is an article ready for insertion; the key must already be derived.
type NewArticle struct {
	NaturalKey  string
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	Authors     []string
	PublishedAt *time.Time
}

// FeedSync carries the externally managed part of a feed definition.
type FeedSync struct {
	Name                   string
	URL                    string
	Title                  string
	RefreshIntervalSeconds int
	FetchTimeoutSeconds    int
	TranslationEnabled     bool
	Paused                 bool
}

// FeedMetadata is refreshed from the source after a successful fetch. Empty
// strings leave the stored value untouched, except for the HTTP validators.
type FeedMetadata struct {
	Title        string
	Link         string
	Description  string
	ImageURL     string
	Language     string
	ETag         string
	LastModified string
}

type ScheduleUpdate struct {
	LastRefreshedAt     time.Time
	NextFetchAt         time.Time
	Status              FeedStatus
	LastError           string
	ConsecutiveFailures int
}
