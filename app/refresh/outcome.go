package refresh

import (
	"errors"
	"strconv"
	"time"

	"github.com/lysyi3m/rss-pulse/app/feed"
)

var (
	ErrPersistence = errors.New("persistence error")
	errPanic       = errors.New("pipeline panic")
)

const (
	KindTimeout     = "timeout"
	KindNetwork     = "network"
	KindParse       = "parse"
	KindPersistence = "persistence"
	KindInternal    = "internal"
)

// ErrorKind maps a pipeline error onto the error taxonomy reported to callers.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, feed.ErrTimeout):
		return KindTimeout
	case errors.Is(err, feed.ErrNetwork):
		return KindNetwork
	case errors.Is(err, feed.ErrParse):
		return KindParse
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindInternal
	}
}

// Millis marshals a duration as whole milliseconds.
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Duration(m).Milliseconds(), 10), nil
}

// Outcome is the result of one feed's refresh attempt.
type Outcome struct {
	FeedID      string     `json:"feedId"`
	FeedName    string     `json:"feedName"`
	Success     bool       `json:"success"`
	NewArticles int        `json:"newArticlesCount"`
	EntriesSeen int        `json:"entriesSeen"`
	Duplicates  int        `json:"duplicates"`
	Filtered    int        `json:"filtered"`
	Invalid     int        `json:"invalidEntries"`
	NotModified bool       `json:"notModified,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	NextFetchAt *time.Time `json:"nextFetchAt,omitempty"`
	Duration    Millis     `json:"durationMs"`
}

type Summary struct {
	ExecutedAt          time.Time `json:"executedAt"`
	Duration            Millis    `json:"duration"`
	TotalFeeds          int       `json:"totalFeeds"`
	SuccessfulRefreshes int       `json:"successfulRefreshes"`
	FailedRefreshes     int       `json:"failedRefreshes"`
	NewArticles         int       `json:"newArticles"`
	Results             []Outcome `json:"results,omitempty"`
}

func Summarize(outcomes []Outcome, executedAt time.Time, duration time.Duration) Summary {
	summary := Summary{
		ExecutedAt: executedAt.UTC(),
		Duration:   Millis(duration),
		TotalFeeds: len(outcomes),
		Results:    outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			summary.SuccessfulRefreshes++
		} else {
			summary.FailedRefreshes++
		}
		summary.NewArticles += o.NewArticles
	}
	return summary
}

// Aggregate returns the summary without per-feed results.
func (s Summary) Aggregate() Summary {
	s.Results = nil
	return s
}
