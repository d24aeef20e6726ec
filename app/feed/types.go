package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

// Entry is a single item as read from a source, before it gets a natural key.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	PublishedAt *time.Time
	Authors     []string // "email (name)" or "name"
	Categories  []string
}

// KeyedEntry pairs an entry with its natural key.
type KeyedEntry struct {
	Key   string
	Entry Entry
}

// Configuration types

type Config struct {
	Name     string         // Derived from the file name without extension
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         *bool `yaml:"enabled"`
	RefreshInterval int   `yaml:"refresh_interval"` // seconds, 0 uses the global default
	MaxItems        int   `yaml:"max_items"`
	Timeout         int   `yaml:"timeout"`         // seconds, 0 uses the fetcher default
	ExtractContent  bool  `yaml:"extract_content"` // enable content extraction
	Translate       bool  `yaml:"translate"`
}

// IsEnabled reports whether the feed should be refreshed. Missing means enabled.
func (s ConfigSettings) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
