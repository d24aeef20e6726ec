package feed

import (
	"testing"
)

func keyedTitles(titles ...string) []KeyedEntry {
	entries := make([]KeyedEntry, 0, len(titles))
	for _, title := range titles {
		entries = append(entries, KeyedEntry{Key: "k:" + title, Entry: Entry{Title: title}})
	}
	return entries
}

func titlesOf(entries []KeyedEntry) []string {
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Entry.Title)
	}
	return titles
}

func TestFilterer_Run_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	entries := keyedTitles("Test Item 1", "Test Item 2")

	kept, filtered := filterer.Run(entries, &Config{})
	if len(kept) != 2 || filtered != 0 {
		t.Errorf("Expected 2 kept and 0 filtered, got %d and %d", len(kept), filtered)
	}

	kept, filtered = filterer.Run(entries, nil)
	if len(kept) != 2 || filtered != 0 {
		t.Errorf("Expected nil config to keep everything, got %d and %d", len(kept), filtered)
	}
}

func TestFilterer_Run_TitleIncludeFilter(t *testing.T) {
	filterer := NewFilterer()

	entries := keyedTitles("Breaking News: Important Update", "Sports Update", "Weather Report")

	feedConfig := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Includes: []string{"news", "update"}},
		},
	}

	kept, filtered := filterer.Run(entries, feedConfig)

	if filtered != 1 {
		t.Errorf("Expected 1 filtered entry, got %d", filtered)
	}
	got := titlesOf(kept)
	if len(got) != 2 || got[0] != "Breaking News: Important Update" || got[1] != "Sports Update" {
		t.Errorf("Unexpected kept entries: %v", got)
	}
}

func TestFilterer_Run_TitleExcludeFilter(t *testing.T) {
	filterer := NewFilterer()

	entries := keyedTitles("Breaking News", "Sports Update", "Advertisement: Buy Now!")

	feedConfig := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Excludes: []string{"advertisement"}},
		},
	}

	kept, filtered := filterer.Run(entries, feedConfig)

	if filtered != 1 {
		t.Errorf("Expected 1 filtered entry, got %d", filtered)
	}
	for _, title := range titlesOf(kept) {
		if title == "Advertisement: Buy Now!" {
			t.Errorf("Advertisement should have been filtered")
		}
	}
}

func TestFilterer_Run_CombinedIncludeExclude(t *testing.T) {
	filterer := NewFilterer()

	entries := keyedTitles("Tech News: New Release", "Tech News: Sponsored Post", "Cooking Tips")

	feedConfig := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Includes: []string{"tech"}, Excludes: []string{"sponsored"}},
		},
	}

	kept, filtered := filterer.Run(entries, feedConfig)

	if filtered != 2 {
		t.Errorf("Expected 2 filtered entries, got %d", filtered)
	}
	got := titlesOf(kept)
	if len(got) != 1 || got[0] != "Tech News: New Release" {
		t.Errorf("Unexpected kept entries: %v", got)
	}
}

func TestFilterer_Match_Fields(t *testing.T) {
	filterer := NewFilterer()

	tests := []struct {
		name     string
		entry    Entry
		filter   ConfigFilter
		filtered bool
	}{
		{
			name:     "authors include",
			entry:    Entry{Authors: []string{"john@example.com (John Doe)"}},
			filter:   ConfigFilter{Field: "authors", Includes: []string{"john"}},
			filtered: false,
		},
		{
			name:     "authors miss",
			entry:    Entry{Authors: []string{"spammer@example.com (Spammer)"}},
			filter:   ConfigFilter{Field: "authors", Includes: []string{"john"}},
			filtered: true,
		},
		{
			name:     "categories include",
			entry:    Entry{Categories: []string{"Technology", "News"}},
			filter:   ConfigFilter{Field: "categories", Includes: []string{"technology"}},
			filtered: false,
		},
		{
			name:     "summary exclude",
			entry:    Entry{Summary: "This post is sponsored"},
			filter:   ConfigFilter{Field: "description", Excludes: []string{"SPONSORED"}},
			filtered: true,
		},
		{
			name:     "link exclude",
			entry:    Entry{Link: "https://example.com/ads/1"},
			filter:   ConfigFilter{Field: "link", Excludes: []string{"/ads/"}},
			filtered: true,
		},
		{
			name:     "unknown field include never matches",
			entry:    Entry{Title: "anything"},
			filter:   ConfigFilter{Field: "unknown", Includes: []string{"anything"}},
			filtered: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, reason := filterer.Match(tt.entry, []ConfigFilter{tt.filter})
			if filtered != tt.filtered {
				t.Errorf("Expected filtered=%v, got %v (%s)", tt.filtered, filtered, reason)
			}
			if filtered && reason == "" {
				t.Errorf("Expected a filter reason")
			}
		})
	}
}

func TestFilterer_Run_PreservesKeysAndOrder(t *testing.T) {
	filterer := NewFilterer()

	entries := keyedTitles("keep a", "drop b", "keep c")

	feedConfig := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Excludes: []string{"drop"}},
		},
	}

	kept, _ := filterer.Run(entries, feedConfig)

	if len(kept) != 2 {
		t.Fatalf("Expected 2 kept entries, got %d", len(kept))
	}
	if kept[0].Key != "k:keep a" || kept[1].Key != "k:keep c" {
		t.Errorf("Expected keys preserved in order, got %q and %q", kept[0].Key, kept[1].Key)
	}
}
