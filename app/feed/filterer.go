package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops entries rejected by the feed's include/exclude rules and returns
// the survivors together with the number dropped.
func (f *Filterer) Run(entries []KeyedEntry, feedConfig *Config) ([]KeyedEntry, int) {
	if feedConfig == nil || len(feedConfig.Filters) == 0 {
		return entries, 0
	}

	kept := make([]KeyedEntry, 0, len(entries))
	for _, e := range entries {
		if isFiltered, reason := f.Match(e.Entry, feedConfig.Filters); isFiltered {
			slog.Debug("Entry filtered", "feed", feedConfig.Name, "key", e.Key, "reason", reason)
			continue
		}
		kept = append(kept, e)
	}

	return kept, len(entries) - len(kept)
}

// Match reports whether the entry is rejected by filters and why.
func (f *Filterer) Match(entry Entry, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "description", "summary":
		return entry.Summary
	case "content":
		return entry.Content
	case "authors":
		return strings.Join(entry.Authors, " ")
	case "link":
		return entry.Link
	case "categories":
		return strings.Join(entry.Categories, " ")
	default:
		return ""
	}
}
