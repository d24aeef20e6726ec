package feed

import (
	"context"
	"fmt"
)

// KeyLookup reports which natural keys already exist for a feed.
type KeyLookup interface {
	FindExistingArticleKeys(ctx context.Context, feedID string, keys []string) (map[string]struct{}, error)
}

// FilterNew drops entries whose key is in known and collapses repeated keys
// within the batch, keeping the first occurrence. Order is preserved.
func FilterNew(entries []KeyedEntry, known map[string]struct{}) []KeyedEntry {
	seen := make(map[string]struct{}, len(entries))
	fresh := make([]KeyedEntry, 0, len(entries))
	for _, e := range entries {
		if _, ok := known[e.Key]; ok {
			continue
		}
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		fresh = append(fresh, e)
	}
	return fresh
}

type DedupResult struct {
	New        []KeyedEntry
	Duplicates int
	Invalid    int
}

type Deduplicator struct {
	lookup KeyLookup
}

func NewDeduplicator(lookup KeyLookup) *Deduplicator {
	return &Deduplicator{lookup: lookup}
}

// Run returns the entries of a fetch that are not yet stored for feedID.
func (d *Deduplicator) Run(ctx context.Context, feedID string, entries []Entry) (*DedupResult, error) {
	keyed, invalid := DeriveKeys(entries)
	if len(keyed) == 0 {
		return &DedupResult{Invalid: invalid}, nil
	}

	keys := make([]string, len(keyed))
	for i, e := range keyed {
		keys[i] = e.Key
	}

	known, err := d.lookup.FindExistingArticleKeys(ctx, feedID, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing keys: %w", err)
	}

	fresh := FilterNew(keyed, known)
	return &DedupResult{
		New:        fresh,
		Duplicates: len(keyed) - len(fresh),
		Invalid:    invalid,
	}, nil
}
