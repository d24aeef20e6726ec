package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const hashKeyPrefix = "sha256:"

// NaturalKey derives the per-feed identity of an entry. The trimmed link wins
// when present; otherwise the key is a digest of the normalized title and the
// UTC publish time. Entries with none of the three return ErrMissingKey.
func NaturalKey(e Entry) (string, error) {
	if link := strings.TrimSpace(e.Link); link != "" {
		return link, nil
	}

	title := norm.NFC.String(strings.Join(strings.Fields(e.Title), " "))

	var published string
	if e.PublishedAt != nil {
		published = e.PublishedAt.UTC().Format(time.RFC3339)
	}

	if title == "" && published == "" {
		return "", ErrMissingKey
	}

	sum := sha256.Sum256([]byte(title + "|" + published))
	return hashKeyPrefix + hex.EncodeToString(sum[:]), nil
}

// DeriveKeys attaches natural keys to entries in order. Entries without a key
// are counted in invalid and left out.
func DeriveKeys(entries []Entry) (keyed []KeyedEntry, invalid int) {
	keyed = make([]KeyedEntry, 0, len(entries))
	for _, e := range entries {
		key, err := NaturalKey(e)
		if err != nil {
			invalid++
			continue
		}
		keyed = append(keyed, KeyedEntry{Key: key, Entry: e})
	}
	return keyed, invalid
}
