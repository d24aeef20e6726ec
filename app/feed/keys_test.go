package feed

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalKey_PrefersLink(t *testing.T) {
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	key, err := NaturalKey(Entry{Link: "  https://example.com/a  ", Title: "A", PublishedAt: &published})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", key)
}

func TestNaturalKey_HashesTitleAndDate(t *testing.T) {
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	key, err := NaturalKey(Entry{Title: "Hello", PublishedAt: &published})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sha256:"))
	assert.Len(t, key, len("sha256:")+64)

	again, err := NaturalKey(Entry{Title: "Hello", PublishedAt: &published})
	require.NoError(t, err)
	assert.Equal(t, key, again)

	later := published.Add(time.Hour)
	other, err := NaturalKey(Entry{Title: "Hello", PublishedAt: &later})
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestNaturalKey_StableAcrossZonesAndWhitespace(t *testing.T) {
	utc := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	berlin := utc.In(time.FixedZone("CEST", 2*60*60))

	a, err := NaturalKey(Entry{Title: "Hello  world", PublishedAt: &utc})
	require.NoError(t, err)
	b, err := NaturalKey(Entry{Title: " Hello world\n", PublishedAt: &berlin})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNaturalKey_UnicodeNormalization(t *testing.T) {
	composed := "Café"
	decomposed := "Café"

	a, err := NaturalKey(Entry{Title: composed})
	require.NoError(t, err)
	b, err := NaturalKey(Entry{Title: decomposed})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNaturalKey_DateOnly(t *testing.T) {
	published := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	key, err := NaturalKey(Entry{PublishedAt: &published})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sha256:"))
}

func TestNaturalKey_MissingEverything(t *testing.T) {
	_, err := NaturalKey(Entry{Title: "   ", Summary: "only a summary"})
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.True(t, errors.Is(err, ErrParse))
}

func TestDeriveKeys_CountsInvalid(t *testing.T) {
	entries := []Entry{
		{Link: "https://example.com/1"},
		{Summary: "no identity"},
		{Title: "titled"},
	}

	keyed, invalid := DeriveKeys(entries)

	assert.Equal(t, 1, invalid)
	require.Len(t, keyed, 2)
	assert.Equal(t, "https://example.com/1", keyed[0].Key)
	assert.Equal(t, "titled", keyed[1].Entry.Title)
}
