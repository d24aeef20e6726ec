package feed

import (
	"errors"
	"testing"
	"time"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Technology</category>
      <category>Programming</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got: %s", metadata.Link)
	}
	if metadata.Description != "Test Description" {
		t.Errorf("Expected description 'Test Description', got: %s", metadata.Description)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}
	if metadata.ImageURL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %s", metadata.ImageURL)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %s", entry.Title)
	}
	if entry.Link != "https://example.com/item1" {
		t.Errorf("Expected link 'https://example.com/item1', got: %s", entry.Link)
	}
	if entry.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", entry.GUID)
	}
	if entry.Summary != "Test Item 1 Description" {
		t.Errorf("Expected summary 'Test Item 1 Description', got: %s", entry.Summary)
	}
	if len(entry.Categories) != 2 {
		t.Errorf("Expected 2 categories, got: %d", len(entry.Categories))
	}

	want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if entry.PublishedAt == nil || !entry.PublishedAt.Equal(want) {
		t.Errorf("Expected published at %v, got: %v", want, entry.PublishedAt)
	}
}

func TestParseAtom_UpdatedUsedWhenNotPublished(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <author>
    <name>Test Author</name>
  </author>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">Test content</content>
  </entry>
</feed>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(atomData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", metadata.Title)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Test Entry" {
		t.Errorf("Expected title 'Test Entry', got: %s", entry.Title)
	}
	if entry.Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", entry.Link)
	}
	if entry.Content != "Test content" {
		t.Errorf("Expected content 'Test content', got: %s", entry.Content)
	}

	want := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	if entry.PublishedAt == nil || !entry.PublishedAt.Equal(want) {
		t.Errorf("Expected published at %v, got: %v", want, entry.PublishedAt)
	}
}

func TestParseEntryWithoutDate(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Undated</title>
    <item>
      <title>No date here</title>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}
	if entries[0].PublishedAt != nil {
		t.Errorf("Expected nil published at, got: %v", entries[0].PublishedAt)
	}
	if entries[0].Link != "" {
		t.Errorf("Expected empty link, got: %s", entries[0].Link)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, _, err := parser.Run([]byte("invalid xml"))

	if err == nil {
		t.Fatal("Expected error for invalid XML")
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("Expected ErrParse, got: %v", err)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	parser := NewParser()
	_, _, err := parser.Run([]byte("   \n"))

	if !errors.Is(err, ErrParse) {
		t.Errorf("Expected ErrParse for empty document, got: %v", err)
	}
}

func TestParser_formatAuthor(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name, email, want string
	}{
		{"Jane", "jane@example.com", "jane@example.com (Jane)"},
		{"Jane", "", "Jane"},
		{"", "jane@example.com", "jane@example.com"},
		{"  ", "", ""},
	}

	for _, tt := range tests {
		if got := parser.formatAuthor(tt.name, tt.email); got != tt.want {
			t.Errorf("formatAuthor(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}
