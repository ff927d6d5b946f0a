// Package model defines the data structures shared by feedrelay: FeedEntry as
// returned by a feed source, SeenItem as kept by the ledger, and Payload as
// handed to the notifier.
package model

import "time"

// Enclosure is an attached file announced by a feed entry.
type Enclosure struct {
	URL  string
	Type string
}

// FeedEntry is one item of a fetched feed. It lives for a single poll cycle.
type FeedEntry struct {
	ID          string
	Link        string
	Title       string
	Summary     string
	Description string
	MediaURLs   []string
	Enclosures  []Enclosure
}

// Key returns the identifier the ledger tracks the entry by: the native id,
// then the link, then the title. An empty key means the entry cannot be
// tracked and must be skipped.
func (e FeedEntry) Key() string {
	switch {
	case e.ID != "":
		return e.ID
	case e.Link != "":
		return e.Link
	default:
		return e.Title
	}
}

// SeenItem is a row of the ledger.
type SeenItem struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

// Payload is a formatted message ready for the channel.
type Payload struct {
	Text     string
	ImageURL string
}
