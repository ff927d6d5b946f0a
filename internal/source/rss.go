package source

import (
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

// NewRSS parses feeds with SlyMarbo/rss. It is stricter than gofeed and has
// no media extension support, so only enclosures and inline images are seen.
func NewRSS(timeout time.Duration) *Source {
	return newSource("rss", parseRSS, timeout)
}

func parseRSS(data []byte) ([]model.FeedEntry, error) {
	feed, err := rss.Parse(data)
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *rss.Item, _ int) model.FeedEntry {
		return model.FeedEntry{
			ID:          item.ID,
			Link:        item.Link,
			Title:       item.Title,
			Summary:     item.Summary,
			Description: item.Content,
			Enclosures: lo.Map(item.Enclosures, func(enc *rss.Enclosure, _ int) model.Enclosure {
				return model.Enclosure{URL: enc.URL, Type: enc.Type}
			}),
		}
	}), nil
}
