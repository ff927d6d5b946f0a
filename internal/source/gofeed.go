package source

import (
	"bytes"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/samber/lo"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

// NewGofeed parses RSS, Atom and JSON feeds with gofeed.
func NewGofeed(timeout time.Duration) *Source {
	return newSource("gofeed", parseGofeed, timeout)
}

func parseGofeed(data []byte) ([]model.FeedEntry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *gofeed.Item, _ int) model.FeedEntry {
		return model.FeedEntry{
			ID:          item.GUID,
			Link:        item.Link,
			Title:       item.Title,
			Summary:     item.Description,
			Description: item.Content,
			MediaURLs:   mediaURLs(item.Extensions),
			Enclosures: lo.Map(item.Enclosures, func(enc *gofeed.Enclosure, _ int) model.Enclosure {
				return model.Enclosure{URL: enc.URL, Type: enc.Type}
			}),
		}
	}), nil
}

// mediaURLs collects media:content urls, including those nested in media:group.
func mediaURLs(extensions ext.Extensions) []string {
	media, ok := extensions["media"]
	if !ok {
		return nil
	}

	contents := media["content"]
	for _, group := range media["group"] {
		contents = append(contents, group.Children["content"]...)
	}

	return lo.FilterMap(contents, func(c ext.Extension, _ int) (string, bool) {
		url := c.Attrs["url"]
		return url, url != ""
	})
}
