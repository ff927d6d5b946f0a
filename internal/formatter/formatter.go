// Package formatter turns feed entries into Telegram HTML messages.
package formatter

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

const (
	DefaultUntitled  = "بدون عنوان"
	DefaultReadMore  = "اقرأ المزيد"
	DefaultBodyLimit = 700

	ellipsis = "..."
)

var (
	tagPattern = regexp.MustCompile(`<[^>]+>`)
	imgPattern = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)

	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

type Options struct {
	Untitled  string
	ReadMore  string
	BodyLimit int
}

// Formatter is safe for concurrent use; Format has no side effects.
type Formatter struct {
	untitled  string
	readMore  string
	bodyLimit int
}

func New(opts Options) Formatter {
	return Formatter{
		untitled:  lo.CoalesceOrEmpty(opts.Untitled, DefaultUntitled),
		readMore:  lo.CoalesceOrEmpty(opts.ReadMore, DefaultReadMore),
		bodyLimit: lo.Ternary(opts.BodyLimit > 0, opts.BodyLimit, DefaultBodyLimit),
	}
}

func (f Formatter) Format(entry model.FeedEntry) model.Payload {
	const msgFormat = "<b>%s</b>\n\n%s\n\n<a href=\"%s\">%s</a>"

	title := html.UnescapeString(lo.CoalesceOrEmpty(entry.Title, f.untitled))

	body := html.UnescapeString(rawBody(entry))
	body = strings.TrimSpace(tagPattern.ReplaceAllString(body, ""))
	body = truncate(body, f.bodyLimit)

	return model.Payload{
		Text:     fmt.Sprintf(msgFormat, EscapeHTML(title), EscapeHTML(body), entry.Link, f.readMore),
		ImageURL: ImageURL(entry),
	}
}

// ImageURL picks the picture to attach to an entry: a media attachment, then
// an image enclosure, then the first <img> inside the raw body.
func ImageURL(entry model.FeedEntry) string {
	if u, ok := lo.Find(entry.MediaURLs, func(u string) bool { return u != "" }); ok {
		return u
	}

	for _, enc := range entry.Enclosures {
		if enc.URL != "" && strings.HasPrefix(enc.Type, "image") {
			return enc.URL
		}
	}

	if m := imgPattern.FindStringSubmatch(rawBody(entry)); m != nil {
		return m[1]
	}

	return ""
}

// EscapeHTML escapes the characters Telegram's HTML parse mode reserves.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

func rawBody(entry model.FeedEntry) string {
	return lo.CoalesceOrEmpty(entry.Summary, entry.Description)
}

// truncate cuts s to at most limit runes. When a whitespace boundary exists
// inside the cut the text ends there so words are not split.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := runes[:limit]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}

	return string(cut) + ellipsis
}
