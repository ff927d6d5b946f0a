// Package source fetches a feed over HTTP and turns it into model.FeedEntry values.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

const (
	userAgent    = "feedrelay/1.0"
	maxFeedBytes = 5 << 20
)

// ErrFetch is returned when the feed could not be downloaded at all.
var ErrFetch = errors.New("fetch feed")

// Result of one fetch. Malformed is set when the document could not be parsed
// cleanly; Entries then holds whatever was recovered, possibly nothing.
type Result struct {
	Entries   []model.FeedEntry
	Malformed bool
	Detail    string
}

type parseFunc func(data []byte) ([]model.FeedEntry, error)

// Source downloads a feed and hands the body to a parser.
type Source struct {
	client *http.Client
	parse  parseFunc
	name   string
}

func newSource(name string, parse parseFunc, timeout time.Duration) *Source {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	}

	return &Source{
		client: &http.Client{Timeout: timeout, Transport: transport},
		parse:  parse,
		name:   name,
	}
}

// New returns the source for the named parser: "gofeed" or "rss".
func New(parser string, timeout time.Duration) (*Source, error) {
	switch parser {
	case "gofeed", "":
		return NewGofeed(timeout), nil
	case "rss":
		return NewRSS(timeout), nil
	default:
		return nil, fmt.Errorf("unknown feed parser %q", parser)
	}
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Fetch(ctx context.Context, url string) (Result, error) {
	data, err := s.download(ctx, url)
	if err != nil {
		return Result{}, fmt.Errorf("%w %s: %w", ErrFetch, url, err)
	}

	entries, err := s.parse(data)
	if err != nil {
		return Result{Entries: entries, Malformed: true, Detail: err.Error()}, nil
	}

	return Result{Entries: entries}, nil
}

func (s *Source) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
}
