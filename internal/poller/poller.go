// Package poller runs the fetch, dedupe, deliver and record cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/0x0BSoD/feedrelay/internal/metrics"
	"github.com/0x0BSoD/feedrelay/internal/model"
	"github.com/0x0BSoD/feedrelay/internal/source"
)

type Source interface {
	Fetch(ctx context.Context, url string) (source.Result, error)
}

type Ledger interface {
	Has(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string, at time.Time) error
}

type Formatter interface {
	Format(entry model.FeedEntry) model.Payload
}

type Dispatcher interface {
	Send(payload model.Payload) bool
}

type Summarizer interface {
	Summarize(ctx context.Context, entry model.FeedEntry) (string, error)
}

type Reporter interface {
	Notify(msg string)
}

type Params struct {
	Source     Source
	Ledger     Ledger
	Formatter  Formatter
	Dispatcher Dispatcher
	// Summarizer and Reporter are optional.
	Summarizer Summarizer
	Reporter   Reporter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	FeedURL      string
	PollInterval time.Duration
	PostDelay    time.Duration
}

type Poller struct {
	source     Source
	ledger     Ledger
	formatter  Formatter
	dispatcher Dispatcher
	summarizer Summarizer
	reporter   Reporter
	metrics    *metrics.Metrics
	logger     *slog.Logger

	feedURL      string
	pollInterval time.Duration
	postDelay    time.Duration

	now func() time.Time
}

func New(p Params) *Poller {
	m := p.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Poller{
		source:       p.Source,
		ledger:       p.Ledger,
		formatter:    p.Formatter,
		dispatcher:   p.Dispatcher,
		summarizer:   p.Summarizer,
		reporter:     p.Reporter,
		metrics:      m,
		logger:       p.Logger,
		feedURL:      p.FeedURL,
		pollInterval: p.PollInterval,
		postDelay:    p.PostDelay,
		now:          time.Now,
	}
}

// Start polls until ctx is canceled. A failing cycle is logged and the loop
// carries on after the next interval.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("starting main loop", "feed", p.feedURL, "poll_interval", p.pollInterval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.runCycle(ctx)

		if err := sleep(ctx, p.pollInterval); err != nil {
			return err
		}
	}
}

func (p *Poller) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.CycleErrors.Inc()
			p.logger.Error("panic in poll cycle", "panic", r, "stack", string(debug.Stack()))
			p.report(fmt.Sprintf("panic in poll cycle: %v", r))
		}
	}()

	err := p.Poll(ctx)
	p.metrics.Cycles.Inc()

	if err != nil && !errors.Is(err, context.Canceled) {
		p.metrics.CycleErrors.Inc()
		p.logger.Error("error in main loop", "err", err)
		p.report(err.Error())
	}
}

// Poll runs a single cycle: new entries are posted oldest first and recorded
// once delivered.
func (p *Poller) Poll(ctx context.Context) error {
	p.logger.Info("fetching rss feed", "url", p.feedURL)

	res, err := p.source.Fetch(ctx, p.feedURL)
	if err != nil {
		return err
	}

	p.metrics.EntriesFetched.Add(float64(len(res.Entries)))
	if res.Malformed {
		p.metrics.MalformedFeeds.Inc()
		p.logger.Warn("feed parser reported a malformed feed", "detail", res.Detail, "entries", len(res.Entries))
	}

	// feeds list newest first
	entries := slices.Clone(res.Entries)
	slices.Reverse(entries)

	for _, entry := range entries {
		id := entry.Key()
		if id == "" {
			p.logger.Debug("skipping entry without id, link or title")
			continue
		}

		seen, err := p.ledger.Has(ctx, id)
		if err != nil {
			return fmt.Errorf("check ledger for %q: %w", id, err)
		}
		if seen {
			continue
		}

		p.deliver(ctx, id, entry)

		if err := sleep(ctx, p.postDelay); err != nil {
			return err
		}
	}

	return nil
}

func (p *Poller) deliver(ctx context.Context, id string, entry model.FeedEntry) {
	p.logger.Info("posting news", "title", entry.Title)

	payload := p.formatter.Format(entry)
	if summary := p.summarize(ctx, entry); summary != "" {
		summarized := entry
		summarized.Summary, summarized.Description = summary, ""
		payload.Text = p.formatter.Format(summarized).Text
	}

	if !p.dispatcher.Send(payload) {
		p.metrics.Posts.WithLabelValues("failed").Inc()
		p.logger.Warn("failed to post", "id", id)
		return
	}
	p.metrics.Posts.WithLabelValues("sent").Inc()

	// the message is out; record it even if shutdown has begun
	if err := p.ledger.Record(context.WithoutCancel(ctx), id, p.now().UTC()); err != nil {
		p.metrics.LedgerErrors.Inc()
		p.logger.Error("posted but failed to mark as seen", "id", id, "err", err)
		return
	}

	p.logger.Info("posted and marked", "id", id)
}

func (p *Poller) summarize(ctx context.Context, entry model.FeedEntry) string {
	if p.summarizer == nil {
		return ""
	}

	summary, err := p.summarizer.Summarize(ctx, entry)
	if err != nil {
		p.logger.Warn("failed to summarize entry, using feed text", "title", entry.Title, "err", err)
		return ""
	}

	return summary
}

func (p *Poller) report(msg string) {
	if p.reporter != nil {
		p.reporter.Notify(msg)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
