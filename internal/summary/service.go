// Package summary produces short AI summaries of feed entries.
package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/samber/lo"

	"github.com/0x0BSoD/feedrelay/internal/model"
)

// ErrNoText is returned when neither the entry nor its article page yield text.
var ErrNoText = errors.New("no text to summarize")

var redundantNewLines = regexp.MustCompile(`\n{3,}`)

type Model interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Service extracts readable text from an entry and summarizes it. When the
// entry has no body the linked article is downloaded instead.
type Service struct {
	model  Model
	client *http.Client
}

func NewService(m Model) *Service {
	return &Service{
		model:  m,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// New builds the service for aiType ("ollama" or "openai"). An empty aiType
// disables summaries and returns nil.
func New(aiType, baseURL, apiKey, prompt, modelName string, timeout time.Duration) (*Service, error) {
	switch aiType {
	case "":
		return nil, nil
	case "ollama":
		return NewService(NewOllamaSummarizer(baseURL, prompt, modelName, timeout)), nil
	case "openai":
		return NewService(NewOpenAISummarizer(baseURL, apiKey, prompt, modelName, timeout)), nil
	default:
		return nil, fmt.Errorf("unknown ai type %q", aiType)
	}
}

func (s *Service) Summarize(ctx context.Context, entry model.FeedEntry) (string, error) {
	text, err := s.extractText(ctx, entry)
	if err != nil {
		return "", err
	}

	return s.model.Summarize(ctx, text)
}

func (s *Service) extractText(ctx context.Context, entry model.FeedEntry) (string, error) {
	var r io.Reader

	if body := lo.CoalesceOrEmpty(entry.Summary, entry.Description); body != "" {
		r = strings.NewReader(body)
	} else {
		if entry.Link == "" {
			return "", ErrNoText
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.Link, nil)
		if err != nil {
			return "", err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch article: unexpected response status %d", resp.StatusCode)
		}

		r = resp.Body
	}

	doc, err := readability.FromReader(r, nil)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(cleanupText(doc.TextContent))
	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

func cleanupText(text string) string {
	return redundantNewLines.ReplaceAllString(text, "\n")
}
