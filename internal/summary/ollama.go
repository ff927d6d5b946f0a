package summary

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaSummarizer struct {
	client  *api.Client
	prompt  string
	model   string
	timeout time.Duration
	mu      sync.Mutex
}

// NewOllamaSummarizer talks to an ollama server; baseURL is host:port.
func NewOllamaSummarizer(baseURL, prompt, model string, timeout time.Duration) *OllamaSummarizer {
	c := api.NewClient(&url.URL{
		Scheme: "http",
		Host:   baseURL,
		Path:   "/",
	}, &http.Client{})

	return &OllamaSummarizer{
		client:  c,
		prompt:  prompt,
		model:   model,
		timeout: timeout,
	}
}

func (o *OllamaSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req := &api.GenerateRequest{
		Model:  o.model,
		System: o.prompt,
		Prompt: text,
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var responseFlow []string
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseFlow = append(responseFlow, resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Join(responseFlow, "")), nil
}
