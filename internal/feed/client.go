// Package feed retrieves and parses RSS/Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// Entry is one parsed feed item, already reduced to what the pipeline needs.
type Entry struct {
	Title       string
	URL         string
	Content     string
	PublishedAt time.Time
}

// Client fetches and parses a syndication feed over HTTP.
type Client struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

// NewClient creates a feed client. Every fetch is bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	return &Client{
		parser:  parser,
		timeout: timeout,
	}
}

// Fetch retrieves the feed at url and returns its entries in feed order.
// Errors are classified into the pipeline taxonomy: network failures and
// server errors are transient, client errors and unparsable documents are
// permanent.
func (c *Client) Fetch(ctx context.Context, url string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parsed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, classify(err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}

		published := time.Now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		entries = append(entries, Entry{
			Title:       item.Title,
			URL:         item.Link,
			Content:     content,
			PublishedAt: published,
		})
	}

	return entries, nil
}

func classify(err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", domain.ErrFetchTransient, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrFetchPermanent, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrFetchTransient, err)
	}

	// gofeed surfaces parse failures as ErrFeedTypeNotDetected or XML errors;
	// a document we cannot parse today will not parse on retry either.
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return fmt.Errorf("%w: %w", domain.ErrFetchPermanent, err)
	}

	// Everything else (DNS, connection refused, resets) is worth retrying.
	return fmt.Errorf("%w: %w", domain.ErrFetchTransient, err)
}
