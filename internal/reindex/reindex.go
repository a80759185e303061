// Package reindex notifies the code-search indexer that source trees on
// the shared volume changed and should be picked up.
package reindex

//go:generate mockgen -destination=mocks/mock_reindex.go -package=mocks -source=reindex.go Notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	// requestTimeout bounds the whole notification round trip.
	requestTimeout = 10 * time.Second

	// connectTimeout bounds dialing the indexer separately, so an
	// unreachable host fails fast.
	connectTimeout = 5 * time.Second

	userAgent = "repo-custodian/1.0"
)

// Notifier asks the indexer to refresh. Notifications are best effort;
// callers log failures and move on.
type Notifier interface {
	// Notify requests a reindex. The reason labels what changed and only
	// feeds logging.
	Notify(ctx context.Context, reason string) error
}

// Client triggers reindexing with an HTTP GET against a fixed URL.
type Client struct {
	url    string
	client *http.Client
}

var _ Notifier = (*Client)(nil)

// NewClient builds a notifier for the given reindex URL.
func NewClient(url string) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// Notify performs the GET. Any non-2xx response is an error.
func (c *Client) Notify(ctx context.Context, reason string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("reindex request rejected: HTTP %d", resp.StatusCode)
	}

	slog.DebugContext(ctx, "Triggered reindex", "reason", reason)
	return nil
}

// NopNotifier discards notifications. Used when no reindex URL is
// configured.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, string) error { return nil }
