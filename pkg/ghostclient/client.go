// Package ghostclient is a Go client for the Ghost Guide API with an
// optimistic watchlist cache.
package ghostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("ghostclient: not found")

// APIError carries a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ghostclient: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Source is one streaming offer for a card.
type Source struct {
	Service string `json:"service"`
	Type    string `json:"type,omitempty"`
	Link    string `json:"link,omitempty"`
}

// Card is the subset of catalog fields the client exposes.
type Card struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Year      *int     `json:"year"`
	Genres    []string `json:"genres"`
	Runtime   *int     `json:"runtime"`
	Rating    *float32 `json:"rating"`
	Featured  bool     `json:"featured"`
	Sources   []Source `json:"sources"`
	PosterURL *string  `json:"posterUrl,omitempty"`
}

// WatchlistItem is one saved card.
type WatchlistItem struct {
	CardID   string    `json:"cardId"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"addedAt"`
	Card     *Card     `json:"card,omitempty"`
}

// Client calls the Ghost Guide API on behalf of one signed-in user.
type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger.Named("ghostclient") }
}

// New builds a client for baseURL authenticating with the user's bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	timeout := 10 * time.Second
	c := &Client{
		baseURL: parsed,
		token:   token,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type watchlistPayload struct {
	Items []WatchlistItem `json:"items"`
}

// Watchlist returns the user's saved cards in order.
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	var out watchlistPayload
	if err := c.do(ctx, http.MethodGet, "/watchlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// AddToWatchlist saves cardID. Saving a card twice is not an error.
func (c *Client) AddToWatchlist(ctx context.Context, cardID string) (WatchlistItem, error) {
	var out WatchlistItem
	err := c.do(ctx, http.MethodPost, "/watchlist", map[string]string{"cardId": cardID}, &out)
	return out, err
}

// RemoveFromWatchlist deletes cardID from the watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, "/watchlist/"+url.PathEscape(cardID), nil, nil)
}

// ReorderWatchlist sets the watchlist order. cardIDs must name every saved card.
func (c *Client) ReorderWatchlist(ctx context.Context, cardIDs []string) ([]WatchlistItem, error) {
	var out watchlistPayload
	if err := c.do(ctx, http.MethodPut, "/watchlist/order", map[string][]string{"cardIds": cardIDs}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
