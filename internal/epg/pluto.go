package epg

import (
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

// ErrUpstream marks any failure fetching or decoding the live-TV feed.
var ErrUpstream = errors.New("epg: upstream failure")

// Source fetches channel listings with their timelines between from and to.
type Source interface {
	Fetch(ctx context.Context, from, to time.Time) ([]FeedChannel, error)
}

// FeedChannel is a channel as published by the Pluto TV v2 channels API.
type FeedChannel struct {
	ID        string         `json:"_id"`
	Slug      string         `json:"slug"`
	Name      string         `json:"name"`
	Number    int            `json:"number"`
	Category  string         `json:"category"`
	Logo      FeedImage      `json:"colorLogoPNG"`
	Timelines []FeedTimeline `json:"timelines"`
}

// FeedImage is an image reference in the feed.
type FeedImage struct {
	Path string `json:"path"`
}

// FeedTimeline is one scheduled airing.
type FeedTimeline struct {
	ID      string      `json:"_id"`
	Start   string      `json:"start"`
	Stop    string      `json:"stop"`
	Title   string      `json:"title"`
	Episode FeedEpisode `json:"episode"`
}

// FeedEpisode carries the descriptive text of an airing.
type FeedEpisode struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	SubGenre    string `json:"subGenre"`
}

// PlutoClient implements Source over HTTP.
type PlutoClient struct {
	baseURL *url.URL
	client  *http.Client
	logger  *zap.Logger
}

// NewPlutoClient constructs a feed client rooted at baseURL.
func NewPlutoClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*PlutoClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse pluto url: %w", err)
	}
	return &PlutoClient{
		baseURL: parsed,
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
		logger: logger.Named("pluto"),
	}, nil
}

// Fetch retrieves the channel guide for [from, to].
func (c *PlutoClient) Fetch(ctx context.Context, from, to time.Time) ([]FeedChannel, error) {
	rel := &url.URL{Path: "/v2/channels"}
	q := rel.Query()
	q.Set("start", from.UTC().Format(time.RFC3339))
	q.Set("stop", to.UTC().Format(time.RFC3339))
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	channels, err := DecodeFeed(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched feed",
		zap.Int("channels", len(channels)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return channels, nil
}

// Close releases idle upstream connections.
func (c *PlutoClient) Close() {
	c.client.CloseIdleConnections()
}

// DecodeFeed parses a channels payload.
func DecodeFeed(r io.Reader) ([]FeedChannel, error) {
	var channels []FeedChannel
	if err := json.NewDecoder(r).Decode(&channels); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", ErrUpstream, err)
	}
	return channels, nil
}
