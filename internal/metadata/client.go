package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when the metadata service has no record for the id.
var ErrNotFound = errors.New("metadata: not found")

// ErrUpstream wraps every other failure talking to the metadata service.
var ErrUpstream = errors.New("metadata: upstream failure")

// Result contains the fields used to enrich a card. Nil means the service had
// no usable value.
type Result struct {
	Title     string
	PosterURL *string
	Plot      *string
	Rating    *float32
	Runtime   *int
	Director  *string
	Country   *string
	Genres    []string
}

// Client looks up film metadata by IMDb id.
type Client interface {
	Lookup(ctx context.Context, imdbID string) (*Result, error)
}

// HTTPClient implements Client against an OMDb-compatible API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a metadata client. baseURL is the service root,
// e.g. https://www.omdbapi.com.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse metadata url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
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
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger.Named("metadata"),
	}, nil
}

// Lookup fetches metadata for imdbID.
func (c *HTTPClient) Lookup(ctx context.Context, imdbID string) (*Result, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, ErrNotFound
	}

	rel := &url.URL{Path: "/"}
	q := rel.Query()
	q.Set("apikey", c.apiKey)
	q.Set("i", imdbID)
	q.Set("plot", "short")
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("metadata request failed", zap.String("imdb_id", imdbID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Warn("unexpected metadata status", zap.Int("status", resp.StatusCode), zap.String("imdb_id", imdbID))
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if !strings.EqualFold(payload.Response, "true") {
		if isNotFoundMessage(payload.Error) {
			return nil, ErrNotFound
		}
		c.logger.Warn("metadata lookup rejected", zap.String("imdb_id", imdbID), zap.String("error", payload.Error))
		return nil, fmt.Errorf("%w: %s", ErrUpstream, payload.Error)
	}
	return convertToResult(payload), nil
}

// OMDb signals misses with HTTP 200 and an error message.
func isNotFoundMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "incorrect imdb id")
}

type apiResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Title      string `json:"Title"`
	Plot       string `json:"Plot"`
	Director   string `json:"Director"`
	Poster     string `json:"Poster"`
	Genre      string `json:"Genre"`
	Country    string `json:"Country"`
	Runtime    string `json:"Runtime"`
	ImdbRating string `json:"imdbRating"`
}

func convertToResult(payload apiResponse) *Result {
	return &Result{
		Title:     strings.TrimSpace(payload.Title),
		PosterURL: optionalText(payload.Poster),
		Plot:      optionalText(payload.Plot),
		Rating:    parseRating(payload.ImdbRating),
		Runtime:   parseRuntime(payload.Runtime),
		Director:  optionalText(payload.Director),
		Country:   optionalText(payload.Country),
		Genres:    splitList(payload.Genre),
	}
}

// optionalText maps blank and "N/A" to nil.
func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "N/A") {
		return nil
	}
	return &v
}

func parseRating(v string) *float32 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil || !(f > 0 && f <= 10) {
		return nil
	}
	r := float32(f)
	return &r
}

// parseRuntime accepts "117 min" or a bare minute count.
func parseRuntime(v string) *int {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func splitList(v string) []string {
	if optionalText(v) == nil {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
