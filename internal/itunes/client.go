// Package itunes searches the iTunes catalogue for songs.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pscheid92/jukevote/internal/domain"
	apperrors "github.com/pscheid92/jukevote/internal/errors"
	"github.com/pscheid92/jukevote/internal/metrics"
)

const (
	defaultBaseURL = "https://itunes.apple.com"
	requestTimeout = 5 * time.Second
	maxLimit       = 25
)

// Client queries the iTunes search API. A circuit breaker fails searches
// fast while the upstream is down instead of piling up slow requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
}

var _ domain.SongSearcher = (*Client)(nil)

// New builds a client. baseURL overrides the production endpoint, pass ""
// outside tests.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "itunes",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("search circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.SearchCircuitState.Set(stateToFloat(to))
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		breaker:    breaker,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

type searchResponse struct {
	ResultCount int           `json:"resultCount"`
	Results     []trackResult `json:"results"`
}

type trackResult struct {
	TrackID         int64  `json:"trackId"`
	TrackName       string `json:"trackName"`
	ArtistName      string `json:"artistName"`
	CollectionName  string `json:"collectionName"`
	TrackTimeMillis int    `json:"trackTimeMillis"`
	ArtworkURL100   string `json:"artworkUrl100"`
	PreviewURL      string `json:"previewUrl"`
}

// Search looks up songs matching query. limit is clamped to the API maximum.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Validation("search query must not be empty")
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSearch(ctx, query, limit)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.SearchRequestsTotal.WithLabelValues("circuit_open").Inc()
			return nil, apperrors.External("song search temporarily unavailable", err)
		}
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, apperrors.External("song search failed", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	return result.([]domain.SearchResult), nil
}

func (c *Client) doSearch(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("term", query)
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding itunes response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.Results))
	for _, track := range parsed.Results {
		results = append(results, domain.SearchResult{
			ITunesID:   strconv.FormatInt(track.TrackID, 10),
			Title:      track.TrackName,
			Artist:     track.ArtistName,
			Album:      track.CollectionName,
			Duration:   track.TrackTimeMillis / 1000,
			ArtworkURL: upgradeArtwork(track.ArtworkURL100),
			PreviewURL: track.PreviewURL,
		})
	}
	return results, nil
}

// upgradeArtwork swaps the 100x100 thumbnail for the 300x300 variant the
// CDN serves under the same path.
func upgradeArtwork(artworkURL string) string {
	return strings.Replace(artworkURL, "100x100bb", "300x300bb", 1)
}
