package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nijaru/videochat/models"
)

// SearchStrategy selects the backend search pipeline for VisualSearch.
type SearchStrategy int

const (
	// StrategyNative lets the multimodal model watch the video directly.
	StrategyNative SearchStrategy = iota
	// StrategyStandard searches pre-extracted frames.
	StrategyStandard
)

func (s SearchStrategy) String() string {
	if s == StrategyStandard {
		return "standard"
	}
	return "native"
}

// SearchOptions tunes VisualSearch. The zero value asks for 10 results using
// the native strategy.
type SearchOptions struct {
	MaxResults int
	Strategy   SearchStrategy
}

func (o SearchOptions) maxResults() int {
	if o.MaxResults == 0 {
		return defaultMaxResults
	}
	return o.MaxResults
}

// VisualSearch finds the moments of a video matching query.
func (c *Client) VisualSearch(ctx context.Context, videoID int, query string, opts SearchOptions) (*models.VisualSearchResponse, error) {
	const op = "Client.VisualSearch"

	in := models.VisualSearchRequest{
		VideoID:    videoID,
		Query:      query,
		MaxResults: opts.maxResults(),
	}
	useNative := opts.Strategy != StrategyStandard
	url := c.apiURL("/search/visual?use_native=" + strconv.FormatBool(useNative))

	var out models.VisualSearchResponse
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodPost, url, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NativeVisualSearch calls the native search endpoint directly. A zero
// maxResults requests 10.
func (c *Client) NativeVisualSearch(ctx context.Context, videoID int, query string, maxResults int) (*models.VisualSearchResponse, error) {
	const op = "Client.NativeVisualSearch"

	in := models.VisualSearchRequest{
		VideoID:    videoID,
		Query:      query,
		MaxResults: SearchOptions{MaxResults: maxResults}.maxResults(),
	}

	var out models.VisualSearchResponse
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodPost, c.apiURL("/search/native"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSearchSuggestions(ctx context.Context, videoID int) (*models.SearchSuggestionsResponse, error) {
	const op = "Client.GetSearchSuggestions"

	var out models.SearchSuggestionsResponse
	url := c.apiURL(fmt.Sprintf("/search/%d/suggestions", videoID))
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
