package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/logging"
)

const callTimeout = 15 * time.Second

// TavilyClient is a Client implementation for the Tavily-style search
// collaborator: `{query, max_results, search_depth}` in,
// `{results: [{title, url, content, score}]}` out. An empty apiKey makes
// every Search call degrade to empty results immediately, matching the
// documented "search provider unconfigured" behavior.
type TavilyClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewTavilyClient constructs a TavilyClient. baseURL defaults to the
// Tavily API when empty.
func NewTavilyClient(apiKey, baseURL string, logger *zap.Logger) *TavilyClient {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyClient{
		httpClient: &http.Client{Timeout: callTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search issues a single call with a 15s timeout. Any failure — timeout,
// non-2xx, network, or an unconfigured API key — degrades to an empty
// result list; it never returns an error.
func (c *TavilyClient) Search(ctx context.Context, q Query) []Result {
	if c.apiKey == "" {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	payload, err := json.Marshal(tavilyRequest{
		Query:       q.Text,
		MaxResults:  q.MaxResults,
		SearchDepth: string(q.Depth),
	})
	if err != nil {
		c.logger.Warn("search request marshal failed", logging.Fields{}.Component("search").Err(err).Slice()...)
		return nil
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		c.logger.Warn("search request build failed", logging.Fields{}.Component("search").Err(err).Slice()...)
		return nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("search call failed", logging.Fields{}.Component("search").Err(err).Slice()...)
		return nil
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 300 {
		c.logger.Warn("search call returned non-2xx", logging.Fields{}.Component("search").Slice()...)
		return nil
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("search response decode failed", logging.Fields{}.Component("search").Err(err).Slice()...)
		return nil
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
	}
	return results
}
