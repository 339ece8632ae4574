// Package search provides the web-search collaborator adapter: a single
// search operation plus a concurrent batch helper, both degrading to
// empty results on failure rather than propagating an error.
package search

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Depth selects the search provider's thoroughness/cost tier.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Result is one ranked source returned by a search call.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Query is a single search call's parameters.
type Query struct {
	Text       string
	MaxResults int
	Depth      Depth
}

// Client is the search collaborator contract. Search never returns an
// error for provider failures — timeouts, non-2xx, and network errors all
// degrade to an empty Result slice, since zero sources is a valid
// orchestrator state.
type Client interface {
	Search(ctx context.Context, q Query) []Result
}

// SearchMany runs queries concurrently against client and returns one
// Result slice per input query, in the same order, each independently
// succeeding or degrading to empty.
func SearchMany(ctx context.Context, client Client, queries []Query) [][]Result {
	results := make([][]Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results[i] = client.Search(gctx, q)
			return nil
		})
	}
	// Errors are never returned by Client.Search, so Wait cannot fail; the
	// group is used purely for fan-out, not for error aggregation.
	_ = g.Wait()

	return results
}

// DedupeByURL removes results whose URL has already been seen, keeping
// the first occurrence, preserving relative order across the
// concatenated lists.
func DedupeByURL(lists ...[]Result) []Result {
	seen := make(map[string]struct{})
	var out []Result
	for _, list := range lists {
		for _, r := range list {
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
