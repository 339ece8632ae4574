package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/codeready-toolchain/deepresearch/pkg/logging"
)

func nopLogger() *zap.Logger {
	return logging.NewNop()
}

type fakeClient struct {
	byQuery map[string][]Result
}

func (f fakeClient) Search(_ context.Context, q Query) []Result {
	return f.byQuery[q.Text]
}

func TestSearchManyPreservesOrderAndToleratesEmpty(t *testing.T) {
	client := fakeClient{byQuery: map[string][]Result{
		"a": {{Title: "A1", URL: "http://a1"}},
		"c": {{Title: "C1", URL: "http://c1"}},
	}}

	queries := []Query{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	results := SearchMany(context.Background(), client, queries)

	assert.Len(t, results, 3)
	assert.Equal(t, "A1", results[0][0].Title)
	assert.Empty(t, results[1])
	assert.Equal(t, "C1", results[2][0].Title)
}

func TestDedupeByURLKeepsFirstOccurrence(t *testing.T) {
	first := []Result{{Title: "one", URL: "http://x"}, {Title: "two", URL: "http://y"}}
	second := []Result{{Title: "dup-one", URL: "http://x"}, {Title: "three", URL: "http://z"}}

	out := DedupeByURL(first, second)

	assert.Len(t, out, 3)
	assert.Equal(t, "one", out[0].Title)
	assert.Equal(t, "two", out[1].Title)
	assert.Equal(t, "three", out[2].Title)
}

func TestUnconfiguredTavilyClientReturnsEmpty(t *testing.T) {
	c := NewTavilyClient("", "", nopLogger())
	results := c.Search(context.Background(), Query{Text: "anything"})
	assert.Empty(t, results)
}
