package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

func TestValidateQueryLengthBoundaries(t *testing.T) {
	_, _, err := StartResearchRequest{Query: "ab"}.Validate()
	assert.NotNil(t, err, "length 2 must be rejected")

	_, _, err = StartResearchRequest{Query: "abc"}.Validate()
	assert.Nil(t, err, "length 3 must be accepted")

	_, _, err = StartResearchRequest{Query: strings.Repeat("a", 2001)}.Validate()
	assert.NotNil(t, err, "length 2001 must be rejected")
}

func TestValidateDefaultsModeToStandard(t *testing.T) {
	_, mode, err := StartResearchRequest{Query: "a valid query"}.Validate()
	require.Nil(t, err)
	assert.Equal(t, models.ModeStandard, mode)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	_, _, err := StartResearchRequest{Query: "a valid query", Mode: "bogus"}.Validate()
	assert.NotNil(t, err)
}

func TestValidateRejectsSuspiciousPatterns(t *testing.T) {
	cases := []string{
		`<script>alert(1)</script>stuff`,
		`javascript:alert(1)`,
		`click me onclick=alert(1)`,
	}
	for _, q := range cases {
		_, _, err := StartResearchRequest{Query: q}.Validate()
		assert.NotNil(t, err, "query %q must be rejected", q)
	}
}

func TestValidateTrimsQuery(t *testing.T) {
	query, _, err := StartResearchRequest{Query: "  hello there  "}.Validate()
	require.Nil(t, err)
	assert.Equal(t, "hello there", query)
}

func TestPaginationDefaults(t *testing.T) {
	limit, offset := paginationDefaults(0, 0, false)
	assert.Equal(t, 50, limit, "omitted limit defaults to 50")
	assert.Equal(t, 0, offset)

	limit, _ = paginationDefaults(0, 0, true)
	assert.Equal(t, 1, limit, "explicit limit=0 clamps to 1")

	limit, _ = paginationDefaults(500, 0, true)
	assert.Equal(t, 100, limit, "limit=500 clamps to 100")

	_, offset = paginationDefaults(50, -5, true)
	assert.Equal(t, 0, offset, "offset=-5 clamps to 0")
}
