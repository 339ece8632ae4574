package api

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/codeready-toolchain/deepresearch/pkg/models"
)

const (
	minQueryLength = 3
	maxQueryLength = 2000
)

// suspiciousPatterns are rejected in a research query, case-insensitive.
var suspiciousPatterns = regexp.MustCompile(`(?i)<script|javascript:|on\w+=`)

// StartResearchRequest is the POST /research request body.
type StartResearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

// Validate trims Query, defaults Mode to standard, and enforces the
// admission-layer input rules from spec §4.1. It returns the normalized
// query/mode on success.
func (r StartResearchRequest) Validate() (query string, mode models.Mode, err *ValidationIssue) {
	query = strings.TrimSpace(r.Query)
	if l := utf8.RuneCountInString(query); l < minQueryLength || l > maxQueryLength {
		return "", "", &ValidationIssue{Message: "query must be between 3 and 2000 characters"}
	}
	if suspiciousPatterns.MatchString(query) {
		return "", "", &ValidationIssue{Message: "query contains disallowed content"}
	}

	mode = models.Mode(r.Mode)
	if mode == "" {
		mode = models.ModeStandard
	}
	if !mode.Valid() {
		return "", "", &ValidationIssue{Message: "mode must be one of quick, standard, deep"}
	}

	return query, mode, nil
}

// ValidationIssue describes an admission-layer rejection.
type ValidationIssue struct {
	Message string
}

func (v *ValidationIssue) Error() string { return v.Message }

// paginationDefaults applies the §4.1/§8 GET /history clamping rules:
// an omitted limit defaults to 50; an explicit non-positive limit clamps
// up to 1; anything above 100 clamps down to 100. offset defaults to,
// and floors at, 0.
func paginationDefaults(limit, offset int, limitSet bool) (int, int) {
	switch {
	case !limitSet:
		limit = 50
	case limit <= 0:
		limit = 1
	case limit > 100:
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
