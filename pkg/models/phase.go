package models

// Phase is one step of the orchestrator pipeline, appended after it
// finishes executing and tracked for audit and progress display.
type Phase struct {
	ID         int64
	SessionID  string
	Name       string
	DurationMs int64
	TokensUsed int
	Metadata   map[string]any
	SeqNo      int
}

// Deep pipeline phase names, in the order they run. Phases 3 and 4 are
// optional — skipped when the preceding step yields no input for them.
// PhaseQuickSynthesis is Quick mode's single phase, not a Deep phase.
const (
	PhaseQueryAnalysis     = "query_analysis"
	PhaseSourceDiscovery   = "source_discovery"
	PhaseContentExtraction = "content_extraction"
	PhaseCrossValidation   = "cross_validation"
	PhaseStructuredSynth   = "structured_synthesis"
	PhaseCitationLinking   = "citation_linking"
	PhaseQuickSynthesis    = "quick_synthesis"
)
