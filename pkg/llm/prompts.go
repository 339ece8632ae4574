package llm

// Prompt contracts are stored as constants, never concatenated ad hoc at
// call sites, so every phase's instructions to the model are reviewable
// in one place.
const (
	QueryAnalysisPrompt = `You are a research query analyst. Given a user's research question, ` +
		`respond with a single JSON object with exactly these fields: "coreQuestion" (string, the ` +
		`essential question being asked), "subQuestions" (array of strings, 2-4 specific sub-questions ` +
		`that together answer the core question), "domain" (string, the subject area), and "outputType" ` +
		`(string, the kind of answer expected, e.g. "comparison", "explanation", "analysis"). Respond ` +
		`with JSON only, no prose.`

	QuickPrompt = `You are a research assistant providing a fast, focused answer. Write a 300-500 word ` +
		`response in markdown with clear headings. End with a short "Recommendations" section ` +
		`containing 2-3 concrete, actionable recommendations.`

	StandardPrompt = `You are a research assistant synthesizing a set of discovered sources into a ` +
		`structured report. Write a 600-1000 word response in markdown with an executive summary, ` +
		`comparison tables where relevant, and inline citation markers like [1], [2] referencing the ` +
		`numbered sources provided. End with a "Decision Framework" section.`

	ExtractionPrompt = `You are extracting structured insight from a set of source summaries. For each ` +
		`source, note key facts, data points, the source's perspective or stance, and how it relates ` +
		`to the research query. Organize your response by source.`

	ValidationPrompt = `You are cross-validating extracted insights against each other. Respond with ` +
		`three markdown sections: "Agreements" (claims multiple sources support), "Contradictions" ` +
		`(claims sources disagree on), and "Gaps" (aspects of the query no source addresses).`

	DeepSynthesisPrompt = `You are producing a comprehensive research report from query analysis, ` +
		`extracted insights, and a cross-validation pass. Write a 1200-2000 word response in markdown ` +
		`with inline citation markers like [1], [2] referencing the enumerated source list, a ` +
		`trade-offs matrix, a "Failure Modes" section, and a "Key Decisions" section.`
)
