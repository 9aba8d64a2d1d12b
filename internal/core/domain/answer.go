package domain

import (
	"regexp"
	"strings"
	"time"
)

// AnswerSource identifies which generator produced the selected answer
type AnswerSource string

const (
	AnswerSourceLocal    AnswerSource = "local"
	AnswerSourceExternal AnswerSource = "external"
)

// Selection reasons recorded on DualAnswerResult.
const (
	ReasonExternalNotConfigured = "external not configured"
	ReasonLocalFailed           = "local failed"
	ReasonExternalFailed        = "external failed"
	ReasonBothFailed            = "both sources failed"
	ReasonJudgeUnavailable      = "local (comparison unavailable)"
	ReasonJudgeUnclear          = "local (comparison unclear)"
	ReasonJudgeFailed           = "local (comparison failed)"
	ReasonRuleBased             = "rule-based response"
)

// Fixed answers.
const (
	AnswerNoResults     = "I could not find relevant information for your query."
	AnswerNotFound      = "I could not find the answer in the document."
	AnswerLocalEmpty    = "Local model could not generate an answer."
	AnswerPageCount     = "I cannot determine the total number of pages from the document content. This information would need to be extracted from document metadata."
	AnswerNoNumericInfo = "I could not find specific numerical information to answer this question accurately in the provided context."
)

// DualAnswerResult is the outcome of arbitrating between two answer sources
type DualAnswerResult struct {
	Answer          string        `json:"answer"`
	Source          AnswerSource  `json:"source"`
	LocalAnswer     string        `json:"local_answer"`
	ExternalAnswer  string        `json:"external_answer,omitempty"`
	SelectionReason string        `json:"selection_reason"`
	ProcessingTime  time.Duration `json:"processing_time" swaggertype:"integer"`
	Sources         []SourceRef   `json:"sources,omitempty"`
}

// Verdict is a parsed judge decision
type Verdict struct {
	Winner AnswerSource
	Reason string
	// Clear is false when the judge output could not be parsed
	Clear bool
}

var winnerPattern = regexp.MustCompile(`(?i)winner\s*:\s*\[?\s*([ab])\b\]?\s*(?:-\s*(.*))?`)

// ParseVerdict reads "Winner: A - reason" / "Winner: B - reason" judge output.
// A is the local answer, B the external one.
func ParseVerdict(raw string) Verdict {
	m := winnerPattern.FindStringSubmatch(raw)
	if m == nil {
		return Verdict{Winner: AnswerSourceLocal, Reason: ReasonJudgeUnclear}
	}
	reason := strings.TrimSpace(m[2])
	if strings.EqualFold(m[1], "b") {
		return Verdict{Winner: AnswerSourceExternal, Reason: "external (" + orDefault(reason, "judge preferred") + ")", Clear: true}
	}
	return Verdict{Winner: AnswerSourceLocal, Reason: "local (" + orDefault(reason, "judge preferred") + ")", Clear: true}
}

// LooksLikeError applies the lexical error marker used to reject failed answers.
func LooksLikeError(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "error")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
