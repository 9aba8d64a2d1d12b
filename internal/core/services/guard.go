package services

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// HallucinationRule replaces an answer with a fixed message when Match holds.
type HallucinationRule struct {
	Name       string
	Match      func(query, answer string) bool
	Substitute string
}

// HallucinationGuard evaluates rules in order; the first match wins.
type HallucinationGuard struct {
	rules []HallucinationRule
}

// NewHallucinationGuard creates a guard with the given rules.
func NewHallucinationGuard(rules ...HallucinationRule) *HallucinationGuard {
	return &HallucinationGuard{rules: rules}
}

// DefaultHallucinationGuard returns the guard with DefaultHallucinationRules.
func DefaultHallucinationGuard() *HallucinationGuard {
	return NewHallucinationGuard(DefaultHallucinationRules()...)
}

// Rules returns the rule table in evaluation order.
func (g *HallucinationGuard) Rules() []HallucinationRule {
	return append([]HallucinationRule(nil), g.rules...)
}

// Apply returns the answer, or the substitute of the first matching rule
// along with its name.
func (g *HallucinationGuard) Apply(query, answer string) (string, string) {
	for _, r := range g.rules {
		if r.Match(query, answer) {
			return r.Substitute, r.Name
		}
	}
	return answer, ""
}

var (
	pageCountPhrases = []string{"total pages", "number of pages", "how many pages", "page count"}
	countPhrases     = []string{"how many", "total", "number of", "count"}
	placeholders     = []string{"[1]", "[2]", "[3]", "answer in one clear sentence."}
)

// DefaultHallucinationRules is the built-in rule table. Page-count questions
// are checked first so they never yield a number.
func DefaultHallucinationRules() []HallucinationRule {
	return []HallucinationRule{
		{
			Name:       "page-count",
			Match:      func(query, _ string) bool { return AsksPageCount(query) },
			Substitute: domain.AnswerPageCount,
		},
		{
			Name:       "empty-or-placeholder",
			Match:      func(_, answer string) bool { return isPlaceholder(answer) },
			Substitute: domain.AnswerNotFound,
		},
		{
			Name: "short-numeric",
			Match: func(query, answer string) bool {
				return containsAny(strings.ToLower(query), countPhrases) &&
					len(strings.Fields(answer)) < 5 &&
					strings.IndexFunc(answer, unicode.IsDigit) >= 0
			},
			Substitute: domain.AnswerNoNumericInfo,
		},
	}
}

// AsksPageCount reports whether the query asks how many pages a document has.
func AsksPageCount(query string) bool {
	return containsAny(strings.ToLower(query), pageCountPhrases)
}

func isPlaceholder(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return true
	}
	for _, p := range placeholders {
		if a == p {
			return true
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
