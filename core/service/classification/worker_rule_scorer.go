package classification

import (
	"strings"
	"unicode"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
)

// =============================================================================
// Rule-Based Scorer
// =============================================================================

// WinReason explains how the rule scorer picked its winner.
type WinReason string

const (
	ReasonExactMatch WinReason = "exact_match"
	ReasonCustomBias WinReason = "custom_bias"
	ReasonHighest    WinReason = "highest"
	ReasonDefault    WinReason = "default"
)

// ScoreCard is the full output of one scoring pass. Scores line up with the
// category slice that was scored.
type ScoreCard struct {
	Scores []int
	Winner domain.Category
	Reason WinReason
}

// RuleScorer is a pure keyword scorer. It does no I/O and is safe for
// concurrent use.
type RuleScorer struct {
	policy ScoringPolicy
}

// NewRuleScorer creates a scorer with the given policy.
func NewRuleScorer(policy ScoringPolicy) *RuleScorer {
	return &RuleScorer{policy: policy}
}

// Policy returns the weights in use.
func (s *RuleScorer) Policy() ScoringPolicy {
	return s.policy
}

// Classify returns the winning category for thread. categories must not be empty.
func (s *RuleScorer) Classify(thread domain.Thread, categories []domain.Category) domain.Category {
	return s.Score(thread, categories).Winner
}

// Score computes every category's score and selects a winner.
func (s *RuleScorer) Score(thread domain.Thread, categories []domain.Category) ScoreCard {
	card := ScoreCard{Scores: make([]int, len(categories))}
	if len(categories) == 0 {
		return card
	}

	text := newThreadText(thread)
	for i, c := range categories {
		card.Scores[i] = s.scoreCategory(text, c)
	}

	card.Winner, card.Reason = s.selectWinner(card.Scores, categories)
	return card
}

func (s *RuleScorer) scoreCategory(text threadText, c domain.Category) int {
	p := s.policy
	name := strings.ToLower(strings.TrimSpace(c.Name))
	score := 0

	if name != "" && strings.Contains(text.full, name) {
		score += p.NameSubstring
	}

	keywords := descriptionKeywords(c.Description, p.MinKeywordLength)
	matchedKeywords := 0
	for _, kw := range keywords {
		if strings.Contains(text.full, kw) {
			matchedKeywords++
		}
	}
	score += matchedKeywords * p.KeywordMatch

	for _, g := range p.Groups {
		if containsAny(name, g.CategoryHints) && containsAny(text.full, g.Triggers) {
			score += p.GroupBonus
		}
	}

	nameWords := s.nameWords(name)

	if c.IsCustom {
		for _, w := range nameWords {
			if strings.Contains(text.full, w) {
				score += p.CustomNameWord
			}
		}
		score += matchedKeywords * p.CustomKeywordExtra
		for _, phrase := range descriptionPhrases(c.Description) {
			if strings.Contains(text.full, phrase) {
				score += p.CustomPhrase
			}
		}
		score += p.CustomParticipation
	}

	for _, w := range nameWords {
		if _, ok := text.words[w]; ok {
			score += p.ExactWordBonus
			break
		}
	}

	return score
}

func (s *RuleScorer) nameWords(name string) []string {
	words := splitWords(name, s.policy.MinNameWordLength)
	out := words[:0]
	for _, w := range words {
		if !containsWord(s.policy.NameStopWords, w) {
			out = append(out, w)
		}
	}
	return out
}

// selectWinner applies the exact-match, custom-bias and default rules. Ties
// go to the category declared first.
func (s *RuleScorer) selectWinner(scores []int, categories []domain.Category) (domain.Category, WinReason) {
	best, bestCustom := -1, -1
	for i, score := range scores {
		if best < 0 || score > scores[best] {
			best = i
		}
		if categories[i].IsCustom && (bestCustom < 0 || score > scores[bestCustom]) {
			bestCustom = i
		}
	}

	if scores[best] >= s.policy.ExactMatchThreshold {
		return categories[best], ReasonExactMatch
	}

	if bestCustom >= 0 && bestCustom != best && scores[bestCustom] > 0 &&
		float64(scores[bestCustom]) >= s.policy.CustomBiasRatio*float64(scores[best]) {
		return categories[bestCustom], ReasonCustomBias
	}

	if scores[best] == 0 {
		def, _ := domain.DefaultCategory(categories)
		return def, ReasonDefault
	}

	return categories[best], ReasonHighest
}

// =============================================================================
// Text helpers
// =============================================================================

type threadText struct {
	full  string
	words map[string]struct{}
}

func newThreadText(t domain.Thread) threadText {
	full := strings.ToLower(t.Subject + " " + t.Snippet + " " + t.Sender)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(full, isWordBreak) {
		words[w] = struct{}{}
	}
	return threadText{full: full, words: words}
}

func isWordBreak(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// descriptionKeywords returns the distinct lowercase words of desc that are at
// least minLen runes long once punctuation is stripped.
func descriptionKeywords(desc string, minLen int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range strings.Fields(strings.ToLower(desc)) {
		w := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, raw)
		if len([]rune(w)) < minLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// descriptionPhrases splits desc on commas and periods into trimmed clauses.
func descriptionPhrases(desc string) []string {
	var out []string
	for _, clause := range strings.FieldsFunc(strings.ToLower(desc), func(r rune) bool {
		return r == ',' || r == '.'
	}) {
		clause = strings.Join(strings.Fields(clause), " ")
		if clause != "" {
			out = append(out, clause)
		}
	}
	return out
}

// splitWords returns the distinct alphanumeric words of s at least minLen long.
func splitWords(s string, minLen int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.FieldsFunc(s, isWordBreak) {
		if len([]rune(w)) < minLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsWord(list []string, w string) bool {
	for _, item := range list {
		if strings.EqualFold(item, w) {
			return true
		}
	}
	return false
}
