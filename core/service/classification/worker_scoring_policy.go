// Package classification partitions threads into categories using a
// deterministic rule scorer and an optional model-assisted classifier.
package classification

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Scoring Policy
// =============================================================================

// ScoringPolicy holds every weight the rule scorer uses. The defaults are an
// empirical starting point, not a derived optimum; deployments can override
// them from YAML.
type ScoringPolicy struct {
	// Base signals, applied to every category.
	NameSubstring int `yaml:"name_substring"`
	KeywordMatch  int `yaml:"keyword_match"`
	GroupBonus    int `yaml:"group_bonus"`

	// Extra signals for custom categories only.
	CustomNameWord      int `yaml:"custom_name_word"`
	CustomKeywordExtra  int `yaml:"custom_keyword_extra"`
	CustomPhrase        int `yaml:"custom_phrase"`
	CustomParticipation int `yaml:"custom_participation"`

	// Whole-word name match. Any score at or above ExactMatchThreshold wins outright.
	ExactWordBonus      int `yaml:"exact_word_bonus"`
	ExactMatchThreshold int `yaml:"exact_match_threshold"`

	// A custom category wins when its score reaches this share of the best score.
	CustomBiasRatio float64 `yaml:"custom_bias_ratio"`

	// Description words must be at least this long to count as keywords.
	MinKeywordLength int `yaml:"min_keyword_length"`
	// Category name words must be at least this long for word matches.
	MinNameWordLength int `yaml:"min_name_word_length"`
	// Name words that never count as a match. Empty by default: every name
	// word of MinNameWordLength or more takes part in word matches.
	NameStopWords []string `yaml:"name_stop_words"`

	Groups []SemanticGroup `yaml:"groups"`
}

// SemanticGroup awards GroupBonus to categories whose name contains one of
// CategoryHints when the thread text contains one of Triggers.
type SemanticGroup struct {
	Name          string   `yaml:"name"`
	Triggers      []string `yaml:"triggers"`
	CategoryHints []string `yaml:"category_hints"`
}

// DefaultScoringPolicy returns the built-in weights.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		NameSubstring:       10,
		KeywordMatch:        2,
		GroupBonus:          8,
		CustomNameWord:      8,
		CustomKeywordExtra:  3,
		CustomPhrase:        10,
		CustomParticipation: 3,
		ExactWordBonus:      50,
		ExactMatchThreshold: 50,
		CustomBiasRatio:     0.40,
		MinKeywordLength:    4,
		MinNameWordLength:   3,
		Groups:              DefaultSemanticGroups(),
	}
}

// DefaultSemanticGroups returns the three built-in trigger groups.
func DefaultSemanticGroups() []SemanticGroup {
	return []SemanticGroup{
		{
			Name: "urgency",
			Triggers: []string{
				"urgent", "asap", "immediately", "action required", "deadline",
				"important", "respond by", "please respond", "approve", "overdue", "critical",
			},
			CategoryHints: []string{"important", "action", "urgent"},
		},
		{
			Name: "newsletter",
			Triggers: []string{
				"newsletter", "unsubscribe", "digest", "weekly", "monthly",
				"subscription", "edition", "webinar", "subscribe",
			},
			CategoryHints: []string{"newsletter", "updates", "subscription"},
		},
		{
			Name: "system",
			Triggers: []string{
				"no-reply", "noreply", "do-not-reply", "donotreply", "notification",
				"alert", "automated", "mailer-daemon", "receipt", "verification code",
			},
			CategoryHints: []string{"auto", "archive", "notification"},
		},
	}
}

// LoadScoringPolicy reads a YAML file on top of the defaults. Fields missing
// from the file keep their default value. An empty path returns the defaults.
func LoadScoringPolicy(path string) (ScoringPolicy, error) {
	policy := DefaultScoringPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read scoring policy: %w", err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse scoring policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

// Validate rejects policies that would break winner selection.
func (p ScoringPolicy) Validate() error {
	if p.ExactMatchThreshold <= 0 {
		return fmt.Errorf("exact_match_threshold must be positive, got %d", p.ExactMatchThreshold)
	}
	if p.CustomBiasRatio < 0 || p.CustomBiasRatio > 1 {
		return fmt.Errorf("custom_bias_ratio must be between 0 and 1, got %f", p.CustomBiasRatio)
	}
	if p.MinKeywordLength < 1 || p.MinNameWordLength < 1 {
		return fmt.Errorf("minimum word lengths must be at least 1")
	}
	return nil
}
