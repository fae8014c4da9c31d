package classification

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func custom(name, desc string) domain.Category {
	return domain.Category{ID: domain.DeriveCategoryID(name), Name: name, Description: desc, IsCustom: true}
}

func withCustom(extra ...domain.Category) []domain.Category {
	return append(domain.BuiltinCategories(), extra...)
}

func TestRuleScorer_Classify(t *testing.T) {
	scorer := NewRuleScorer(DefaultScoringPolicy())

	important := domain.Category{
		ID:          "important",
		Name:        "Important",
		Description: "urgent deadline meeting schedule review",
	}

	tests := []struct {
		name       string
		thread     domain.Thread
		categories []domain.Category
		want       string
		reason     WinReason
	}{
		{
			name: "whole word name match dominates",
			thread: domain.Thread{
				Subject: "Travel itinerary attached",
				Sender:  "agent@trips.example",
				Snippet: "Your flight leaves Monday",
			},
			categories: withCustom(custom("Travel", "Trips and bookings")),
			want:       "Travel",
			reason:     ReasonExactMatch,
		},
		{
			name: "custom category wins close contest",
			thread: domain.Thread{
				Subject: "Urgent: review the meeting schedule before the deadline",
				Sender:  "ops@corp.example",
				Snippet: "invoices attached",
			},
			categories: []domain.Category{important, custom("Finance", "Invoices and receipts")},
			want:       "Finance",
			reason:     ReasonCustomBias,
		},
		{
			name: "custom category below bias ratio loses",
			thread: domain.Thread{
				Subject: "Urgent: review the meeting schedule before the deadline",
				Sender:  "ops@corp.example",
				Snippet: "invoices attached",
			},
			categories: []domain.Category{important, custom("Finance", "Bank statements")},
			want:       "Important",
			reason:     ReasonHighest,
		},
		{
			name: "newsletter group bonus",
			thread: domain.Thread{
				Subject: "Your weekly digest",
				Sender:  "news@blog.example",
				Snippet: "Top stories. Unsubscribe anytime.",
			},
			categories: domain.BuiltinCategories(),
			want:       domain.CategoryNewsletter,
			reason:     ReasonHighest,
		},
		{
			name:       "short common name word is still an exact match",
			thread:     domain.Thread{Subject: "Please approve and sign"},
			categories: withCustom(custom("Bills and Receipts", "utility statements")),
			want:       "Bills and Receipts",
			reason:     ReasonExactMatch,
		},
		{
			name: "no signal falls back to default",
			thread: domain.Thread{
				Subject: "hello",
				Sender:  "bob@friends.example",
				Snippet: "lunch?",
			},
			categories: domain.BuiltinCategories(),
			want:       domain.CategoryCanWait,
			reason:     ReasonDefault,
		},
		{
			name:   "ties go to first declared",
			thread: domain.Thread{Subject: "Quarterly report ready"},
			categories: []domain.Category{
				custom("Alpha", "quarterly report"),
				custom("Beta", "quarterly report"),
			},
			want:   "Alpha",
			reason: ReasonHighest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := scorer.Score(tt.thread, tt.categories)
			assert.Equal(t, tt.want, card.Winner.Name, "scores: %v", card.Scores)
			assert.Equal(t, tt.reason, card.Reason)
			assert.Equal(t, tt.want, scorer.Classify(tt.thread, tt.categories).Name)
		})
	}
}

func TestRuleScorer_ScoreBreakdown(t *testing.T) {
	scorer := NewRuleScorer(DefaultScoringPolicy())
	thread := domain.Thread{
		Subject: "Travel itinerary attached",
		Sender:  "agent@trips.example",
		Snippet: "Your flight leaves Monday",
	}
	categories := []domain.Category{custom("Travel", "Trips and bookings")}

	card := scorer.Score(thread, categories)

	// substring 10 + keyword 2 + name word 8 + keyword extra 3 + participation 3 + whole word 50
	assert.Equal(t, []int{76}, card.Scores)
}

func TestRuleScorer_NameWordsCountByLength(t *testing.T) {
	thread := domain.Thread{Subject: "Please approve and sign"}
	categories := withCustom(custom("Bills and Receipts", "utility statements"))

	card := NewRuleScorer(DefaultScoringPolicy()).Score(thread, categories)
	// name word 8 + participation 3 + whole word 50
	assert.Equal(t, 61, card.Scores[len(categories)-1])

	policy := DefaultScoringPolicy()
	policy.NameStopWords = []string{"and"}
	card = NewRuleScorer(policy).Score(thread, categories)
	assert.Equal(t, 3, card.Scores[len(categories)-1])
	assert.Equal(t, domain.CategoryActionRequired, card.Winner.Name)
}

func TestRuleScorer_Deterministic(t *testing.T) {
	scorer := NewRuleScorer(DefaultScoringPolicy())
	categories := withCustom(custom("Finance", "invoices, billing, payments"))
	thread := domain.Thread{Subject: "Invoice #42", Sender: "billing@vendor.example", Snippet: "Payment due Friday"}

	first := scorer.Score(thread, categories)
	for i := 0; i < 20; i++ {
		again := scorer.Score(thread, categories)
		require.Equal(t, first.Scores, again.Scores)
		require.Equal(t, first.Winner, again.Winner)
	}
}

func TestRuleScorer_EmptyCategories(t *testing.T) {
	card := NewRuleScorer(DefaultScoringPolicy()).Score(domain.Thread{Subject: "x"}, nil)
	assert.Empty(t, card.Scores)
	assert.Empty(t, card.Winner.Name)
}

func TestDescriptionHelpers(t *testing.T) {
	assert.Equal(t, []string{"invoices", "billing", "payments"}, descriptionKeywords("Invoices, billing, and payments. Billing!", 4))
	assert.Equal(t, []string{"invoices", "billing", "and payments"}, descriptionPhrases("Invoices, billing,  and   payments."))
	assert.Equal(t, []string{"auto", "archive"}, splitWords("auto-archive", 3))
}

func TestLoadScoringPolicy(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		policy, err := LoadScoringPolicy("")
		require.NoError(t, err)
		assert.Equal(t, DefaultScoringPolicy(), policy)
	})

	t.Run("file overrides selected fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("custom_bias_ratio: 0.5\nexact_word_bonus: 40\n"), 0o600))

		policy, err := LoadScoringPolicy(path)
		require.NoError(t, err)
		assert.Equal(t, 0.5, policy.CustomBiasRatio)
		assert.Equal(t, 40, policy.ExactWordBonus)
		assert.Equal(t, 10, policy.NameSubstring)
		assert.Len(t, policy.Groups, 3)
	})

	t.Run("invalid ratio rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("custom_bias_ratio: 1.5\n"), 0o600))

		_, err := LoadScoringPolicy(path)
		assert.Error(t, err)
	})
}
