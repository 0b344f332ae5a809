package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(true)

	tests := []struct {
		code    string
		outcome models.Outcome
		family  Family
	}{
		// Plain successes.
		{"000.000.000", models.OutcomeSuccess, FamilySuccess},
		{"000.000.100", models.OutcomeSuccess, FamilySuccess},
		{"000.100.110", models.OutcomeSuccess, FamilySuccess},
		{"000.100.112", models.OutcomeSuccess, FamilySuccess},
		{"000.300.000", models.OutcomeSuccess, FamilySuccess},
		{"000.600.000", models.OutcomeSuccess, FamilySuccess},

		// Successful per the gateway but flagged for manual review;
		// provisionally refused.
		{"000.400.000", models.OutcomeFailure, FamilyManualReview},
		{"000.400.010", models.OutcomeFailure, FamilyManualReview},
		{"000.400.020", models.OutcomeFailure, FamilyManualReview},
		{"000.400.040", models.OutcomeFailure, FamilyManualReview},
		{"000.400.050", models.OutcomeFailure, FamilyManualReview},
		{"000.400.060", models.OutcomeFailure, FamilyManualReview},
		{"000.400.100", models.OutcomeFailure, FamilyManualReview},
		{"000.400.110", models.OutcomeFailure, FamilyManualReview},

		// Pending, expected to change soon.
		{"000.200.000", models.OutcomePending, FamilyPendingChangeable},
		{"000.200.100", models.OutcomePending, FamilyPendingChangeable},

		// Pending but not changeable for days: not worth polling.
		{"800.400.500", models.OutcomeFailure, FamilyPendingSlow},
		{"800.400.501", models.OutcomeFailure, FamilyPendingSlow},
		{"100.400.500", models.OutcomeFailure, FamilyPendingSlow},

		// Rejections and anything unrecognized.
		{"800.100.151", models.OutcomeFailure, FamilyRejected},
		{"100.396.101", models.OutcomeFailure, FamilyRejected},
		{"000.400.030", models.OutcomeFailure, FamilyRejected},
		{"", models.OutcomeFailure, FamilyRejected},
		{"garbage", models.OutcomeFailure, FamilyRejected},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			outcome, family := c.Classify(tt.code)
			assert.Equal(t, tt.outcome, outcome)
			assert.Equal(t, tt.family, family)
		})
	}
}

// Manual-review codes must classify as failures while the override policy is
// on, no matter how success-like the gateway considers them.
func TestClassifier_ManualReviewNeverSuccess(t *testing.T) {
	c := NewClassifier(true)
	for _, code := range []string{
		"000.400.000", "000.400.010", "000.400.020", "000.400.040",
		"000.400.050", "000.400.060", "000.400.070", "000.400.080",
		"000.400.090", "000.400.100", "000.400.110",
	} {
		outcome, family := c.Classify(code)
		assert.Equal(t, models.OutcomeFailure, outcome, "code %s", code)
		assert.Equal(t, FamilyManualReview, family, "code %s", code)
	}
}

func TestClassifier_ManualReviewPolicyOff(t *testing.T) {
	c := NewClassifier(false)
	outcome, family := c.Classify("000.400.000")
	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.Equal(t, FamilyManualReview, family)
}

func TestMatchesManualReview(t *testing.T) {
	assert.True(t, MatchesManualReview("000.400.000"))
	assert.True(t, MatchesManualReview("000.400.110"))
	assert.False(t, MatchesManualReview("000.000.000"))
	assert.False(t, MatchesManualReview("000.400.030"))
	assert.False(t, MatchesManualReview("800.400.500"))
}
