// Package status classifies HyperPay result codes into payment outcomes.
//
// The result codes are documented at
// https://hyperpay.docs.oppwa.com/reference/resultCodes. Codes are opaque
// vendor strings of the form NNN.NNN.NNN; the only meaning we assign to them
// is membership in one of four pattern families.
package status

import (
	"regexp"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// Family is the pattern family a result code matched. The resolver keys its
// log severity and message off the family, not just the outcome.
type Family string

const (
	FamilySuccess           Family = "success"
	FamilyManualReview      Family = "manual_review"
	FamilyPendingChangeable Family = "pending_changeable"
	FamilyPendingSlow       Family = "pending_not_changeable_soon"
	FamilyRejected          Family = "rejected"
)

var (
	successCodes           = regexp.MustCompile(`^(000\.000\.|000\.100\.1|000\.[36])`)
	manualReviewCodes      = regexp.MustCompile(`^(000\.400\.0[^3]|000\.400\.[0-1]{2}0)`)
	pendingChangeableCodes = regexp.MustCompile(`^(000\.200)`)
	pendingSlowCodes       = regexp.MustCompile(`^(800\.400\.5|100\.400\.500)`)
)

// MatchesManualReview reports whether a result code belongs to the family the
// gateway documents as "successfully processed transactions that should be
// manually reviewed". The batch report command scans the audit trail with it.
func MatchesManualReview(code string) bool {
	return manualReviewCodes.MatchString(code)
}

// Classifier maps result codes to outcomes. It is pure and total: every
// input yields exactly one outcome, unmatched codes are failures.
type Classifier struct {
	manualReviewOutcome models.Outcome
}

// NewClassifier builds a classifier. manualReviewAsFailure keeps the
// provisional business policy of refusing manual-review codes even though the
// gateway itself reports them as successful; turning it off restores the
// gateway's classification.
func NewClassifier(manualReviewAsFailure bool) *Classifier {
	outcome := models.OutcomeFailure
	if !manualReviewAsFailure {
		outcome = models.OutcomeSuccess
	}
	return &Classifier{manualReviewOutcome: outcome}
}

// Classify returns the outcome for a result code together with the family
// that matched. Unmatched codes are rejected failures.
func (c *Classifier) Classify(code string) (models.Outcome, Family) {
	switch {
	case manualReviewCodes.MatchString(code):
		return c.manualReviewOutcome, FamilyManualReview
	case pendingChangeableCodes.MatchString(code):
		return models.OutcomePending, FamilyPendingChangeable
	case pendingSlowCodes.MatchString(code):
		// These stay pending for days on the gateway side; polling a
		// browser session that long is pointless.
		return models.OutcomeFailure, FamilyPendingSlow
	case successCodes.MatchString(code):
		return models.OutcomeSuccess, FamilySuccess
	default:
		return models.OutcomeFailure, FamilyRejected
	}
}
