// Package report finds payments parked in manual review and mails the
// operations team about them. Manual-review result codes are provisionally
// failed at callback time, so without this sweep nobody would ever look at
// them again.
package report

import (
	"context"
	"time"

	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/status"
)

// Entry is one payment awaiting manual review.
type Entry struct {
	RecordID      int64
	ProcessorName string
	TransactionID string
	OrderNumber   string
	ResultCode    string
	Amount        string
	CreatedAt     time.Time
}

type Scanner struct {
	audits         interfaces.AuditRepository
	processorNames []string
}

func NewScanner(audits interfaces.AuditRepository, processorNames []string) *Scanner {
	return &Scanner{audits: audits, processorNames: processorNames}
}

// Scan returns the manual-review payments recorded at or after the cutoff.
func (s *Scanner) Scan(ctx context.Context, since time.Time) ([]Entry, error) {
	records, err := s.audits.ListCreatedSince(ctx, since, s.processorNames)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, record := range records {
		code := resultCodeOf(record.Response)
		if code == "" || !status.MatchesManualReview(code) {
			continue
		}
		entries = append(entries, Entry{
			RecordID:      record.ID,
			ProcessorName: record.ProcessorName,
			TransactionID: record.TransactionID,
			OrderNumber:   stringField(record.Response, "merchantMemo"),
			ResultCode:    code,
			Amount:        stringField(record.Response, "amount"),
			CreatedAt:     record.CreatedAt,
		})
	}
	return entries, nil
}

func resultCodeOf(response map[string]any) string {
	result, ok := response["result"].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(result, "code")
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
