package interfaces

import (
	"context"
	"time"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

// AuditRepository defines the contract for the append-only gateway response log
type AuditRepository interface {
	// Save appends one record and returns its id. Records are never
	// updated or deleted afterwards.
	Save(ctx context.Context, record *models.AuditRecord) (int64, error)

	// ListCreatedSince returns records for the named processors created at
	// or after the cutoff, oldest first.
	ListCreatedSince(ctx context.Context, since time.Time, processorNames []string) ([]models.AuditRecord, error)
}
