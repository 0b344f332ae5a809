package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/nelc/ecommerce-hyperpay/internal/models"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payment_processor_responses (
			id BIGSERIAL PRIMARY KEY,
			processor_name VARCHAR(64) NOT NULL,
			transaction_id VARCHAR(255),
			basket_id BIGINT,
			response JSONB NOT NULL,
			outcome VARCHAR(16),
			error_kind VARCHAR(32),
			request_user JSONB,
			basket_owner JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_processor_created ON payment_processor_responses(processor_name, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_transaction ON payment_processor_responses(transaction_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *AuditRepository) Save(ctx context.Context, record *models.AuditRecord) (int64, error) {
	response, err := json.Marshal(record.Response)
	if err != nil {
		return 0, err
	}
	requestUser, err := marshalUser(record.RequestUser)
	if err != nil {
		return 0, err
	}
	basketOwner, err := marshalUser(record.BasketOwner)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO payment_processor_responses
			(processor_name, transaction_id, basket_id, response, outcome, error_kind, request_user, basket_owner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, record.ProcessorName, nullString(record.TransactionID), nullBasketID(record.BasketID),
		response, nullString(record.Outcome), nullString(string(record.ErrorKind)),
		requestUser, basketOwner).Scan(&id, &record.CreatedAt)
	if err != nil {
		return 0, err
	}
	record.ID = id
	return id, nil
}

func (r *AuditRepository) ListCreatedSince(ctx context.Context, since time.Time, processorNames []string) ([]models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, processor_name, transaction_id, basket_id, response, outcome, error_kind, request_user, basket_owner, created_at
		FROM payment_processor_responses
		WHERE processor_name = ANY($1) AND created_at >= $2
		ORDER BY created_at, id
	`, pq.Array(processorNames), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var transactionID, outcome, errorKind sql.NullString
		var basketID sql.NullInt64
		var response, requestUser, basketOwner []byte
		if err := rows.Scan(&rec.ID, &rec.ProcessorName, &transactionID, &basketID,
			&response, &outcome, &errorKind, &requestUser, &basketOwner, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.TransactionID = transactionID.String
		rec.Outcome = outcome.String
		rec.ErrorKind = models.ErrorKind(errorKind.String)
		if basketID.Valid {
			id := basketID.Int64
			rec.BasketID = &id
		}
		if len(response) > 0 {
			if err := json.Unmarshal(response, &rec.Response); err != nil {
				return nil, err
			}
		}
		if len(requestUser) > 0 {
			if err := json.Unmarshal(requestUser, &rec.RequestUser); err != nil {
				return nil, err
			}
		}
		if len(basketOwner) > 0 {
			if err := json.Unmarshal(basketOwner, &rec.BasketOwner); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func marshalUser(u models.UserSnapshot) ([]byte, error) {
	if u.IsZero() {
		return nil, nil
	}
	return json.Marshal(u)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBasketID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
