package models

import "time"

// Outcome is the classification of a gateway result code. It is always
// derived from a result code at classification time, never stored on its own.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePending Outcome = "PENDING"
	OutcomeFailure Outcome = "FAILURE"
)

func (o Outcome) String() string {
	return string(o)
}

// ErrorKind labels the internal cause of a failed callback attempt. It is
// recorded on the audit trail and in logs for operator diagnosis; the browser
// only ever sees the generic payment-error redirect.
type ErrorKind string

const (
	ErrKindNone          ErrorKind = ""
	ErrKindTransport     ErrorKind = "TransportError"
	ErrKindMalformed     ErrorKind = "MalformedResponse"
	ErrKindAuthorization ErrorKind = "AuthorizationMismatch"
	ErrKindTokenDecode   ErrorKind = "TokenDecodeError"
	ErrKindFinalization  ErrorKind = "FinalizationError"
	ErrKindNotFound      ErrorKind = "NotFound"
)

// UserSnapshot captures the identity fields recorded alongside a processor
// response: enough to answer "who was charged" during manual review.
type UserSnapshot struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u UserSnapshot) IsZero() bool {
	return u == UserSnapshot{}
}

// AuditRecord is one immutable processor-response entry. Retried callbacks
// append new records; nothing ever updates an existing one.
type AuditRecord struct {
	ID            int64
	ProcessorName string
	TransactionID string
	BasketID      *int64
	Response      map[string]any
	// Outcome is the classified outcome name. It is empty for forensic
	// writes of raw callback parameters, which carry no classification.
	Outcome     string
	ErrorKind   ErrorKind
	RequestUser UserSnapshot
	BasketOwner UserSnapshot
	CreatedAt   time.Time
}

// Basket statuses mirrored from the storefront.
const (
	BasketStatusOpen      = "Open"
	BasketStatusSubmitted = "Submitted"
)

// Basket is the storefront basket a payment settles against. The callback
// flow only ever reads it by id and hands it to order finalization.
type Basket struct {
	ID            int64
	OwnerID       int64
	OwnerUsername string
	OwnerEmail    string
	Status        string
	// Total is the tax-inclusive amount as a decimal string, exactly as
	// the gateway expects it.
	Total string
}

// Owner returns the basket owner as a snapshot for audit records.
func (b *Basket) Owner() UserSnapshot {
	if b == nil {
		return UserSnapshot{}
	}
	return UserSnapshot{ID: b.OwnerID, Username: b.OwnerUsername, Email: b.OwnerEmail}
}

// Order is the terminal, irreversible result of a successful callback.
// At most one exists per basket.
type Order struct {
	ID            int64
	BasketID      int64
	OrderNumber   string
	Total         string
	Currency      string
	TransactionID string
	CardSummary   string
	PaymentBrand  string
	CreatedAt     time.Time
}
