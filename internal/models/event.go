package models

import "time"

// OutcomeEvent is published to Kafka after every resolved callback so
// downstream consumers (fulfillment, finance) can react without polling.
type OutcomeEvent struct {
	Processor     string    `json:"processor"`
	TransactionID string    `json:"transaction_id,omitempty"`
	BasketID      int64     `json:"basket_id,omitempty"`
	OrderNumber   string    `json:"order_number,omitempty"`
	ResultCode    string    `json:"result_code,omitempty"`
	Outcome       Outcome   `json:"outcome,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
