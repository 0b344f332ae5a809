// Package service drives the payment flow: checkout creation, callback
// resolution and order finalization.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/config"
	"github.com/nelc/ecommerce-hyperpay/internal/gateway"
	"github.com/nelc/ecommerce-hyperpay/internal/interfaces"
	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/status"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
	"github.com/nelc/ecommerce-hyperpay/internal/token"
)

var (
	ErrUnknownProcessor = errors.New("unknown payment processor")
	ErrNotBasketOwner   = errors.New("requester does not own the basket")
	ErrBasketNotOpen    = errors.New("basket is not open for payment")
)

// processorRuntime bundles everything one configured HyperPay entity needs
// at request time.
type processorRuntime struct {
	name       string
	cfg        config.Processor
	gateway    interfaces.Gateway
	codec      *token.Codec
	classifier *status.Classifier
}

type Orchestrator struct {
	processors map[string]*processorRuntime
	audits     interfaces.AuditRepository
	baskets    interfaces.BasketRepository
	sessions   interfaces.SessionStore
	publisher  interfaces.OutcomePublisher

	orderPrefix string
	orderOffset int64
}

func NewOrchestrator(
	cfg *config.Config,
	audits interfaces.AuditRepository,
	baskets interfaces.BasketRepository,
	sessions interfaces.SessionStore,
	publisher interfaces.OutcomePublisher,
) (*Orchestrator, error) {
	o := &Orchestrator{
		processors:  make(map[string]*processorRuntime),
		audits:      audits,
		baskets:     baskets,
		sessions:    sessions,
		publisher:   publisher,
		orderPrefix: cfg.OrderNumberPrefix,
		orderOffset: cfg.OrderNumberOffset,
	}

	for name, pc := range cfg.Processors {
		codec, err := token.NewCodec(pc.EncryptionKey, pc.Salt)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", name, err)
		}
		o.processors[name] = &processorRuntime{
			name:       name,
			cfg:        pc,
			gateway:    gateway.NewClient(pc.BaseAPIURL, pc.EntityID, pc.AccessToken, pc.TestMode),
			codec:      codec,
			classifier: status.NewClassifier(!pc.AcceptManualReview),
		}
	}

	return o, nil
}

// HasProcessor reports whether a processor variant is configured.
func (o *Orchestrator) HasProcessor(name string) bool {
	_, ok := o.processors[name]
	return ok
}

func (o *Orchestrator) runtime(name string) (*processorRuntime, error) {
	rt, ok := o.processors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	return rt, nil
}

// audit appends a processor response record. Failures are logged and
// reported so the success path can refuse to finalize without a trail.
func (o *Orchestrator) audit(ctx context.Context, record *models.AuditRecord) (int64, error) {
	id, err := o.audits.Save(ctx, record)
	if err != nil {
		telemetry.Logger.Error("Failed to record processor response",
			zap.String("processor", record.ProcessorName),
			zap.String("transaction_id", record.TransactionID),
			zap.Error(err),
		)
		return 0, err
	}
	return id, nil
}

// publishOutcome emits the outcome event, best effort. A broker outage must
// not turn a resolved payment into an error page.
func (o *Orchestrator) publishOutcome(ctx context.Context, event models.OutcomeEvent) {
	if o.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := o.publisher.PublishOutcome(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish outcome event",
			zap.String("processor", event.Processor),
			zap.String("transaction_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) orderNumber(basketID int64) string {
	return models.OrderNumber(o.orderPrefix, o.orderOffset, basketID)
}

// queryToMap flattens callback query parameters for forensic audit records.
func queryToMap(q url.Values) map[string]any {
	m := make(map[string]any, len(q))
	for key, values := range q {
		if len(values) == 1 {
			m[key] = values[0]
			continue
		}
		m[key] = values
	}
	return m
}
