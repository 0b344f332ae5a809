package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/gateway"
	"github.com/nelc/ecommerce-hyperpay/internal/models"
	"github.com/nelc/ecommerce-hyperpay/internal/repository"
	"github.com/nelc/ecommerce-hyperpay/internal/status"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

// SubmitCallback resolves the gateway return redirect: the first visit after
// the payer leaves the HyperPay widget. The resource path to poll arrives in
// the query string.
func (o *Orchestrator) SubmitCallback(ctx context.Context, req models.CallbackRequest) *models.Resolution {
	rt, err := o.runtime(req.Processor)
	if err != nil {
		telemetry.Logger.Error("Callback for unconfigured processor", zap.String("processor", req.Processor))
		return o.conclude(ctx, req.Processor, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindNotFound,
		}, nil)
	}

	// The raw return parameters go on record before anything is resolved.
	// Forensic writes carry no classification.
	o.audit(ctx, &models.AuditRecord{
		ProcessorName: rt.name,
		TransactionID: req.Query.Get("id"),
		Response:      queryToMap(req.Query),
		RequestUser:   req.User,
	})

	if req.ResourcePath == "" {
		telemetry.Logger.Error("Callback carries no resource path",
			zap.String("processor", rt.name),
			zap.Int64("user_id", req.User.ID),
		)
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindMalformed,
		}, nil)
	}

	return o.resolve(ctx, rt, req, true)
}

// StatusCheck resolves the tokenized re-check URL the pending flow redirects
// to. The opaque token is the only thing the browser ever holds.
func (o *Orchestrator) StatusCheck(ctx context.Context, req models.CallbackRequest, encodedToken string) *models.Resolution {
	rt, err := o.runtime(req.Processor)
	if err != nil {
		telemetry.Logger.Error("Status check for unconfigured processor", zap.String("processor", req.Processor))
		return o.conclude(ctx, req.Processor, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindNotFound,
		}, nil)
	}

	resourcePath, err := rt.codec.Decode(encodedToken)
	if err != nil {
		// Nothing in a forged or corrupted token is trustworthy enough
		// to audit.
		telemetry.Logger.Warn("Status check token rejected",
			zap.String("processor", rt.name),
			zap.Int64("user_id", req.User.ID),
			zap.Error(err),
		)
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindTokenDecode,
		}, nil)
	}
	req.ResourcePath = resourcePath

	if req.SessionID != "" {
		skip, err := o.sessions.ConsumeSkipStatusCheck(ctx, req.SessionID)
		if err != nil {
			telemetry.Logger.Warn("Failed to read skip-status-check flag",
				zap.String("processor", rt.name),
				zap.Error(err),
			)
		}
		if skip {
			// The submit callback already polled moments ago. Render
			// the pending page straight away and let the refresh do
			// the next real check. The skipped poll still leaves a
			// record.
			o.audit(ctx, &models.AuditRecord{
				ProcessorName: rt.name,
				Response:      map[string]any{},
				Outcome:       models.OutcomePending.String(),
				RequestUser:   req.User,
			})
			return o.conclude(ctx, rt.name, &models.Resolution{
				Kind:                models.DispositionPendingPage,
				PollIntervalSeconds: rt.cfg.PendingStatusPollingInterval,
				Outcome:             models.OutcomePending,
			}, nil)
		}
	}

	return o.resolve(ctx, rt, req, false)
}

// basketRef is the basket linkage recovered from a status reply's merchant
// memo. Pending and failed attempts are audited with it best effort; the
// success path requires it.
type basketRef struct {
	id     *int64
	basket *models.Basket
	err    error
}

func (r basketRef) eventID() int64 {
	if r.id == nil {
		return 0
	}
	return *r.id
}

func (o *Orchestrator) resolveBasket(ctx context.Context, memo string) basketRef {
	if memo == "" {
		return basketRef{err: errors.New("status reply carries no merchant memo")}
	}
	id, err := models.BasketIDFromOrderNumber(o.orderPrefix, o.orderOffset, memo)
	if err != nil {
		return basketRef{err: err}
	}
	basket, err := o.baskets.GetByID(ctx, id)
	if err != nil {
		return basketRef{id: &id, err: err}
	}
	return basketRef{id: &id, basket: basket}
}

// resolve polls the gateway and walks the outcome to a disposition. firstHop
// distinguishes the submit callback, where a pending payment redirects to the
// tokenized status URL, from a status re-check, where it renders the pending
// page.
func (o *Orchestrator) resolve(ctx context.Context, rt *processorRuntime, req models.CallbackRequest, firstHop bool) *models.Resolution {
	statusResp, err := rt.gateway.PaymentStatus(ctx, req.ResourcePath)
	if err != nil {
		kind := models.ErrKindMalformed
		var transportErr *gateway.TransportError
		if errors.As(err, &transportErr) {
			kind = models.ErrKindTransport
		}
		telemetry.Logger.Error("Payment status fetch failed",
			zap.String("processor", rt.name),
			zap.String("resource_path", req.ResourcePath),
			zap.Error(err),
		)

		response := queryToMap(req.Query)
		transactionID := ""
		if statusResp != nil && statusResp.Raw != nil {
			response = statusResp.Raw
			transactionID = statusResp.ID()
		}
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: transactionID,
			Response:      response,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     kind,
			RequestUser:   req.User,
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: kind,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: transactionID,
			Outcome:       models.OutcomeFailure,
			ErrorKind:     kind,
		})
	}

	code, ok := statusResp.ResultCode()
	if !ok {
		telemetry.Logger.Error("Payment status reply missing result code",
			zap.String("processor", rt.name),
			zap.String("resource_path", req.ResourcePath),
		)
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     models.ErrKindMalformed,
			RequestUser:   req.User,
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindMalformed,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			Outcome:       models.OutcomeFailure,
			ErrorKind:     models.ErrKindMalformed,
		})
	}

	outcome, family := rt.classifier.Classify(code)
	ref := o.resolveBasket(ctx, statusResp.MerchantMemo())

	fields := []zap.Field{
		zap.String("processor", rt.name),
		zap.String("result_code", code),
		zap.String("family", string(family)),
		zap.String("transaction_id", statusResp.ID()),
	}
	switch {
	case outcome == models.OutcomeSuccess:
		telemetry.Logger.Info("Payment status is success", fields...)
	case outcome == models.OutcomePending:
		telemetry.Logger.Warn("Payment status is pending", fields...)
	case family == status.FamilyManualReview:
		telemetry.Logger.Error("Payment needs manual review, treating it as failed", fields...)
	case family == status.FamilyPendingSlow:
		telemetry.Logger.Warn("Payment pending but slow to change, treating it as failed", fields...)
	default:
		telemetry.Logger.Error("Payment rejected", fields...)
	}

	switch outcome {
	case models.OutcomePending:
		return o.resolvePending(ctx, rt, req, statusResp, code, ref, firstHop)
	case models.OutcomeSuccess:
		return o.finalize(ctx, rt, req, statusResp, code, ref)
	default:
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.id,
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			RequestUser:   req.User,
			BasketOwner:   ref.basket.Owner(),
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:    models.DispositionErrorRedirect,
			Outcome: models.OutcomeFailure,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.eventID(),
			ResultCode:    code,
			Outcome:       models.OutcomeFailure,
		})
	}
}

func (o *Orchestrator) resolvePending(ctx context.Context, rt *processorRuntime, req models.CallbackRequest, statusResp *gateway.StatusResponse, code string, ref basketRef, firstHop bool) *models.Resolution {
	if !firstHop {
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.id,
			Response:      statusResp.Raw,
			Outcome:       models.OutcomePending.String(),
			RequestUser:   req.User,
			BasketOwner:   ref.basket.Owner(),
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:                models.DispositionPendingPage,
			PollIntervalSeconds: rt.cfg.PendingStatusPollingInterval,
			Outcome:             models.OutcomePending,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.eventID(),
			ResultCode:    code,
			Outcome:       models.OutcomePending,
		})
	}

	encoded, err := rt.codec.Encode(req.ResourcePath)
	if err != nil {
		telemetry.Logger.Error("Failed to mint status check token",
			zap.String("processor", rt.name),
			zap.Error(err),
		)
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.id,
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     models.ErrKindTokenDecode,
			RequestUser:   req.User,
			BasketOwner:   ref.basket.Owner(),
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindTokenDecode,
		}, nil)
	}

	if req.SessionID != "" {
		// The status page the browser is about to land on would
		// otherwise poll again immediately after this poll.
		if err := o.sessions.SetSkipStatusCheck(ctx, req.SessionID); err != nil {
			telemetry.Logger.Warn("Failed to set skip-status-check flag",
				zap.String("processor", rt.name),
				zap.Error(err),
			)
		}
	}

	o.audit(ctx, &models.AuditRecord{
		ProcessorName: rt.name,
		TransactionID: statusResp.ID(),
		BasketID:      ref.id,
		Response:      statusResp.Raw,
		Outcome:       models.OutcomePending.String(),
		RequestUser:   req.User,
		BasketOwner:   ref.basket.Owner(),
	})
	return o.conclude(ctx, rt.name, &models.Resolution{
		Kind:    models.DispositionStatusCheckRedirect,
		Token:   encoded,
		Outcome: models.OutcomePending,
	}, &models.OutcomeEvent{
		Processor:     rt.name,
		TransactionID: statusResp.ID(),
		BasketID:      ref.eventID(),
		ResultCode:    code,
		Outcome:       models.OutcomePending,
	})
}

// finalize runs the success path: verify the basket linkage and ownership,
// record the response, then create the order. The audit write strictly
// precedes finalization; an unrecorded order must never exist.
func (o *Orchestrator) finalize(ctx context.Context, rt *processorRuntime, req models.CallbackRequest, statusResp *gateway.StatusResponse, code string, ref basketRef) *models.Resolution {
	if ref.id == nil {
		telemetry.Logger.Error("Successful payment carries unusable merchant memo",
			zap.String("processor", rt.name),
			zap.String("merchant_memo", statusResp.MerchantMemo()),
			zap.String("transaction_id", statusResp.ID()),
			zap.Error(ref.err),
		)
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     models.ErrKindMalformed,
			RequestUser:   req.User,
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindMalformed,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			ResultCode:    code,
			Outcome:       models.OutcomeFailure,
			ErrorKind:     models.ErrKindMalformed,
		})
	}

	if ref.basket == nil {
		kind := models.ErrKindFinalization
		if errors.Is(ref.err, repository.ErrBasketNotFound) {
			kind = models.ErrKindNotFound
		}
		telemetry.Logger.Error("Basket lookup failed for successful payment",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", *ref.id),
			zap.String("transaction_id", statusResp.ID()),
			zap.Error(ref.err),
		)
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      ref.id,
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     kind,
			RequestUser:   req.User,
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: kind,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      *ref.id,
			ResultCode:    code,
			Outcome:       models.OutcomeFailure,
			ErrorKind:     kind,
		})
	}

	basket := ref.basket
	if req.User.IsZero() || req.User.ID != basket.OwnerID {
		telemetry.Logger.Warn("Callback user does not own the basket",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", basket.ID),
			zap.Int64("request_user_id", req.User.ID),
			zap.String("request_username", req.User.Username),
			zap.Int64("basket_owner_id", basket.OwnerID),
			zap.String("basket_owner", basket.OwnerUsername),
		)
		o.audit(ctx, &models.AuditRecord{
			ProcessorName: rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      &basket.ID,
			Response:      statusResp.Raw,
			Outcome:       models.OutcomeFailure.String(),
			ErrorKind:     models.ErrKindAuthorization,
			RequestUser:   req.User,
			BasketOwner:   basket.Owner(),
		})
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindAuthorization,
		}, &models.OutcomeEvent{
			Processor:     rt.name,
			TransactionID: statusResp.ID(),
			BasketID:      basket.ID,
			ResultCode:    code,
			Outcome:       models.OutcomeFailure,
			ErrorKind:     models.ErrKindAuthorization,
		})
	}

	record := &models.AuditRecord{
		ProcessorName: rt.name,
		TransactionID: statusResp.ID(),
		BasketID:      &basket.ID,
		Response:      statusResp.Raw,
		Outcome:       models.OutcomeSuccess.String(),
		RequestUser:   req.User,
		BasketOwner:   basket.Owner(),
	}
	auditID, err := o.audit(ctx, record)
	if err != nil {
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeFailure,
			ErrorKind: models.ErrKindFinalization,
		}, nil)
	}

	details := models.PaymentDetailsFromResponse(statusResp.Raw)
	if details.Total != "" && details.Total != basket.Total {
		telemetry.Logger.Warn("Charged amount differs from basket total",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", basket.ID),
			zap.String("basket_total", basket.Total),
			zap.String("charged_amount", details.Total),
		)
	}

	order := &models.Order{
		BasketID:      basket.ID,
		OrderNumber:   o.orderNumber(basket.ID),
		Total:         basket.Total,
		Currency:      rt.cfg.Currency,
		TransactionID: statusResp.ID(),
		CardSummary:   details.CardNumber,
		PaymentBrand:  details.CardType,
	}

	stored, err := o.baskets.FinalizeOrder(ctx, order)
	if errors.Is(err, repository.ErrAlreadyFinalized) {
		telemetry.Logger.Info("Basket already finalized, redirecting to receipt",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", basket.ID),
			zap.String("transaction_id", statusResp.ID()),
		)
		number := order.OrderNumber
		if existing, lookupErr := o.baskets.GetOrderByBasketID(ctx, basket.ID); lookupErr == nil {
			number = existing.OrderNumber
		}
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:        models.DispositionReceiptRedirect,
			OrderNumber: number,
			Outcome:     models.OutcomeSuccess,
		}, nil)
	}
	if err != nil {
		telemetry.Logger.Error("Order finalization failed after successful payment",
			zap.String("processor", rt.name),
			zap.Int64("basket_id", basket.ID),
			zap.Int64("audit_record_id", auditID),
			zap.String("order_number", order.OrderNumber),
			zap.String("transaction_id", statusResp.ID()),
			zap.Error(err),
		)
		return o.conclude(ctx, rt.name, &models.Resolution{
			Kind:      models.DispositionErrorRedirect,
			Outcome:   models.OutcomeSuccess,
			ErrorKind: models.ErrKindFinalization,
		}, nil)
	}

	telemetry.Logger.Info("Order finalized",
		zap.String("processor", rt.name),
		zap.String("order_number", stored.OrderNumber),
		zap.Int64("basket_id", basket.ID),
		zap.String("transaction_id", stored.TransactionID),
		zap.String("amount", stored.Total),
	)
	telemetry.CountOrderCreated(rt.name)

	return o.conclude(ctx, rt.name, &models.Resolution{
		Kind:        models.DispositionReceiptRedirect,
		OrderNumber: stored.OrderNumber,
		Outcome:     models.OutcomeSuccess,
	}, &models.OutcomeEvent{
		Processor:     rt.name,
		TransactionID: stored.TransactionID,
		BasketID:      basket.ID,
		OrderNumber:   stored.OrderNumber,
		ResultCode:    code,
		Outcome:       models.OutcomeSuccess,
	})
}

// conclude counts the resolution and, when there is something worth
// announcing, publishes the outcome event.
func (o *Orchestrator) conclude(ctx context.Context, processor string, res *models.Resolution, event *models.OutcomeEvent) *models.Resolution {
	telemetry.CountCallbackOutcome(processor, res.Outcome.String(), string(res.ErrorKind))
	if event != nil {
		o.publishOutcome(ctx, *event)
	}
	return res
}
