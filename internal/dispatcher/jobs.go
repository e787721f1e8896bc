package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/paygrid-payments-engine/internal/domain/business"
	"github.com/paygrid-payments-engine/internal/domain/outbox"
	"github.com/paygrid-payments-engine/internal/domain/provider"
	"github.com/paygrid-payments-engine/internal/domain/transaction"
	"github.com/paygrid-payments-engine/internal/ledger"
)

// LifecycleService is the slice of the ledger the job handlers drive
type LifecycleService interface {
	GetTransaction(ctx context.Context, reference string) (*transaction.Transaction, error)
	CreateSettlement(ctx context.Context, inflowRef, providerName string) (*transaction.Transaction, error)
}

// Jobs owns the deferred job handlers the dispatcher registers on the pool
type Jobs struct {
	ledger      LifecycleService
	businesses  business.Repository
	httpClient  *fasthttp.Client
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewJobs(l LifecycleService, businesses business.Repository, callTimeout time.Duration, logger *slog.Logger) *Jobs {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Jobs{
		ledger:      l,
		businesses:  businesses,
		httpClient:  &fasthttp.Client{},
		callTimeout: callTimeout,
		logger:      logger.With(slog.String("component", "jobs")),
	}
}

// NotifyMerchant delivers a lifecycle webhook to the merchant's endpoint.
// A non-2xx answer is an error so the outbox retry loop redelivers.
func (j *Jobs) NotifyMerchant(ctx context.Context, msg *outbox.Message) error {
	txn, err := j.ledger.GetTransaction(ctx, msg.Reference)
	if err != nil {
		return err
	}

	biz, err := j.businesses.GetByID(ctx, txn.BusinessID)
	if err != nil {
		return err
	}
	if biz.WebhookURL == "" {
		j.logger.Debug("Business has no webhook endpoint, dropping notification",
			slog.String("reference", txn.Reference))
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"event":       "transaction." + string(txn.Status),
		"reference":   txn.Reference,
		"status":      txn.Status,
		"amount":      txn.Amount,
		"fee":         txn.Fee,
		"feature":     txn.Feature,
		"customer":    txn.Customer,
		"occurred_at": txn.UpdatedAt,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(biz.WebhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline := time.Now().Add(j.callTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := j.httpClient.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("webhook delivery to %s failed: %w", biz.WebhookURL, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook delivery to %s answered %d", biz.WebhookURL, code)
	}

	j.logger.Info("Delivered merchant webhook",
		slog.String("reference", txn.Reference),
		slog.String("status", string(txn.Status)))
	return nil
}

// Settle opens the settlement payout for a credited inflow. Replays are
// normal here: an already-settled inflow acks as done.
func (j *Jobs) Settle(ctx context.Context, msg *outbox.Message) error {
	var payload struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("malformed settlement job payload: %w", err)
	}
	if payload.Reference == "" {
		payload.Reference = msg.Reference
	}

	_, err := j.ledger.CreateSettlement(ctx, payload.Reference, provider.NameProvidus)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil
		}
		return err
	}
	return nil
}
