package payments

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

// WebhookEvent is a verified gateway callback reduced to what reconciliation needs.
type WebhookEvent struct {
	ID          string
	Type        string
	PaymentID   string
	OrderNumber string
	Status      GatewayStatus
	AmountCents int64
}

type webhookBody struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentID   string `json:"payment_id"`
		OrderNumber string `json:"order_number"`
		AmountCents int64  `json:"amount_cents"`
		Status      string `json:"status"`
	} `json:"data"`
}

var webhookTypes = map[string]GatewayStatus{
	"payment.succeeded": GatewaySucceeded,
	"payment.failed":    GatewayFailed,
	"payment.refunded":  GatewayRefunded,
	"payment.pending":   GatewayPending,
}

// ParseWebhookEvent decodes a webhook body. Call it only after the signature
// has been verified.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var raw webhookBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return WebhookEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	event := WebhookEvent{
		ID:          strings.TrimSpace(raw.ID),
		Type:        strings.TrimSpace(raw.Type),
		PaymentID:   strings.TrimSpace(raw.Data.PaymentID),
		OrderNumber: strings.TrimSpace(raw.Data.OrderNumber),
		AmountCents: raw.Data.AmountCents,
	}
	status, ok := webhookTypes[event.Type]
	if !ok && raw.Data.Status != "" {
		status, ok = statusFromString(raw.Data.Status)
	}
	if !ok {
		return WebhookEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported webhook event type").
			WithDetails(map[string]any{"type": event.Type})
	}
	event.Status = status
	return event, event.validate()
}

func statusFromString(value string) (GatewayStatus, bool) {
	switch GatewayStatus(strings.ToLower(strings.TrimSpace(value))) {
	case GatewaySucceeded:
		return GatewaySucceeded, true
	case GatewayFailed:
		return GatewayFailed, true
	case GatewayRefunded:
		return GatewayRefunded, true
	case GatewayPending:
		return GatewayPending, true
	}
	return "", false
}

func (e WebhookEvent) validate() error {
	if e.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id is required")
	}
	if e.PaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payment id is required")
	}
	if e.AmountCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook amount must be non-negative")
	}
	return nil
}
