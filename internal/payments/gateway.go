package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// GatewayStatus is the normalised state a gateway reports for a payment.
type GatewayStatus string

const (
	GatewaySucceeded GatewayStatus = "success"
	GatewayFailed    GatewayStatus = "failed"
	GatewayRefunded  GatewayStatus = "refunded"
	GatewayPending   GatewayStatus = "pending"
)

// Resolved reports whether the status is final enough to apply to an order.
func (s GatewayStatus) Resolved() bool {
	switch s {
	case GatewaySucceeded, GatewayFailed, GatewayRefunded:
		return true
	default:
		return false
	}
}

// GatewayPayment is what the reconciliation logic needs from the gateway.
type GatewayPayment struct {
	ID          string
	Status      GatewayStatus
	AmountCents int64
	OrderNumber string
}

// Gateway looks up the current state of a payment.
type Gateway interface {
	Lookup(ctx context.Context, paymentID string) (*GatewayPayment, error)
}

type paymentIntentAPI interface {
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// StripeGateway reads PaymentIntents through the Stripe API.
type StripeGateway struct {
	intents paymentIntentAPI
}

// NewStripeGateway wraps the Stripe client's PaymentIntent service.
func NewStripeGateway(client *stripe.Client) (*StripeGateway, error) {
	if client == nil || client.V1PaymentIntents == nil {
		return nil, errors.New("stripe client required")
	}
	return &StripeGateway{intents: client.V1PaymentIntents}, nil
}

func (g *StripeGateway) Lookup(ctx context.Context, paymentID string) (*GatewayPayment, error) {
	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("latest_charge")
	intent, err := g.intents.Retrieve(ctx, paymentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return fromPaymentIntent(intent), nil
}

func fromPaymentIntent(intent *stripe.PaymentIntent) *GatewayPayment {
	if intent == nil {
		return &GatewayPayment{Status: GatewayPending}
	}

	status := GatewayPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = GatewaySucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = GatewayFailed
	}
	if charge := intent.LatestCharge; charge != nil {
		if charge.Refunded || (charge.Amount > 0 && charge.AmountRefunded >= charge.Amount) {
			status = GatewayRefunded
		}
	}

	amount := intent.AmountReceived
	if amount == 0 && status == GatewaySucceeded {
		amount = intent.Amount
	}

	return &GatewayPayment{
		ID:          intent.ID,
		Status:      status,
		AmountCents: amount,
		OrderNumber: strings.TrimSpace(intent.Metadata["order_number"]),
	}
}
