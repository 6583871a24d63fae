// Package payments opens Stripe payment intents for submitted bookings.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

var ErrIntentFailed = errors.New("PAYMENT_INTENT_FAILED")

type intentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

// StripeGateway creates one payment intent per order. The order's idempotency
// key is forwarded so a retried submission reuses the same intent.
type StripeGateway struct {
	intents intentCreator
	logger  logger.Logger
}

func NewStripeGateway(secretKey string, log logger.Logger) *StripeGateway {
	sc := stripe.NewClient(secretKey)
	return newGateway(sc.V1PaymentIntents, log)
}

func newGateway(intents intentCreator, log logger.Logger) *StripeGateway {
	return &StripeGateway{
		intents: intents,
		logger:  log.WithFields(map[string]interface{}{"component": "stripe"}),
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, order *models.Order) (string, error) {
	if order.TotalAmount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive, got %d", ErrIntentFailed, order.TotalAmount)
	}

	params := &stripe.PaymentIntentCreateParams{
		Params: stripe.Params{
			IdempotencyKey: stripe.String("booking-" + order.IdempotencyKey),
		},
		Amount:       stripe.Int64(order.TotalAmount),
		Currency:     stripe.String(strings.ToLower(order.Currency)),
		Description:  stripe.String(fmt.Sprintf("%s visa assistance", order.Plan.Name)),
		ReceiptEmail: stripe.String(order.Contact.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"orderId":   order.ID,
			"sessionId": order.SessionID,
			"planId":    order.Plan.ID,
		},
	}

	pi, err := g.intents.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntentFailed, err)
	}

	g.logger.Info("payment intent created", map[string]interface{}{
		"orderId":  order.ID,
		"intentId": pi.ID,
		"status":   string(pi.Status),
	})
	return pi.ID, nil
}
