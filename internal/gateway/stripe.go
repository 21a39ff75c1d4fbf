package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const stripeSignatureHeader = "Stripe-Signature"

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripeGateway(apiKey, webhookSecret, currency string, timeout time.Duration) *StripeGateway {
	config := &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, config),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, config),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, config),
	}
	return &StripeGateway{
		api:           client.New(apiKey, backends),
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

func (g *StripeGateway) Name() domain.Gateway {
	return domain.GatewayStripe
}

func (g *StripeGateway) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(toMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range encodeMetadata(req.Metadata) {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe create checkout session: %v", ErrGatewayUnavailable, err)
	}

	return &domain.Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *StripeGateway) VerifyWebhook(_ context.Context, r *http.Request, payload []byte) (*domain.GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, r.Header.Get(stripeSignatureHeader), g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return g.classifyEvent(event)
}

func (g *StripeGateway) classifyEvent(event stripe.Event) (*domain.GatewayEvent, error) {
	out := &domain.GatewayEvent{
		Kind:      domain.EventOther,
		EventID:   event.ID,
		EventType: string(event.Type),
		Gateway:   domain.GatewayStripe,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		meta, err := decodeMetadata(sess.Metadata)
		if err != nil {
			return nil, err
		}
		out.Metadata = meta
		out.PaymentRef = sess.ID
		if event.Type == "checkout.session.completed" {
			out.Kind = domain.EventCheckoutCompleted
		} else {
			out.Kind = domain.EventPaymentFailed
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("unmarshal payment intent: %w", err)
		}
		out.Kind = domain.EventPaymentFailed
		out.PaymentRef = intent.ID
		// session metadata is not on the intent; settlement falls back
		// to the payment reference
		if meta, err := decodeMetadata(intent.Metadata); err == nil {
			out.Metadata = meta
		}
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("unmarshal charge: %w", err)
		}
		out.Kind = domain.EventRefunded
		if charge.PaymentIntent != nil {
			out.PaymentRef = charge.PaymentIntent.ID
		}
	}

	return out, nil
}

// toMinorUnits converts a decimal amount to the smallest currency unit
// Stripe expects (cents for USD).
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

var _ PaymentGateway = (*StripeGateway)(nil)
