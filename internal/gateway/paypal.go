package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/plutov/paypal/v4"
	"github.com/rashinkp/byway-sub005/domain"
)

type PayPalGateway struct {
	client    *paypal.Client
	webhookID string
	currency  string
}

func NewPayPalGateway(clientID, secret, apiBase, webhookID, currency string) (*PayPalGateway, error) {
	c, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	return &PayPalGateway{client: c, webhookID: webhookID, currency: currency}, nil
}

func (g *PayPalGateway) Name() domain.Gateway {
	return domain.GatewayPaypal
}

func (g *PayPalGateway) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}

	customID, err := marshalMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	units := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: currency,
				Value:    req.Amount.StringFixed(2),
			},
			CustomID:    customID,
			Description: req.Description,
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.SuccessURL,
		CancelURL: req.CancelURL,
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: paypal create order: %v", ErrGatewayUnavailable, err)
	}

	return &domain.Session{
		ID:          order.ID,
		RedirectURL: approveLink(order.Links),
	}, nil
}

// Capture executes PayPal's second step: the moment funds actually
// move. The result feeds the same settlement path a webhook would.
func (g *PayPalGateway) Capture(ctx context.Context, gatewayOrderID string) (*domain.GatewayEvent, error) {
	resp, err := g.client.CaptureOrder(ctx, gatewayOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: paypal capture order: %v", ErrGatewayUnavailable, err)
	}

	event := &domain.GatewayEvent{
		EventID:    fmt.Sprintf("capture:%s", gatewayOrderID),
		EventType:  "ORDER.CAPTURE",
		Gateway:    domain.GatewayPaypal,
		PaymentRef: gatewayOrderID,
	}
	if resp.Status != "COMPLETED" {
		event.Kind = domain.EventPaymentFailed
		return event, nil
	}
	event.Kind = domain.EventCheckoutCompleted

	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				event.PaymentRef = capture.ID
			}
			if capture.CustomID != "" {
				meta, err := unmarshalMetadata(capture.CustomID)
				if err != nil {
					return nil, err
				}
				event.Metadata = meta
			}
		}
	}

	return event, nil
}

// paypalWebhookBody is the subset of a PayPal webhook delivery the
// settlement flow needs, parsed only after signature verification.
type paypalWebhookBody struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

func (g *PayPalGateway) VerifyWebhook(ctx context.Context, r *http.Request, payload []byte) (*domain.GatewayEvent, error) {
	// the verification call reads the request body; restore it since
	// the handler already drained it
	r.Body = io.NopCloser(bytes.NewReader(payload))
	verify, err := g.client.VerifyWebhookSignature(ctx, r, g.webhookID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, ErrInvalidSignature
	}

	var body paypalWebhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("unmarshal paypal webhook: %w", err)
	}

	event := &domain.GatewayEvent{
		Kind:       classifyPayPalEventType(body.EventType),
		EventID:    body.ID,
		EventType:  body.EventType,
		Gateway:    domain.GatewayPaypal,
		PaymentRef: body.Resource.ID,
	}
	if body.Resource.CustomID != "" {
		meta, err := unmarshalMetadata(body.Resource.CustomID)
		if err != nil {
			return nil, err
		}
		event.Metadata = meta
	}

	return event, nil
}

func classifyPayPalEventType(eventType string) domain.EventKind {
	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		return domain.EventCheckoutCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		return domain.EventPaymentFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		return domain.EventRefunded
	default:
		return domain.EventOther
	}
}

func approveLink(links []paypal.Link) string {
	for _, link := range links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

var _ PaymentGateway = (*PayPalGateway)(nil)
