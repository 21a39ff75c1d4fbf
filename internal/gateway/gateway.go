package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/rashinkp/byway-sub005/domain"
)

var (
	ErrInvalidSignature   = errors.New("webhook signature verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway request failed")
)

// PaymentGateway is the uniform contract over hosted-checkout
// providers. Nothing outside this package branches on gateway type.
type PaymentGateway interface {
	Name() domain.Gateway

	// CreateSession creates a hosted-checkout session and returns the
	// redirect URL the client is sent to.
	CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error)

	// VerifyWebhook checks the signature of a raw webhook delivery and
	// normalizes it into a GatewayEvent. The payload must not be
	// trusted before this returns. Verification is delegated to the
	// provider library, never hand-parsed.
	VerifyWebhook(ctx context.Context, r *http.Request, payload []byte) (*domain.GatewayEvent, error)
}
