package cart

import (
	"context"
	"errors"

	"github.com/rashinkp/byway-sub005/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// Source supplies the cart rows a checkout snapshot is built from and
// clears them once the order is placed.
type Source interface {
	GetCart(ctx context.Context, userID string) ([]domain.CartSnapshotItem, error)
	Clear(ctx context.Context, userID string) error
}
