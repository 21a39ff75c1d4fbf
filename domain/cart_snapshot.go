package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartSnapshotItem struct {
	CourseID    string           `json:"course_id"`
	CourseTitle string           `json:"course_title"`
	Price       decimal.Decimal  `json:"price"`
	Offer       *decimal.Decimal `json:"offer,omitempty"`
}

// EffectivePrice is the offer price when one is set, otherwise the
// list price. Prices captured in the snapshot are what gets charged,
// even if the course price changes before payment confirms.
func (i CartSnapshotItem) EffectivePrice() decimal.Decimal {
	if i.Offer != nil {
		return *i.Offer
	}
	return i.Price
}

// CartSnapshot represents the full cart state at checkout time.
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	Currency   string             `json:"currency"`
	CapturedAt time.Time          `json:"captured_at"`
}
