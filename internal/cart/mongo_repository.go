package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// cartDoc is the stored shape: one document per user. Prices are kept
// as decimal strings; bson has no native decimal mapping for
// shopspring values.
type cartDoc struct {
	UserID string        `bson:"user_id"`
	Items  []cartItemDoc `bson:"items"`
}

type cartItemDoc struct {
	CourseID    string  `bson:"course_id"`
	CourseTitle string  `bson:"course_title"`
	Price       string  `bson:"price"`
	Offer       *string `bson:"offer,omitempty"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Source {
	return &mongoRepository{collection: db.Collection("carts")}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) ([]domain.CartSnapshotItem, error) {
	var doc cartDoc

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items := make([]domain.CartSnapshotItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		snapshot, err := item.toSnapshotItem()
		if err != nil {
			return nil, err
		}
		items = append(items, snapshot)
	}
	return items, nil
}

func (m *mongoRepository) Clear(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}
	if _, err := m.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (d cartItemDoc) toSnapshotItem() (domain.CartSnapshotItem, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.CartSnapshotItem{}, fmt.Errorf("parse cart item price for %s: %w", d.CourseID, err)
	}
	item := domain.CartSnapshotItem{
		CourseID:    d.CourseID,
		CourseTitle: d.CourseTitle,
		Price:       price,
	}
	if d.Offer != nil {
		offer, err := decimal.NewFromString(*d.Offer)
		if err != nil {
			return domain.CartSnapshotItem{}, fmt.Errorf("parse cart item offer for %s: %w", d.CourseID, err)
		}
		item.Offer = &offer
	}
	return item, nil
}
