package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSnapshotItem(t *testing.T) {
	offer := "40"
	doc := cartItemDoc{
		CourseID:    "c1",
		CourseTitle: "Intro to Go",
		Price:       "50",
		Offer:       &offer,
	}

	item, err := doc.toSnapshotItem()
	require.NoError(t, err)
	assert.Equal(t, "c1", item.CourseID)
	assert.Equal(t, "Intro to Go", item.CourseTitle)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, item.Offer)
	assert.True(t, item.Offer.Equal(decimal.NewFromInt(40)))
	assert.True(t, item.EffectivePrice().Equal(decimal.NewFromInt(40)))
}

func TestToSnapshotItem_NoOffer(t *testing.T) {
	doc := cartItemDoc{CourseID: "c2", Price: "19.99"}

	item, err := doc.toSnapshotItem()
	require.NoError(t, err)
	assert.Nil(t, item.Offer)
	assert.True(t, item.EffectivePrice().Equal(decimal.RequireFromString("19.99")))
}

func TestToSnapshotItem_BadPrice(t *testing.T) {
	doc := cartItemDoc{CourseID: "c3", Price: "free"}

	_, err := doc.toSnapshotItem()
	assert.Error(t, err)
}
