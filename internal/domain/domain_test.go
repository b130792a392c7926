package domain

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeLines_SumsDuplicatesKeepingOrder(t *testing.T) {
	got := MergeLines([]LineItem{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 3},
	})
	assert.Equal(t, []LineItem{{ProductID: "b", Quantity: 4}, {ProductID: "a", Quantity: 2}}, got)
}

func TestValidateLines(t *testing.T) {
	assert.NoError(t, ValidateLines([]LineItem{{ProductID: "a", Quantity: 1}}))
	assert.ErrorIs(t, ValidateLines([]LineItem{{ProductID: "a", Quantity: 0}}), ErrInvalidQuantity)
	assert.ErrorIs(t, ValidateLines([]LineItem{{Quantity: 1}}), ErrInvalidInput)
}

func TestProductPatch_Apply(t *testing.T) {
	title := "Lamp"
	stock := 0
	p := Product{Title: "Old", Stock: 5, PriceCents: 100}
	patch := ProductPatch{Title: &title, Stock: &stock}
	assert.False(t, patch.Empty())
	patch.Apply(&p)
	assert.Equal(t, "Lamp", p.Title)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, int64(100), p.PriceCents)
	assert.True(t, ProductPatch{}.Empty())
}

func TestStoreFailure_KeepsBothErrors(t *testing.T) {
	err := StoreFailure("cart get", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Nil(t, StoreFailure("noop", nil))
}
