package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayStateBeforeConfirmation(t *testing.T) {
	for _, state := range []string{PurchasePending, PurchaseProcessing, PurchaseCancelled} {
		p := Purchase{State: state}
		assert.Equal(t, state, p.DisplayState(), "state %s passes through", state)
	}
}

func TestDisplayStateDerivation(t *testing.T) {
	one, two := uint64(10), uint64(11)
	cases := []struct {
		name   string
		buyer  *uint64 // rating OF the buyer, written by the seller
		seller *uint64 // rating OF the seller, written by the buyer
		want   string
	}{
		{"no ratings", nil, nil, PurchaseConfirmed},
		{"buyer rated the seller", nil, &one, PurchaseRatedByBuyer},
		{"seller rated the buyer", &one, nil, PurchaseRatedBySeller},
		{"both rated", &one, &two, PurchaseRatedByBoth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Purchase{State: PurchaseConfirmed, BuyerRatingID: tc.buyer, SellerRatingID: tc.seller}
			assert.Equal(t, tc.want, p.DisplayState())
		})
	}
}

func TestTransitionGuards(t *testing.T) {
	assert.True(t, (&Purchase{State: PurchasePending}).CanProcess())
	assert.True(t, (&Purchase{State: PurchasePending}).CanConfirm())
	assert.True(t, (&Purchase{State: PurchaseProcessing}).CanConfirm())
	assert.True(t, (&Purchase{State: PurchasePending}).CanCancel())

	// Terminal states have no exits; processing cannot be cancelled.
	for _, state := range []string{PurchaseConfirmed, PurchaseCancelled} {
		p := Purchase{State: state}
		assert.False(t, p.CanProcess(), "%s cannot process", state)
		assert.False(t, p.CanConfirm(), "%s cannot confirm", state)
		assert.False(t, p.CanCancel(), "%s cannot cancel", state)
	}
	assert.False(t, (&Purchase{State: PurchaseProcessing}).CanCancel())
}

func TestIsParty(t *testing.T) {
	p := Purchase{BuyerID: 1, SellerID: 2}
	assert.True(t, p.IsParty(1))
	assert.True(t, p.IsParty(2))
	assert.False(t, p.IsParty(3))
}

func TestValidScoreAndDirection(t *testing.T) {
	for s := uint8(1); s <= 5; s++ {
		assert.True(t, ValidScore(s))
	}
	assert.False(t, ValidScore(0))
	assert.False(t, ValidScore(6))

	assert.True(t, ValidDirection(DirectionBuyer))
	assert.True(t, ValidDirection(DirectionSeller))
	assert.False(t, ValidDirection("owner"))
	assert.False(t, ValidDirection(""))
}
