// internal/models/purchase_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderStatusCreated.Terminal())
	assert.False(t, OrderStatusSent.Terminal())
	assert.False(t, OrderStatusConfirmed.Terminal())
	assert.True(t, OrderStatusClaimed.Terminal())
	assert.True(t, OrderStatusFailed.Terminal())
	assert.True(t, OrderStatusUnconfirmed.Terminal())
}

func TestOrderStatusForwardOnly(t *testing.T) {
	assert.True(t, OrderStatusCreated.CanTransition(OrderStatusSent))
	assert.True(t, OrderStatusCreated.CanTransition(OrderStatusConfirmed))
	assert.True(t, OrderStatusSent.CanTransition(OrderStatusConfirmed))
	assert.True(t, OrderStatusConfirmed.CanTransition(OrderStatusClaimed))

	// No regressions on the success path.
	assert.False(t, OrderStatusSent.CanTransition(OrderStatusCreated))
	assert.False(t, OrderStatusConfirmed.CanTransition(OrderStatusSent))
	assert.False(t, OrderStatusConfirmed.CanTransition(OrderStatusConfirmed))
}

func TestOrderStatusTerminalStatesAreFinal(t *testing.T) {
	terminals := []OrderStatus{OrderStatusClaimed, OrderStatusFailed, OrderStatusUnconfirmed}
	all := []OrderStatus{
		OrderStatusCreated, OrderStatusSent, OrderStatusConfirmed,
		OrderStatusClaimed, OrderStatusFailed, OrderStatusUnconfirmed,
	}

	for _, from := range terminals {
		for _, to := range all {
			assert.False(t, from.CanTransition(to), "%s -> %s should be rejected", from, to)
		}
	}
}

func TestOrderStatusFailureReachableFromAnyActiveState(t *testing.T) {
	active := []OrderStatus{OrderStatusCreated, OrderStatusSent, OrderStatusConfirmed}
	for _, from := range active {
		assert.True(t, from.CanTransition(OrderStatusFailed), "%s -> Failed", from)
		assert.True(t, from.CanTransition(OrderStatusUnconfirmed), "%s -> Unconfirmed", from)
	}
}

func TestOrderStatusRank(t *testing.T) {
	assert.Equal(t, 0, OrderStatusCreated.Rank())
	assert.Equal(t, 1, OrderStatusSent.Rank())
	assert.Equal(t, 2, OrderStatusConfirmed.Rank())
	assert.Equal(t, 3, OrderStatusClaimed.Rank())
	assert.Equal(t, -1, OrderStatusFailed.Rank())
	assert.Equal(t, -1, OrderStatusUnconfirmed.Rank())
}

func TestLicenseTierValid(t *testing.T) {
	assert.True(t, LicenseTierBasic.Valid())
	assert.True(t, LicenseTierCommercial.Valid())
	assert.True(t, LicenseTierExclusive.Valid())
	assert.False(t, LicenseTier("PREMIUM").Valid())
	assert.False(t, LicenseTier("").Valid())
}
