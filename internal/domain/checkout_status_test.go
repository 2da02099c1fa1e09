package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutStatus
		want     bool
	}{
		{CheckoutStatusIdle, CheckoutStatusFormValidation, true},
		{CheckoutStatusIdle, CheckoutStatusPaymentPending, false},
		{CheckoutStatusFormValidation, CheckoutStatusPaymentPending, true},
		{CheckoutStatusFormValidation, CheckoutStatusIdle, true},
		{CheckoutStatusPaymentPending, CheckoutStatusOrderSubmission, true},
		{CheckoutStatusPaymentPending, CheckoutStatusFormValidation, false},
		{CheckoutStatusOrderSubmission, CheckoutStatusSuccess, true},
		{CheckoutStatusOrderSubmission, CheckoutStatusPaymentPending, false},
		{CheckoutStatusFailed, CheckoutStatusFormValidation, true},
		{CheckoutStatusSuccess, CheckoutStatusFormValidation, true},
		{CheckoutStatusSuccess, CheckoutStatusOrderSubmission, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestCheckoutStatus_Flags(t *testing.T) {
	assert.True(t, CheckoutStatusSuccess.IsTerminal())
	assert.True(t, CheckoutStatusFailed.IsTerminal())
	assert.False(t, CheckoutStatusPaymentPending.IsTerminal())
	assert.True(t, CheckoutStatusPaymentPending.InFlight())
	assert.True(t, CheckoutStatusOrderSubmission.InFlight())
	assert.False(t, CheckoutStatusIdle.InFlight())
}
