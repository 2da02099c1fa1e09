package domain

type CheckoutStatus string

const (
	CheckoutStatusIdle            CheckoutStatus = "IDLE"
	CheckoutStatusFormValidation  CheckoutStatus = "FORM_VALIDATION"
	CheckoutStatusPaymentPending  CheckoutStatus = "PAYMENT_PENDING"
	CheckoutStatusOrderSubmission CheckoutStatus = "ORDER_SUBMISSION"
	CheckoutStatusSuccess         CheckoutStatus = "SUCCESS"
	CheckoutStatusFailed          CheckoutStatus = "FAILED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusIdle:            {CheckoutStatusFormValidation},
	CheckoutStatusFormValidation:  {CheckoutStatusIdle, CheckoutStatusPaymentPending, CheckoutStatusFailed},
	CheckoutStatusPaymentPending:  {CheckoutStatusOrderSubmission, CheckoutStatusFailed},
	CheckoutStatusOrderSubmission: {CheckoutStatusSuccess, CheckoutStatusFailed},
	CheckoutStatusSuccess:         {CheckoutStatusFormValidation, CheckoutStatusIdle},
	CheckoutStatusFailed:          {CheckoutStatusFormValidation, CheckoutStatusIdle},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusSuccess || s == CheckoutStatusFailed
}

// InFlight reports whether a gateway call or order submission is outstanding.
func (s CheckoutStatus) InFlight() bool {
	return s == CheckoutStatusPaymentPending || s == CheckoutStatusOrderSubmission
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
