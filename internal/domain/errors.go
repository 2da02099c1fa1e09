package domain

import "errors"

// ErrOrderRejected marks a backend refusal of an order payload. Retrying the
// same payload cannot succeed.
var ErrOrderRejected = errors.New("order rejected by backend")
