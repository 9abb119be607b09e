package domain

import "errors"

var (
	ErrIdentity       = errors.New("no usable signing identity")
	ErrPublish        = errors.New("no relay accepted the event")
	ErrProvider       = errors.New("job failed on provider side")
	ErrPaymentTimeout = errors.New("payment not confirmed in time")
	ErrInvalidRequest = errors.New("invalid job request")
	ErrNoWallet       = errors.New("no wallet configured")
	ErrNoPayment      = errors.New("job is not waiting for payment")
)

// ErrSuperseded is returned by calls that were overtaken by Reset or a newer Submit
// while they were blocked.
var ErrSuperseded = errors.New("job superseded by a newer submission")
