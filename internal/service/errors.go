package service

import "errors"

var (
	// ErrValidation marks caller mistakes that map to HTTP 400.
	ErrValidation = errors.New("validation error")

	// ErrGatewayDisabled is returned when a payment flow is requested but
	// no payment provider token is configured.
	ErrGatewayDisabled = errors.New("payment gateway is not configured")
)
