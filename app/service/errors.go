package service

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrGateway             = errors.New("gateway error")
	ErrSignatureInvalid    = errors.New("signature invalid")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrDeliveryFailure     = errors.New("certificate delivery failed")
	ErrDonationNotFound    = errors.New("donation not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrGatewayUnsupported  = errors.New("gateway is not supported")
)
