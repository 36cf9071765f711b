package crm

import "errors"

var (
	// ErrRequestFailed indicates the CRM API answered with a non-success status
	// (after the 520 retry budget, where applicable).
	ErrRequestFailed = errors.New("crm request failed")

	// ErrMalformedResponse indicates the CRM API answered 200 but the body
	// could not be decoded.
	ErrMalformedResponse = errors.New("crm response malformed")
)
