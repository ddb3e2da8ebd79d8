package pki

import (
	"errors"
)

var (
	// ErrEmptyUsageSet is returned when a key usage extension is requested with no usages.
	ErrEmptyUsageSet = errors.New("key usage set is empty")

	// ErrInvalidTimeRange is returned when a validity instant cannot be encoded.
	ErrInvalidTimeRange = errors.New("time outside representable range")

	// ErrEncoding is returned when a DER structure could not be produced.
	ErrEncoding = errors.New("encoding failed")

	// ErrUnsupportedKey is returned for key types or sizes no signer handles.
	ErrUnsupportedKey = errors.New("unsupported key")

	// ErrUnsupportedAlgorithm is returned for unknown algorithm identifiers.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

	// ErrInvalidName is returned when a name value is not valid UTF-8 or raw
	// name bytes are not a DER SEQUENCE.
	ErrInvalidName = errors.New("invalid name")

	// ErrKeyMismatch is returned when a key does not match a certificate.
	ErrKeyMismatch = errors.New("key does not match certificate")
)

// SigningError wraps a failure reported by a Signer while signing a certificate.
type SigningError struct {
	Cause error
}

func (e *SigningError) Error() string {
	return "signing failed: " + e.Cause.Error()
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}
