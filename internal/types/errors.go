package types

import (
	"errors"
	"fmt"
)

// Stable error kinds surfaced to callers. Every business failure maps to
// exactly one of these so the HTTP layer can pick a status code and clients
// can branch without parsing messages.
const (
	KindValidation        = "VALIDATION_FAILED"
	KindInsufficientStock = "INSUFFICIENT_STOCK"
	KindProductNotFound   = "PRODUCT_NOT_FOUND"
	KindRemoteUnavailable = "REMOTE_UNAVAILABLE"
	KindEntryNotFound     = "ENTRY_NOT_FOUND"
	KindAlreadyRetired    = "ALREADY_RETIRED"
	KindStockConflict     = "STOCK_CONFLICT"
	KindStockUnreconciled = "STOCK_UNRECONCILED"
)

// DomainError is a business failure with a stable kind and a human-readable
// message. Errors of the same kind compare equal under errors.Is regardless
// of message, so call sites match against the sentinel values below.
type DomainError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is checks.
var (
	ErrValidation        = &DomainError{Kind: KindValidation, Message: "validation failed"}
	ErrInsufficientStock = &DomainError{Kind: KindInsufficientStock, Message: "insufficient stock for sale"}
	ErrProductNotFound   = &DomainError{Kind: KindProductNotFound, Message: "product not found"}
	ErrRemoteUnavailable = &DomainError{Kind: KindRemoteUnavailable, Message: "products service unavailable"}
	ErrEntryNotFound     = &DomainError{Kind: KindEntryNotFound, Message: "ledger entry not found"}
	ErrAlreadyRetired    = &DomainError{Kind: KindAlreadyRetired, Message: "ledger entry already retired"}
	ErrStockConflict     = &DomainError{Kind: KindStockConflict, Message: "stock changed since read"}
	ErrStockUnreconciled = &DomainError{Kind: KindStockUnreconciled, Message: "ledger entry recorded but stock not adjusted"}
)

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a copy of the given sentinel, preserving the kind.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return &DomainError{Kind: sentinel.Kind, Message: sentinel.Message, Cause: cause}
}

// Wrapf attaches a cause and a specific message, preserving the kind.
func Wrapf(sentinel *DomainError, cause error, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: sentinel.Kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the stable kind for an error, or empty string if the error
// is not a DomainError.
func KindOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
