package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindUnauthorized        ErrorKind = "Unauthorized"
	KindNotFound            ErrorKind = "NotFound"
	KindInvalidQuantity     ErrorKind = "InvalidQuantity"
	KindEmptyCart           ErrorKind = "EmptyCart"
	KindItemUnavailable     ErrorKind = "ItemUnavailable"
	KindTransactionConflict ErrorKind = "TransactionConflict"
	KindTimeout             ErrorKind = "Timeout"
	KindValidation          ErrorKind = "ValidationError"
	KindInternal            ErrorKind = "InternalError"
)

// Error is the typed failure returned by cart and checkout operations.
type Error struct {
	Kind        ErrorKind
	Message     string
	VariationID string
	Available   int
	Fields      map[string]string
}

func (e *Error) Error() string {
	if e.VariationID != "" {
		return fmt.Sprintf("%s: %s (variation %s)", e.Kind, e.Message, e.VariationID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptyCart) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "authentication required"}
	ErrEmptyCart           = &Error{Kind: KindEmptyCart, Message: "cart is empty"}
	ErrTransactionConflict = &Error{Kind: KindTransactionConflict, Message: "checkout conflicted with a concurrent request, please retry"}
	ErrTimeout             = &Error{Kind: KindTimeout, Message: "checkout timed out"}
)

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func InvalidQuantity(quantity int) *Error {
	return &Error{Kind: KindInvalidQuantity, Message: fmt.Sprintf("quantity must be at least 1, got %d", quantity)}
}

func ItemUnavailable(variationID string, available int) *Error {
	return &Error{
		Kind:        KindItemUnavailable,
		Message:     fmt.Sprintf("only %d left in stock", available),
		VariationID: variationID,
		Available:   available,
	}
}

func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid billing details", Fields: fields}
}

// KindOf reports the kind carried by err, or KindInternal for untyped failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
