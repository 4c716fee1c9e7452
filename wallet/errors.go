package wallet

import (
	"errors"
	"fmt"
)

// Error kinds. Every DomainError matches exactly one of them with errors.Is.
var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTimeout    = errors.New("timeout")
)

// Error codes.
const (
	ErrCodeInvalidTransfer       = "INVALID_TRANSFER"
	ErrCodeInvalidAmount         = "INVALID_AMOUNT"
	ErrCodeOriginNotFound        = "ORIGIN_NOT_FOUND"
	ErrCodeDestinationNotFound   = "DESTINATION_NOT_FOUND"
	ErrCodeMissingCard           = "MISSING_CARD"
	ErrCodeSettlementTimeout     = "SETTLEMENT_TIMEOUT"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeTransferNotFound      = "TRANSFER_NOT_FOUND"
	ErrCodeDuplicateUser         = "DUPLICATE_USER"
	ErrCodeInvalidCard           = "INVALID_CARD"
	ErrCodeCardValidationTimeout = "CARD_VALIDATION_TIMEOUT"
)

// DomainError represents a business rule failure.
type DomainError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DomainError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}

	if e.Err != nil {
		out = append(out, e.Err)
	}

	return out
}

func InvalidTransfer(reason string) *DomainError {
	return &DomainError{Code: ErrCodeInvalidTransfer, Message: "invalid transfer: " + reason, Kind: ErrValidation}
}

func InvalidAmount(amount, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s: %s", amount, reason),
		Kind:    ErrValidation,
	}
}

func OriginNotFound(phone string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOriginNotFound,
		Message: fmt.Sprintf("origin wallet with phone %s not found", phone),
		Kind:    ErrNotFound,
	}
}

func DestinationNotFound(phone string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDestinationNotFound,
		Message: fmt.Sprintf("destination wallet with phone %s not found", phone),
		Kind:    ErrNotFound,
	}
}

// MissingCard reports that side ("origin" or "destination") has no associated debit card.
func MissingCard(side, phone string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingCard,
		Message: fmt.Sprintf("%s wallet %s has no associated debit card", side, phone),
		Kind:    ErrValidation,
	}
}

func SettlementTimeout(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeSettlementTimeout,
		Message: "ledger settlement timed out",
		Kind:    ErrTimeout,
		Err:     err,
	}
}

func UserNotFound(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUserNotFound,
		Message: fmt.Sprintf("user %s not found", id),
		Kind:    ErrNotFound,
	}
}

func TransferNotFound(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransferNotFound,
		Message: fmt.Sprintf("transfer %s not found", id),
		Kind:    ErrNotFound,
	}
}

func DuplicateUser(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateUser,
		Message: "user with the same phone or document already exists",
		Kind:    ErrConflict,
		Err:     err,
	}
}

func InvalidCard(cardID, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidCard,
		Message: fmt.Sprintf("debit card %s rejected: %s", cardID, reason),
		Kind:    ErrValidation,
	}
}

func CardValidationTimeout(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeCardValidationTimeout,
		Message: "debit card validation timed out",
		Kind:    ErrTimeout,
		Err:     err,
	}
}

// IsErrorCode checks if err is a DomainError with the given code.
func IsErrorCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}

	return false
}

// IsRetryable reports whether the caller may retry the operation that returned err.
// Only timeouts qualify; a retry issues a fresh correlation id.
func IsRetryable(err error) bool { return errors.Is(err, ErrTimeout) }
