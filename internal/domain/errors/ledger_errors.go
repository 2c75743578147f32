package errors

import (
	"fmt"

	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
	"github.com/shopspring/decimal"
)

// NewNotFoundError is returned when the referenced entity does not exist
func NewNotFoundError(entity string, id interface{}) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("%s %v not found", entity, id), nil)
}

// NewForbiddenError is returned when the caller lacks ownership or role
func NewForbiddenError(message string) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrUnauthorized, message, nil)
}

// NewConflictError is returned for terminal states, duplicates and exhausted quotas
func NewConflictError(message string) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrConflict, message, nil)
}

// NewBadRequestError is returned for missing or malformed input
func NewBadRequestError(message string) *apperrors.AppError {
	return apperrors.NewAppError(apperrors.ErrInvalidArgument, message, nil)
}

// InsufficientBalanceError is returned when a user doesn't have enough points,
// or when an amount falls short of a voucher's minimum purchase
type InsufficientBalanceError struct {
	Subject   string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s: requested %s, available %s", e.Subject, e.Requested.String(), e.Available.String())
}

// Code reports INSUFFICIENT_BALANCE so the error maps through pkg/errors
func (e *InsufficientBalanceError) Code() string {
	return apperrors.ErrInsufficientBalance
}

func (e *InsufficientBalanceError) Unwrap() error {
	return nil
}

// NewInsufficientBalanceError creates a new InsufficientBalanceError for points
func NewInsufficientBalanceError(requested, available int64) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Subject:   "points balance",
		Requested: decimal.NewFromInt(requested),
		Available: decimal.NewFromInt(available),
	}
}

// NewMinimumPurchaseError creates an InsufficientBalanceError for a purchase below a voucher minimum
func NewMinimumPurchaseError(required, amount decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Subject:   "purchase amount",
		Requested: required,
		Available: amount,
	}
}
