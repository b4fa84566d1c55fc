package validator

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"fincrime_engine/internal/domain"
)

var (
	ErrValidation = errors.New("validation failed")

	ErrInvalidAccountID = fmt.Errorf("%w: invalid account id", ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: invalid transfer amount", ErrValidation)
	ErrInvalidCurrency  = fmt.Errorf("%w: invalid currency", ErrValidation)
	ErrSelfTransfer     = fmt.Errorf("%w: source and target must differ", ErrValidation)
	ErrFutureTimestamp  = fmt.Errorf("%w: timestamp is in the future", ErrValidation)
	ErrInvalidParameter = fmt.Errorf("%w: invalid parameter", ErrValidation)
)

// futureSkew is how far ahead of the local clock a timestamp may be.
const futureSkew = 5 * time.Minute

type TransferValidator struct {
	accountRegex *regexp.Regexp
	currencies   []domain.Currency
	now          func() time.Time
}

func NewTransferValidator() *TransferValidator {
	return &TransferValidator{
		accountRegex: regexp.MustCompile(`^ACC_\d{4}$`),
		currencies:   domain.Currencies,
		now:          time.Now,
	}
}

// ValidateTransfer reports every problem with t at once. The returned error
// matches each individual sentinel through errors.Is.
func (v *TransferValidator) ValidateTransfer(t *domain.Transfer) error {
	var errs []error

	if err := v.ValidateAccountID(t.SourceID); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if err := v.ValidateAccountID(t.TargetID); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}
	if t.SourceID == t.TargetID {
		errs = append(errs, ErrSelfTransfer)
	}
	if err := v.ValidateAmount(t.Amount); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(v.currencies, t.Currency) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency))
	}
	if t.Timestamp.After(v.now().Add(futureSkew)) {
		errs = append(errs, ErrFutureTimestamp)
	}

	return errors.Join(errs...)
}

func (v *TransferValidator) ValidateAccountID(id string) error {
	if !v.accountRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountID, id)
	}
	return nil
}

func (v *TransferValidator) ValidateAmount(amount float64) error {
	if !(amount > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// IntRange checks lo <= value <= hi.
func IntRange(name string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%w: %s must be within [%d, %d], got %d", ErrInvalidParameter, name, lo, hi, value)
	}
	return nil
}

// NonNegative checks value >= 0 and rejects NaN.
func NonNegative(name string, value float64) error {
	if !(value >= 0) {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrInvalidParameter, name, value)
	}
	return nil
}

// ParameterError reports a malformed request parameter.
func ParameterError(name, problem string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidParameter, name, problem)
}
