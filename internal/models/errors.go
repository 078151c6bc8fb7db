package credits

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConfig               = errors.New("configuration error")
	ErrMalformed            = errors.New("token is malformed")
	ErrBadSignature         = errors.New("token signature is invalid")
	ErrExpired              = errors.New("token is expired")
	ErrAlreadyUsedOrExpired = errors.New("token already used or expired")
	ErrInvalidAccount       = errors.New("invalid account")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrNonceCollision       = errors.New("nonce collision")
	ErrInvalidAmount        = errors.New("credits amount must be positive")
)

// Код отказа для клиента
type Reason string

const (
	ReasonMalformed            Reason = "MALFORMED"
	ReasonBadSignature         Reason = "BAD_SIGNATURE"
	ReasonExpired              Reason = "EXPIRED"
	ReasonAlreadyUsedOrExpired Reason = "ALREADY_USED_OR_EXPIRED"
	ReasonInvalidAccount       Reason = "INVALID_ACCOUNT"
	ReasonInsufficientCredits  Reason = "INSUFFICIENT_CREDITS"
	ReasonStorageUnavailable   Reason = "STORAGE_UNAVAILABLE"
	ReasonInvalidRequest       Reason = "INVALID_REQUEST"
)

// Отказ в погашении
type RejectionError struct {
	Reason    Reason
	Balance   int64 // только для INSUFFICIENT_CREDITS
	Shortfall int64 // только для INSUFFICIENT_CREDITS
	Err       error
}

func (e *RejectionError) Error() string {
	if e.Reason == ReasonInsufficientCredits {
		return fmt.Sprintf("redemption rejected: %s (balance %d, shortfall %d)", e.Reason, e.Balance, e.Shortfall)
	}
	return fmt.Sprintf("redemption rejected: %s", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Нехватка кредитов с текущим балансом
type InsufficientError struct {
	Balance   int64
	Requested int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s: balance %d, requested %d", ErrInsufficientCredits, e.Balance, e.Requested)
}

func (e *InsufficientError) Unwrap() error {
	return ErrInsufficientCredits
}

func (e *InsufficientError) Shortfall() int64 {
	return e.Requested - e.Balance
}

// Причина отказа по ошибке
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrBadSignature):
		return ReasonBadSignature
	case errors.Is(err, ErrMalformed):
		return ReasonMalformed
	case errors.Is(err, ErrAlreadyUsedOrExpired):
		return ReasonAlreadyUsedOrExpired
	case errors.Is(err, ErrInvalidAccount), errors.Is(err, ErrNotFound):
		return ReasonInvalidAccount
	case errors.Is(err, ErrInsufficientCredits):
		return ReasonInsufficientCredits
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidRequest
	default:
		return ReasonStorageUnavailable
	}
}

// Отказ по ошибке шага
func Reject(err error) *RejectionError {
	rej := &RejectionError{Reason: ReasonOf(err), Err: err}
	var ins *InsufficientError
	if errors.As(err, &ins) {
		rej.Balance = ins.Balance
		rej.Shortfall = ins.Shortfall()
	}
	if rej.Reason == ReasonStorageUnavailable && !errors.Is(err, ErrStorageUnavailable) {
		rej.Err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return rej
}
