package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed requests and article invariant violations.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateIdentity means another row already holds the identity key.
	ErrDuplicateIdentity = errors.New("duplicate identity key")

	ErrCooldownActive     = errors.New("sync cooldown active")
	ErrSyncAlreadyRunning = errors.New("sync is already running")

	// ErrProviderFetchFailed covers transport and provider-reported failures alike.
	ErrProviderFetchFailed = errors.New("provider fetch failed")

	ErrItemSyncFailed = errors.New("item sync failed")
	ErrSyncFailed     = errors.New("sync failed")
	ErrMissingAPIKey  = errors.New("news api key is not configured")
)

type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// CooldownError rejects a run that was requested too soon after the previous one completed.
type CooldownError struct {
	Remaining       time.Duration
	LastCompletedAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("sync cooldown active, please wait %d minutes before next sync",
		int(math.Ceil(e.Remaining.Minutes())))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// RemainingSeconds rounds up so a caller never retries a second too early.
func (e *CooldownError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

type ProviderFetchError struct {
	Category Category
	Message  string
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.Category, e.Message)
}

func (e *ProviderFetchError) Is(target error) bool {
	return target == ErrProviderFetchFailed
}
