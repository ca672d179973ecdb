package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientCredit  = errors.New("insufficient credit")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrProposalNotFound    = errors.New("proposal not found")
	ErrCatalogNotFound     = errors.New("catalog item not found")
	ErrNotificationMissing = errors.New("notification not found")
	ErrProjectNotOpen      = errors.New("project is not open")
	ErrProjectNotActive    = errors.New("project is not in progress")
	ErrProposalNotPending  = errors.New("proposal is not pending")
	ErrCatalogInactive     = errors.New("catalog item is not active")
	ErrDuplicateProposal   = errors.New("freelancer already has a pending proposal on this project")
	ErrIdempotencyConflict = errors.New("idempotency key was used for a different request")
	ErrForbidden           = errors.New("not allowed")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrChallengeInvalid    = errors.New("login challenge is unknown, used or expired")
	ErrValidation          = errors.New("validation failed")
)

// ValidationError carries the offending field and wraps ErrValidation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// notFound maps gorm's missing-row error onto a domain sentinel
func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// isUniqueViolation reports whether err came from a unique index. Postgres errors are
// translated by gorm; sqlite reports the constraint in the message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
