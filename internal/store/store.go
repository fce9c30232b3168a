package store

import (
	"context"
	"errors"

	"github.com/mohitk/email-organizer/internal/model"
)

// ErrUserExists is returned by CreateUser when the email address is
// already registered.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// SaveStatus is the outcome of an idempotent email save.
type SaveStatus int

const (
	// SaveCreated means a new row was inserted.
	SaveCreated SaveStatus = iota

	// SaveDuplicate means a row for (user, message id) already existed.
	// This is an expected outcome of re-syncing overlapping mailbox
	// windows, not an error.
	SaveDuplicate
)

// EmailFilter controls filtering and pagination for email queries.
type EmailFilter struct {
	// Category restricts results to one category when non-nil.
	Category *string

	// Page is 1-indexed.
	Page     int
	PageSize int
}

// Store defines the persistence interface for users and their
// classified mail. Implementations must be safe for concurrent use by
// many sync workers; duplicate detection on SaveEmail must be atomic.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUsers(ctx context.Context) ([]model.User, error)

	// SaveEmail inserts a classified message keyed on
	// (email.UserID, email.MessageID). It reports SaveDuplicate, not
	// an error, when that pair is already stored.
	SaveEmail(ctx context.Context, email model.Email) (SaveStatus, error)

	GetEmails(ctx context.Context, userID string, filter EmailFilter) ([]model.Email, int, error)
	SearchEmails(ctx context.Context, userID, query string) ([]model.Email, error)
	GetEmailStats(ctx context.Context, userID string) (map[string]int, error)

	Close() error
}
