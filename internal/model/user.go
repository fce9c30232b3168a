package model

import "time"

// User is a registered account that owns synchronized mail.
type User struct {
	// ID is the unique identifier for this user.
	ID string

	// Email is the user's mailbox address; unique across users.
	Email string

	// PasswordHash is the bcrypt hash of the login password.
	// The mailbox (IMAP) password is never stored here; it lives in
	// the system keyring (see internal/credential).
	PasswordHash string

	CreatedAt time.Time
}
