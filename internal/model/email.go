package model

import "time"

// Email is a classified message persisted for a user. Exactly one row
// exists per (UserID, MessageID) pair; re-syncing an overlapping
// mailbox window never creates duplicates.
type Email struct {
	// ID is the unique identifier for the stored row.
	ID string

	// UserID references the owning user.
	UserID string

	// MessageID is the value of the message's Message-ID header.
	// It may be empty for malformed mail.
	MessageID string

	Sender  string
	Subject string
	Body    string

	// Category is one label from classify.Categories.
	Category string

	// Date is the message's own Date header (or the sync time when the
	// header was unparseable).
	Date time.Time

	CreatedAt time.Time
}
