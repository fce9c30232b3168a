package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohitk/email-organizer/internal/mailbox"
	"github.com/mohitk/email-organizer/internal/model"
	"github.com/mohitk/email-organizer/internal/store"
)

// Account identifies one user's mailbox for a sync attempt. The
// password is the already-decrypted mailbox credential, supplied by
// the caller.
type Account struct {
	UserID   string
	Email    string
	Password string
}

// Session is one connection to a remote mailbox. It is owned by a
// single sync attempt and closed before the attempt returns.
type Session interface {
	Connect(ctx context.Context) error
	FetchLatest(ctx context.Context, count int) ([]mailbox.ParsedMessage, error)
	Close() error
}

// SessionFactory creates a new unconnected Session for the given
// mailbox credentials. Each sync attempt gets its own session.
type SessionFactory func(username, password string) Session

// Classifier assigns a category label to a message. Implementations
// must be safe for concurrent use by many sync workers.
type Classifier interface {
	Classify(subject, body string) (string, error)
}

// EmailSaver persists classified messages idempotently. Implementations
// must be safe for concurrent use and must detect duplicates atomically.
type EmailSaver interface {
	SaveEmail(ctx context.Context, email model.Email) (store.SaveStatus, error)
}

// Coordinator drives one user's end-to-end sync: session lifecycle,
// classification, persistence, and per-message error bookkeeping. All
// collaborators are injected at construction.
type Coordinator struct {
	sessions   SessionFactory
	classifier Classifier
	saver      EmailSaver
	log        *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil logger falls back to
// slog.Default.
func NewCoordinator(
	sessions SessionFactory,
	classifier Classifier,
	saver EmailSaver,
	log *slog.Logger,
) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		sessions:   sessions,
		classifier: classifier,
		saver:      saver,
		log:        log,
	}
}

// SyncUser fetches, classifies, and persists the latest count messages
// for one account. A connection failure short-circuits with
// Success=false; after a successful connect, each message is processed
// sequentially and individual failures are recorded without stopping
// the run. The session is closed on every exit path.
func (c *Coordinator) SyncUser(ctx context.Context, account Account, count int) Result {
	result := Result{Account: account.Email}

	session := c.sessions(account.Email, account.Password)
	defer func() {
		if err := session.Close(); err != nil {
			c.log.Warn("closing mailbox session", "account", account.Email, "error", err)
		}
	}()

	if err := session.Connect(ctx); err != nil {
		c.log.Error("mailbox connection failed", "account", account.Email, "error", err)
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	messages, err := session.FetchLatest(ctx, count)
	if err != nil {
		c.log.Error("mailbox fetch failed", "account", account.Email, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("fetching mailbox: %v", err))
		return result
	}
	result.Fetched = len(messages)

	for _, msg := range messages {
		category, classifyErr := c.classifier.Classify(msg.Subject, msg.Body)
		if classifyErr != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("classifying message %q: %v", msg.Subject, classifyErr))
			continue
		}
		result.Classified++

		status, saveErr := c.saver.SaveEmail(ctx, model.Email{
			UserID:    account.UserID,
			MessageID: msg.MessageID,
			Sender:    msg.Sender,
			Subject:   msg.Subject,
			Body:      msg.Body,
			Category:  category,
			Date:      msg.Date,
		})
		if saveErr != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("saving message %q: %v", msg.Subject, saveErr))
			continue
		}
		if status == store.SaveCreated {
			result.Saved++
		}
		// SaveDuplicate: already present from an earlier sync, skip silently.
	}

	result.Success = true

	c.log.Info("sync completed",
		"account", account.Email,
		"fetched", result.Fetched,
		"classified", result.Classified,
		"saved", result.Saved,
		"errors", len(result.Errors),
	)

	return result
}
