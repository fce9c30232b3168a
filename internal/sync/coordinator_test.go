package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohitk/email-organizer/internal/mailbox"
	"github.com/mohitk/email-organizer/internal/model"
	"github.com/mohitk/email-organizer/internal/store"
)

type fakeSession struct {
	connectErr error
	fetchErr   error
	messages   []mailbox.ParsedMessage
	panicOn    bool

	closeCount int
}

func (f *fakeSession) Connect(context.Context) error { return f.connectErr }

func (f *fakeSession) FetchLatest(context.Context, int) ([]mailbox.ParsedMessage, error) {
	if f.panicOn {
		panic("session blew up")
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages, nil
}

func (f *fakeSession) Close() error {
	f.closeCount++
	return nil
}

type fakeClassifier struct {
	failSubjects map[string]bool
}

func (f *fakeClassifier) Classify(subject, _ string) (string, error) {
	if f.failSubjects[subject] {
		return "", errors.New("model not trained")
	}
	return "Work", nil
}

type fakeSaver struct {
	duplicates   map[string]bool
	failSubjects map[string]bool

	saved []model.Email
}

func (f *fakeSaver) SaveEmail(_ context.Context, email model.Email) (store.SaveStatus, error) {
	if f.failSubjects[email.Subject] {
		return 0, errors.New("disk full")
	}
	if f.duplicates[email.MessageID] {
		return store.SaveDuplicate, nil
	}
	f.saved = append(f.saved, email)
	return store.SaveCreated, nil
}

func messagesNamed(subjects ...string) []mailbox.ParsedMessage {
	msgs := make([]mailbox.ParsedMessage, 0, len(subjects))
	for i, subject := range subjects {
		msgs = append(msgs, mailbox.ParsedMessage{
			Sender:    "sender@example.com",
			Subject:   subject,
			Body:      "body",
			Date:      time.Now().UTC(),
			MessageID: fmt.Sprintf("<%d@example.com>", i),
		})
	}
	return msgs
}

func newTestCoordinator(session *fakeSession, classifier Classifier, saver EmailSaver) *Coordinator {
	factory := func(_, _ string) Session { return session }
	return NewCoordinator(factory, classifier, saver, nil)
}

func TestSyncUserConnectFailure(t *testing.T) {
	session := &fakeSession{connectErr: &mailbox.AuthError{
		Username: "a@example.com", Err: errors.New("LOGIN failed"),
	}}
	coord := newTestCoordinator(session, &fakeClassifier{}, &fakeSaver{})

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	assert.False(t, result.Success)
	assert.Equal(t, "a@example.com", result.Account)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Classified)
	assert.Zero(t, result.Saved)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "a@example.com")
	assert.Equal(t, 1, session.closeCount)
}

func TestSyncUserFetchFailure(t *testing.T) {
	session := &fakeSession{fetchErr: errors.New("connection reset")}
	coord := newTestCoordinator(session, &fakeClassifier{}, &fakeSaver{})

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	assert.False(t, result.Success)
	assert.Zero(t, result.Fetched)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "fetching mailbox")
	assert.Equal(t, 1, session.closeCount)
}

func TestSyncUserHappyPath(t *testing.T) {
	session := &fakeSession{messages: messagesNamed("one", "two", "three")}
	saver := &fakeSaver{}
	coord := newTestCoordinator(session, &fakeClassifier{}, saver)

	result := coord.SyncUser(context.Background(), Account{UserID: "u1", Email: "a@example.com"}, 50)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.Classified)
	assert.Equal(t, 3, result.Saved)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, session.closeCount)

	require.Len(t, saver.saved, 3)
	assert.Equal(t, "u1", saver.saved[0].UserID)
	assert.Equal(t, "Work", saver.saved[0].Category)
}

func TestSyncUserPartialClassifyFailure(t *testing.T) {
	session := &fakeSession{messages: messagesNamed("ok1", "bad1", "ok2", "bad2", "ok3")}
	classifier := &fakeClassifier{failSubjects: map[string]bool{"bad1": true, "bad2": true}}
	saver := &fakeSaver{}
	coord := newTestCoordinator(session, classifier, saver)

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	// Per-message failures do not fail the run.
	assert.True(t, result.Success)
	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 3, result.Classified)
	assert.Equal(t, 3, result.Saved)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "bad1")
	assert.Contains(t, result.Errors[1], "bad2")
}

func TestSyncUserSaveFailure(t *testing.T) {
	session := &fakeSession{messages: messagesNamed("ok", "broken")}
	saver := &fakeSaver{failSubjects: map[string]bool{"broken": true}}
	coord := newTestCoordinator(session, &fakeClassifier{}, saver)

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "broken")
}

func TestSyncUserDuplicatesAreSilent(t *testing.T) {
	messages := messagesNamed("one", "two")
	session := &fakeSession{messages: messages}
	saver := &fakeSaver{duplicates: map[string]bool{
		messages[0].MessageID: true,
		messages[1].MessageID: true,
	}}
	coord := newTestCoordinator(session, &fakeClassifier{}, saver)

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Classified)
	assert.Zero(t, result.Saved)
	assert.Empty(t, result.Errors)
}

func TestSyncUserEmptyMailbox(t *testing.T) {
	session := &fakeSession{}
	coord := newTestCoordinator(session, &fakeClassifier{}, &fakeSaver{})

	result := coord.SyncUser(context.Background(), Account{Email: "a@example.com"}, 50)

	assert.True(t, result.Success)
	assert.Zero(t, result.Fetched)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, session.closeCount)
}
