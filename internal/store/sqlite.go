package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mohitk/email-organizer/internal/classify"
	"github.com/mohitk/email-organizer/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateUser registers a new user with a pre-hashed login password.
// It returns ErrUserExists when the email address is taken.
func (s *SQLiteStore) CreateUser(
	ctx context.Context,
	email, passwordHash string,
) (*model.User, error) {
	user := model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", email, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", email, err)
	}
	if affected == 0 {
		return nil, ErrUserExists
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email address. It returns
// ErrUserNotFound when no such user exists.
func (s *SQLiteStore) GetUserByEmail(
	ctx context.Context,
	email string,
) (*model.User, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?",
		email,
	)

	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", email, err)
	}

	return &user, nil
}

// GetUsers retrieves all registered users ordered by email.
func (s *SQLiteStore) GetUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users ORDER BY email",
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// SaveEmail inserts a classified message. The unique index on
// (user_id, message_id) makes re-syncing overlapping mailbox windows
// idempotent: an existing pair reports SaveDuplicate without touching
// the stored row.
func (s *SQLiteStore) SaveEmail(
	ctx context.Context,
	email model.Email,
) (SaveStatus, error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (
			id, user_id, message_id,
			sender, subject, body,
			category, date, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, message_id) DO NOTHING`,
		email.ID, email.UserID, email.MessageID,
		email.Sender, email.Subject, email.Body,
		email.Category, email.Date.UTC(), email.CreatedAt,
	)
	if err != nil {
		return SaveDuplicate, fmt.Errorf("saving email for user %s: %w", email.UserID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return SaveDuplicate, fmt.Errorf("saving email for user %s: %w", email.UserID, err)
	}
	if affected == 0 {
		return SaveDuplicate, nil
	}

	return SaveCreated, nil
}

// GetEmails retrieves a page of a user's emails ordered by date
// descending, optionally restricted to one category. The second return
// value is the total count matching the filter before pagination.
func (s *SQLiteStore) GetEmails(
	ctx context.Context,
	userID string,
	filter EmailFilter,
) ([]model.Email, int, error) {
	where := "WHERE user_id = ?"
	args := []interface{}{userID}

	if filter.Category != nil {
		where += " AND category = ?"
		args = append(args, *filter.Category)
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM emails "+where, args...,
	); err != nil {
		return nil, 0, fmt.Errorf("counting emails: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := fmt.Sprintf(
		"SELECT * FROM emails %s ORDER BY date DESC LIMIT %d OFFSET %d",
		where, pageSize, (page-1)*pageSize,
	)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying emails: %w", err)
	}
	defer rows.Close()

	emails, err := scanEmails(rows)
	if err != nil {
		return nil, 0, err
	}

	return emails, total, nil
}

// likeEscaper makes LIKE metacharacters in user queries match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchEmails finds a user's emails whose subject or sender contains
// the query as a literal substring, case-insensitively, ordered by date
// descending.
func (s *SQLiteStore) SearchEmails(
	ctx context.Context,
	userID, query string,
) ([]model.Email, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"

	// LIKE is case-insensitive for ASCII in sqlite; ESCAPE keeps the
	// replacer's backslash sequences literal.
	rows, err := s.db.QueryxContext(ctx, `
		SELECT * FROM emails
		WHERE user_id = ?
		  AND (subject LIKE ? ESCAPE '\' OR sender LIKE ? ESCAPE '\')
		ORDER BY date DESC`,
		userID, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("searching emails: %w", err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// GetEmailStats returns the per-category email counts for a user.
// Every category from the fixed vocabulary is present, zero-filled.
func (s *SQLiteStore) GetEmailStats(
	ctx context.Context,
	userID string,
) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT category, COUNT(*) FROM emails
		WHERE user_id = ?
		GROUP BY category`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying email stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int, len(classify.Categories))
	for _, cat := range classify.Categories {
		stats[cat] = 0
	}

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		stats[category] = count
	}

	return stats, rows.Err()
}

// scanEmails scans all email rows from a sqlx.Rows result set.
func scanEmails(rows *sqlx.Rows) ([]model.Email, error) {
	var emails []model.Email
	for rows.Next() {
		var e model.Email
		err := rows.Scan(
			&e.ID, &e.UserID, &e.MessageID,
			&e.Sender, &e.Subject, &e.Body,
			&e.Category, &e.Date, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning email row: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
