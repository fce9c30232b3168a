package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/mohitk/email-organizer/internal/model"
)

// Session is a single stateful connection to one user's mailbox. It is
// created per sync attempt, owned by exactly one goroutine, and must be
// closed before the attempt returns. Close is idempotent, so callers
// defer it immediately after construction.
type Session struct {
	cfg      model.IMAPConfig
	username string
	password string
	parser   *Parser
	log      *slog.Logger

	client *imapclient.Client
}

// NewSession creates an unconnected session for the given mailbox
// credentials. A nil logger falls back to slog.Default.
func NewSession(cfg model.IMAPConfig, username, password string, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("mailbox", username)
	return &Session{
		cfg:      cfg,
		username: username,
		password: password,
		parser:   NewParser(log),
		log:      log,
	}
}

// Connect dials the configured server with a bounded timeout and
// authenticates. On failure the session stays closed: a *ConnectError
// means the transport could not be established, a *AuthError means the
// server rejected the credentials. Callers must not fetch after a
// failed Connect.
func (s *Session) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	var client *imapclient.Client

	if s.cfg.TLS {
		dialer := &net.Dialer{Timeout: s.cfg.ConnectTimeout()}
		conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
			ServerName: s.cfg.Host,
		})
		if err != nil {
			return &ConnectError{Addr: addr, Err: err}
		}
		client = imapclient.New(conn, nil)
	} else {
		var err error
		client, err = imapclient.DialStartTLS(addr, &imapclient.Options{
			Dialer: &net.Dialer{Timeout: s.cfg.ConnectTimeout()},
		})
		if err != nil {
			return &ConnectError{Addr: addr, Err: err}
		}
	}

	if err := client.Login(s.username, s.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return &AuthError{Username: s.username, Err: err}
	}

	s.client = client
	s.log.Debug("mailbox session connected", "addr", addr)
	return nil
}

// FetchLatest selects INBOX, searches for all messages, and returns up
// to count parsed messages taken from the tail of the server's
// ascending sequence-number ordering. This is deliberately not a
// date-sorted recency selection. A fetch failure for a single message
// is logged and that message is skipped; it never aborts the batch.
func (s *Session) FetchLatest(ctx context.Context, count int) ([]ParsedMessage, error) {
	if s.client == nil {
		return nil, fmt.Errorf("fetching for %s: session is not connected", s.username)
	}

	if _, err := s.client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	searchData, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	seqNums := searchData.AllSeqNums()
	if count > 0 && len(seqNums) > count {
		seqNums = seqNums[len(seqNums)-count:]
	}

	messages := make([]ParsedMessage, 0, len(seqNums))
	for _, num := range seqNums {
		raw, fetchErr := s.fetchRaw(num)
		if fetchErr != nil {
			s.log.Warn("skipping message", "seq", num, "error", fetchErr)
			continue
		}
		messages = append(messages, s.parser.Parse(raw))
	}

	s.log.Debug("fetched messages", "selected", len(seqNums), "parsed", len(messages))
	return messages, nil
}

// fetchRaw retrieves the full raw bytes of one message by sequence
// number without setting the \Seen flag.
func (s *Session) fetchRaw(num uint32) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}

	fetchCmd := s.client.Fetch(imap.SeqSetNum(num), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message %d not returned by server", num)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message %d: %w", num, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message %d has no body section", num)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch for message %d: %w", num, err)
	}

	return raw, nil
}

// Close logs out and releases the connection. It is safe to call
// multiple times and safe to call when Connect never succeeded.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}

	client := s.client
	s.client = nil

	if err := client.Logout().Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("logging out %s: %w", s.username, err)
	}

	return nil
}
