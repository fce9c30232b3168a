package mailbox

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

// Parser decodes raw RFC 5322 message bytes into ParsedMessage records.
//
// Parse never fails: each field degrades independently to a safe default
// when its bytes cannot be decoded, so a single mangled header never
// costs the whole message.
type Parser struct {
	log *slog.Logger
	now func() time.Time
}

// NewParser creates a Parser. A nil logger falls back to slog.Default.
func NewParser(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log, now: time.Now}
}

// Parse decodes one raw message. Missing headers become empty strings,
// an unparseable Date becomes the current time, and a message with no
// inline text/plain part gets an empty body.
func (p *Parser) Parse(raw []byte) ParsedMessage {
	parsed := ParsedMessage{Date: p.now().UTC()}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		if entity == nil {
			p.log.Debug("unreadable message, keeping defaults", "error", err)
			return parsed
		}
		p.log.Debug("degraded message parse", "error", err)
	}

	header := gomail.Header{Header: entity.Header}

	parsed.Subject = decodeHeaderText(header, "Subject")
	parsed.Sender = decodeHeaderText(header, "From")
	parsed.MessageID = strings.TrimSpace(entity.Header.Get("Message-Id"))

	if date, dateErr := header.Date(); dateErr == nil && !date.IsZero() {
		parsed.Date = date
	}

	parsed.Body = p.extractBody(entity)

	return parsed
}

// decodeHeaderText returns the decoded header value, concatenating
// encoded-word segments in order. Segments whose declared charset
// cannot be decoded keep their raw form rather than failing.
func decodeHeaderText(header gomail.Header, key string) string {
	text, err := header.Text(key)
	if err != nil {
		return strings.TrimSpace(header.Get(key))
	}
	return strings.TrimSpace(text)
}

// extractBody walks the MIME part tree and returns the first inline
// text/plain part, trimmed. Later plain-text siblings and alternates
// are ignored; attachments are never considered.
func (p *Parser) extractBody(entity *message.Entity) string {
	mr := gomail.NewReader(entity)
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// The reader returns no part for these errors, so there is
			// nothing left to skip past.
			p.log.Debug("stopping body walk", "error", err)
			break
		}
		// An unknown declared charset still yields a usable part whose
		// body carries the raw bytes.

		h, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, ctErr := h.ContentType()
		if ctErr != nil || contentType != "text/plain" {
			continue
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			p.log.Debug("unreadable text part", "error", readErr)
			continue
		}

		return strings.TrimSpace(string(body))
	}

	return ""
}
