package mailbox

import "time"

// ParsedMessage is the structured form of one fetched message. It is
// transient: the sync pipeline converts it into a stored record and
// never persists it directly.
type ParsedMessage struct {
	Sender  string
	Subject string
	Body    string

	// Date is the message's Date header, or the parse time when the
	// header is missing or unparseable.
	Date time.Time

	// MessageID is the Message-ID header verbatim; empty for
	// malformed mail. No synthetic identifier is generated.
	MessageID string
}
