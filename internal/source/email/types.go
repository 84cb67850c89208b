package email

import "time"

// Routing headers set by the taskhub mailer. They take precedence over
// references found in the subject line.
const (
	HeaderObject = "X-Taskhub-Object"
	HeaderLink   = "X-Taskhub-Link"
)

// Message holds the parts of an IMAP message a notification is built from.
type Message struct {
	UID     uint32
	Subject string
	From    string
	Date    time.Time
	Flags   []string // \Seen, \Flagged, \Answered, \Deleted

	// Header is the raw header block holding only the routing headers.
	Header []byte
}
