// Package email turns an IMAP inbox into a notification source: each
// recent message is a notification and \Seen is its read flag.
package email

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/taskhub/internal/crossref"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/source"
)

// mailbox is the IMAP surface the adapter needs.
type mailbox interface {
	FetchMessages(ctx context.Context, since time.Time, limit int) ([]Message, error)
	UnseenUIDs(ctx context.Context) ([]uint32, error)
	AddFlags(ctx context.Context, uids []uint32, flags ...imap.Flag) error
}

// Adapter implements source.NotificationSource over IMAP.
type Adapter struct {
	box    mailbox
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewAdapter creates an email notification source reading the last
// seven days of INBOX.
func NewAdapter(host, port, username, password string, useTLS bool) *Adapter {
	return newAdapter(NewIMAPClient(host, port, username, password, useTLS))
}

func newAdapter(box mailbox) *Adapter {
	return &Adapter{
		box:    box,
		window: 7 * 24 * time.Hour,
		limit:  100,
		now:    time.Now,
	}
}

// FetchNotifications returns recent messages as notifications.
func (a *Adapter) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	msgs, err := a.box.FetchMessages(ctx, a.now().Add(-a.window), a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetching email notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToNotification(m))
	}
	return out, nil
}

// MarkNotificationRead sets \Seen on the message whose UID is id.
func (a *Adapter) MarkNotificationRead(ctx context.Context, id string) error {
	uid, err := parseUID(id)
	if err != nil {
		return err
	}
	return a.box.AddFlags(ctx, []uint32{uid}, imap.FlagSeen)
}

// MarkAllNotificationsRead sets \Seen on every unseen INBOX message.
func (a *Adapter) MarkAllNotificationsRead(ctx context.Context) error {
	uids, err := a.box.UnseenUIDs(ctx)
	if err != nil {
		return err
	}
	return a.box.AddFlags(ctx, uids, imap.FlagSeen)
}

// ToNotification maps a message to a notification. The routing headers
// win; otherwise the first entity reference in the subject is used.
func ToNotification(m Message) model.Notification {
	n := model.Notification{
		ID:        strconv.FormatUint(uint64(m.UID), 10),
		Actor:     strings.TrimSpace(m.From),
		Verb:      strings.TrimSpace(m.Subject),
		Timestamp: m.Date,
		IsRead:    slices.Contains(m.Flags, string(imap.FlagSeen)),
	}

	hdr := parseHeader(m.Header)
	n.RelatedObjectRef = strings.TrimSpace(hdr.Get(HeaderObject))
	n.Link = strings.TrimSpace(hdr.Get(HeaderLink))

	if n.RelatedObjectRef == "" {
		if ref, ok := crossref.FirstRef(m.Subject, nil); ok {
			n.RelatedObjectRef = ref
		}
	}
	if n.Link == "" && n.RelatedObjectRef != "" {
		n.Link = crossref.LinkFor(n.RelatedObjectRef)
	}
	if n.Actor == "" {
		n.Actor = "unknown sender"
	}
	return n
}

func parseHeader(raw []byte) textproto.Header {
	raw = bytes.TrimRight(raw, "\r\n")
	if len(raw) == 0 {
		return textproto.Header{}
	}
	block := make([]byte, 0, len(raw)+4)
	block = append(block, raw...)
	block = append(block, "\r\n\r\n"...)
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(block)))
	if err != nil {
		return textproto.Header{}
	}
	return h
}

func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid email notification id %q", id)
	}
	return uint32(uid), nil
}

var _ source.NotificationSource = (*Adapter)(nil)
