package model

import "time"

// Notification represents an alert surfaced to the user about
// activity elsewhere in the system.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// Actor is the display name of whoever triggered the notification.
	Actor string `json:"actor" db:"actor"`

	// Verb describes what happened ("assigned you to", "commented on").
	Verb string `json:"verb" db:"verb"`

	// RelatedObjectRef identifies the entity concerned, e.g. "task:12".
	RelatedObjectRef string `json:"related_object_ref" db:"related_object_ref"`

	// Link is where the UI navigates when the notification is opened.
	Link string `json:"link" db:"link"`

	// Timestamp is when the notification was generated.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"is_read" db:"is_read"`
}

func (n Notification) GetID() string { return n.ID }

func (n Notification) WithID(id string) Notification {
	n.ID = id
	return n
}

// ObjectRef builds a RelatedObjectRef value.
func ObjectRef(kind, id string) string {
	return kind + ":" + id
}
