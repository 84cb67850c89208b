package model

import "time"

// ActivityRecord is one entry of the append-only activity log.
type ActivityRecord struct {
	ID        string    `json:"id" db:"id"`
	User      string    `json:"user" db:"user_name"`
	Action    string    `json:"action" db:"action"`
	Target    string    `json:"target" db:"target"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

func (a ActivityRecord) GetID() string { return a.ID }

func (a ActivityRecord) WithID(id string) ActivityRecord {
	a.ID = id
	return a
}
