package audit

import (
	"time"
)

// Entry records one wholesale replacement of the stored collection.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Remote    string    `json:"remote,omitempty"`
	Count     int       `json:"count"`
	Added     []string  `json:"added,omitempty"`
	Removed   []string  `json:"removed,omitempty"`
	Changed   []string  `json:"changed,omitempty"`
}

// Empty reports whether the replacement changed nothing.
func (e Entry) Empty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0 && len(e.Changed) == 0
}
