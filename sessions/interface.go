package sessions

import (
	"time"
)

// SessionStore manages the conversations of every active session
type SessionStore interface {
	GetOrCreate(id string) (*Session, bool)
	Get(id string) (*Session, bool)
	Remove(id string)

	// Update runs fn under the session's lock, creating the session if needed
	Update(id string, fn func(*Tx))
	// UpdateExisting is Update without creation; it reports whether fn ran
	UpdateExisting(id string, fn func(*Tx)) bool

	AllExpired(now time.Time, ttl time.Duration) []string
	Expire() int

	Config() *SessionConfig
	Len() int
	List() []string
	Stats() Stats
}

// Stats is a point-in-time summary of the store
type Stats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}
