package inventory

import (
	"sync"
	"time"
)

const defaultSessionEntries = 1000

// Entry is one line of the session audit log.
type Entry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Session is the audit log of one service instance. Entries are kept in the
// order they were appended; once the cap is reached the oldest are dropped.
type Session struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	now     func() time.Time
}

func NewSession(max int, now func() time.Time) *Session {
	if max <= 0 {
		max = defaultSessionEntries
	}
	if now == nil {
		now = time.Now
	}
	return &Session{max: max, now: now}
}

func (s *Session) Append(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{At: s.now(), Message: msg})
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
}

// Entries returns a copy of the log, oldest first.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry{}, s.entries...)
}
