package capture

import (
	"sync"
	"time"
)

// MarkerStore remembers, per event kind, the last resource reported in the
// current session.
type MarkerStore interface {
	Get(kind string) (string, bool)
	Set(kind, resourceID string)
}

type marker struct {
	resourceID string
	expiresAt  time.Time
}

// SessionMarkers is an in-memory MarkerStore whose entries expire after ttl,
// like a short-lived session cookie.
type SessionMarkers struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	markers map[string]marker
}

func NewSessionMarkers(ttl time.Duration) *SessionMarkers {
	return &SessionMarkers{ttl: ttl, now: time.Now, markers: map[string]marker{}}
}

func (s *SessionMarkers) Get(kind string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[kind]
	if !ok {
		return "", false
	}
	if s.ttl > 0 && !s.now().Before(m.expiresAt) {
		delete(s.markers, kind)
		return "", false
	}
	return m.resourceID, true
}

func (s *SessionMarkers) Set(kind, resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[kind] = marker{resourceID: resourceID, expiresAt: s.now().Add(s.ttl)}
}
