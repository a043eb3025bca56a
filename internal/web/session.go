package web

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/contentgen/internal/generate"
)

// form is what the page last submitted, echoed back into the inputs.
type form struct {
	TemplateKey string
	Topic       string
	Grade       string
	Count       int
	Elements    string
}

type session struct {
	id   string
	ctrl *generate.Controller

	mu       sync.Mutex
	form     form
	lastSeen time.Time
}

func (s *session) setForm(f form) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = f
}

func (s *session) currentForm() form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// errSessionsFull is returned when the table is at capacity and every
// session has an attempt in flight.
var errSessionsFull = errors.New("session table full")

// sessionTable owns one controller per browser. Idle sessions expire after
// ttl; a session with an attempt in flight is never evicted.
type sessionTable struct {
	mu   sync.Mutex
	byID map[string]*session

	ttl           time.Duration
	max           int
	now           func() time.Time
	newController func() *generate.Controller
}

func newSessionTable(ttl time.Duration, max int, now func() time.Time, newController func() *generate.Controller) *sessionTable {
	return &sessionTable{
		byID:          make(map[string]*session),
		ttl:           ttl,
		max:           max,
		now:           now,
		newController: newController,
	}
}

// get returns the live session for id, or a new one when id is unknown or
// expired. created reports whether a cookie must be issued.
func (t *sessionTable) get(id string) (s *session, created bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweep(now)

	if s, ok := t.byID[id]; ok && id != "" {
		s.mu.Lock()
		s.lastSeen = now
		s.mu.Unlock()
		return s, false, nil
	}

	if len(t.byID) >= t.max && !t.evictOldest() {
		return nil, false, errSessionsFull
	}

	s = &session{
		id:       uuid.NewString(),
		ctrl:     t.newController(),
		form:     form{Count: generate.DefaultCount},
		lastSeen: now,
	}
	t.byID[s.id] = s
	return s, true, nil
}

func (t *sessionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

func (t *sessionTable) sweep(now time.Time) {
	for id, s := range t.byID {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > t.ttl && !s.ctrl.State().Loading() {
			delete(t.byID, id)
		}
	}
}

// evictOldest drops the least recently seen idle session and reports
// whether one was found.
func (t *sessionTable) evictOldest() bool {
	var oldest *session
	var oldestSeen time.Time
	for _, s := range t.byID {
		if s.ctrl.State().Loading() {
			continue
		}
		s.mu.Lock()
		seen := s.lastSeen
		s.mu.Unlock()
		if oldest == nil || seen.Before(oldestSeen) {
			oldest, oldestSeen = s, seen
		}
	}
	if oldest == nil {
		return false
	}
	delete(t.byID, oldest.id)
	return true
}
