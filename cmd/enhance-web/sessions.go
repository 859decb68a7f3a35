package main

import (
	"sync"
	"time"

	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/rs/zerolog/log"
)

// sessionStore holds one enhance.Session per open feature page.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*storedSession
	newFn    func() *enhance.Session
	now      func() time.Time
}

type storedSession struct {
	session  *enhance.Session
	lastSeen time.Time
}

func newSessionStore(newFn func() *enhance.Session) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*storedSession),
		newFn:    newFn,
		now:      time.Now,
	}
}

func (st *sessionStore) create() *enhance.Session {
	s := st.newFn()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID()] = &storedSession{session: s, lastSeen: st.now()}
	return s
}

func (st *sessionStore) get(id string) *enhance.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	ss, ok := st.sessions[id]
	if !ok {
		return nil
	}
	ss.lastSeen = st.now()
	return ss.session
}

// remove resets and forgets a session; it reports whether it existed.
func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	ss, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		ss.session.Reset()
	}
	return ok
}

// prune drops sessions not touched for maxIdle, abandoning their calls.
func (st *sessionStore) prune(maxIdle time.Duration) int {
	cutoff := st.now().Add(-maxIdle)

	st.mu.Lock()
	var stale []*enhance.Session
	for id, ss := range st.sessions {
		if ss.lastSeen.Before(cutoff) {
			stale = append(stale, ss.session)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range stale {
		s.Reset()
	}
	if len(stale) > 0 {
		log.Info().Int("count", len(stale)).Msg("Pruned idle sessions")
	}
	return len(stale)
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
