package scopeauth

import (
	"sync"
	"time"
)

// session is the single mutable shared resource. Every mutation is one
// critical section so readers observe either the old batch or the new batch,
// never a mix of fields from two assignments.
type session struct {
	mu               sync.RWMutex
	accessToken      string
	refreshToken     string
	issuedAt         time.Time
	requiresPassword bool
	user             *Profile
}

func (s *session) access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *session) refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *session) snapshot() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var user *Profile
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return SessionInfo{
		AccessToken:      s.accessToken,
		IssuedAt:         s.issuedAt,
		RequiresPassword: s.requiresPassword,
		User:             user,
	}
}

// apply assigns a complete token batch. A zero issuedAt is not permitted:
// issuance time is part of every assignment.
func (s *session) apply(access, refresh string, issuedAt time.Time, requiresPassword bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
	s.issuedAt = issuedAt
	s.requiresPassword = requiresPassword
}

// clear wipes all session fields at once. accessToken == "" implies
// refreshToken == "", requiresPassword == false, and user == nil; clearing
// everything in one critical section keeps that invariant observable.
func (s *session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.issuedAt = time.Time{}
	s.requiresPassword = false
	s.user = nil
}

func (s *session) setUser(user *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		// Logged out while the profile fetch was in flight.
		s.user = nil
		return
	}
	s.user = user
}

func (s *session) setRequiresPassword(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return
	}
	s.requiresPassword = v
}
