package wizard

import "sync"

// Session is one user's in-progress report.
type Session struct {
	Phase  Phase
	Fields map[string]string
	Photos []string
	Clips  []string
}

// Store keeps one session per user. There are no ambient globals: all
// session state lives here, and the controller serializes events per
// user so each session is mutated by one goroutine at a time.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns a copy of the user's session. A user with no active
// session gets a zero session in PhaseNone.
func (s *Store) Get(userID int64) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{Phase: PhaseNone}
	}

	out := Session{
		Phase:  sess.Phase,
		Fields: make(map[string]string, len(sess.Fields)),
		Photos: append([]string(nil), sess.Photos...),
		Clips:  append([]string(nil), sess.Clips...),
	}
	for k, v := range sess.Fields {
		out.Fields[k] = v
	}
	return out
}

// SetPhase moves the user's session to the given phase, creating the
// session if needed.
func (s *Store) SetPhase(userID int64, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(userID).Phase = phase
}

// SetField stores a single answer in the user's session.
func (s *Store) SetField(userID int64, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(userID).Fields[field] = value
}

// AddPhoto appends a photo reference. Accumulation is append-only and
// order-preserving.
func (s *Store) AddPhoto(userID int64, fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(userID)
	sess.Photos = append(sess.Photos, fileID)
}

// AddClip appends a video clip reference.
func (s *Store) AddClip(userID int64, fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.ensure(userID)
	sess.Clips = append(sess.Clips, fileID)
}

// Clear removes the user's session entirely: fields and media are
// discarded and the phase returns to PhaseNone.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Active returns the number of users with an open session.
func (s *Store) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ensure returns the live session for userID, creating it if absent.
// Callers must hold the write lock.
func (s *Store) ensure(userID int64) *Session {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{Phase: PhaseNone, Fields: make(map[string]string)}
		s.sessions[userID] = sess
	}
	return sess
}
