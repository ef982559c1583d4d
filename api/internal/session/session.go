package session

import (
	"context"
	"sync"
	"time"
)

const DefaultTTL = 20 * time.Minute

type State string

const (
	Idle                  State = ""
	AwaitingQuestionCount State = "await_question_count"
)

// Key: сессия принадлежит паре (чат, пользователь).
type Key struct {
	ChatID int64
	UserID int64
}

type Session struct {
	State     State
	Text      string
	Filename  string
	Truncated bool
	UpdatedAt time.Time
}

// Store keeps per-user conversation state. Absent means Idle.
type Store interface {
	Get(k Key) (Session, bool)
	Put(k Key, s Session)
	// Take returns the session and removes it in one step.
	Take(k Key) (Session, bool)
	Clear(k Key)
	Touch(k Key)
	Sweep(now time.Time) int
}

// MemoryStore: in-memory Store с TTL по времени последней активности.
type MemoryStore struct {
	TTL time.Duration
	Now func() time.Time

	mu sync.Mutex
	m  map[Key]Session
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{TTL: ttl, Now: time.Now, m: make(map[Key]Session)}
}

func (s *MemoryStore) expired(sess Session, now time.Time) bool {
	return now.Sub(sess.UpdatedAt) > s.TTL
}

func (s *MemoryStore) Get(k Key) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[k]
	if !ok {
		return Session{}, false
	}
	if s.expired(sess, s.Now()) {
		delete(s.m, k)
		return Session{}, false
	}
	return sess, true
}

func (s *MemoryStore) Put(k Key, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.State == Idle {
		delete(s.m, k)
		return
	}
	sess.UpdatedAt = s.Now()
	s.m[k] = sess
}

func (s *MemoryStore) Take(k Key) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[k]
	if !ok {
		return Session{}, false
	}
	delete(s.m, k)
	if s.expired(sess, s.Now()) {
		return Session{}, false
	}
	return sess, true
}

func (s *MemoryStore) Clear(k Key) {
	s.mu.Lock()
	delete(s.m, k)
	s.mu.Unlock()
}

func (s *MemoryStore) Touch(k Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[k]; ok && !s.expired(sess, s.Now()) {
		sess.UpdatedAt = s.Now()
		s.m[k] = sess
	}
}

// Sweep drops expired sessions and reports how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, sess := range s.m {
		if s.expired(sess, now) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Run периодически чистит просроченные сессии до отмены ctx.
func (s *MemoryStore) Run(ctx context.Context, every time.Duration, onSweep func(n int)) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := s.Sweep(s.Now()); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
