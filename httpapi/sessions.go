package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"pkt.systems/shotpdf/internal/logx"
	"pkt.systems/shotpdf/schema"
)

// session binds a browser cookie to a capture session.
type session struct {
	id        schema.SessionID
	expiresAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

type sessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	baseCtx  context.Context
	items    map[string]session
	onExpire func(schema.SessionID)
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, onExpire func(schema.SessionID)) *sessionStore {
	return &sessionStore{
		ttl:      ttl,
		baseCtx:  context.TODO(),
		items:    make(map[string]session),
		onExpire: onExpire,
		now:      time.Now,
	}
}

func (s *sessionStore) create() (string, session) {
	token := randomToken(32)
	id := schema.SessionID(randomToken(12))
	parent := s.baseContext()
	ctx, cancel := context.WithCancel(parent)
	entry := session{
		id:        id,
		expiresAt: s.now().Add(s.ttl),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.mu.Lock()
	s.items[token] = entry
	count := len(s.items)
	s.mu.Unlock()
	logx.WithSession(logx.Ctx(parent), id).Info("http session created", "expires", entry.expiresAt.Format(time.RFC3339), "sessions", count)
	return token, entry
}

func (s *sessionStore) get(token string) (session, bool) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if !ok {
		s.mu.Unlock()
		return session{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, token)
		s.mu.Unlock()
		s.expire(entry)
		return session{}, false
	}
	s.mu.Unlock()
	return entry, true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	entry, ok := s.items[token]
	if ok {
		delete(s.items, token)
	}
	s.mu.Unlock()
	if ok {
		s.expire(entry)
	}
}

// sweep drops every expired session and returns how many were dropped.
func (s *sessionStore) sweep() int {
	now := s.now()
	var expired []session
	s.mu.Lock()
	for token, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, token)
			expired = append(expired, entry)
		}
	}
	s.mu.Unlock()
	for _, entry := range expired {
		s.expire(entry)
	}
	return len(expired)
}

func (s *sessionStore) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				logx.Ctx(ctx).Debug("http session sweep", "expired", n)
			}
		}
	}
}

func (s *sessionStore) expire(entry session) {
	if entry.cancel != nil {
		entry.cancel()
	}
	logx.WithSession(logx.Ctx(s.baseContext()), entry.id).Info("http session expired")
	if s.onExpire != nil {
		s.onExpire(entry.id)
	}
}

func (s *sessionStore) setBaseContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	s.mu.Lock()
	s.baseCtx = ctx
	for token, entry := range s.items {
		if entry.cancel != nil {
			entry.cancel()
		}
		entry.ctx, entry.cancel = context.WithCancel(ctx)
		s.items[token] = entry
	}
	s.mu.Unlock()
	logx.Ctx(ctx).Debug("http session base context set")
}

func (s *sessionStore) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.TODO()
}

func randomToken(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
