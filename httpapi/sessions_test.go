package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"pkt.systems/shotpdf/schema"
)

type sessionTestKey struct{}

type expiryRecorder struct {
	mu  sync.Mutex
	ids []schema.SessionID
}

func (r *expiryRecorder) record(id schema.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *expiryRecorder) list() []schema.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.SessionID(nil), r.ids...)
}

func TestSessionStoreCreateGetDelete(t *testing.T) {
	rec := &expiryRecorder{}
	store := newSessionStore(time.Hour, rec.record)
	token, sess := store.create()
	if token == "" {
		t.Fatalf("expected token")
	}
	if err := schema.ValidateSessionID(sess.id); err != nil {
		t.Fatalf("expected valid session id, got %q: %v", sess.id, err)
	}
	if _, ok := store.get(token); !ok {
		t.Fatalf("expected session to be found")
	}
	store.delete(token)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to be deleted")
	}
	select {
	case <-sess.ctx.Done():
	default:
		t.Fatalf("expected session context to be canceled")
	}
	if got := rec.list(); len(got) != 1 || got[0] != sess.id {
		t.Fatalf("expected expiry callback for %q, got %v", sess.id, got)
	}
}

func TestSessionStoreExpiration(t *testing.T) {
	rec := &expiryRecorder{}
	store := newSessionStore(time.Minute, rec.record)
	now := time.Now()
	store.now = func() time.Time { return now }
	token, sess := store.create()
	now = now.Add(2 * time.Minute)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected expired session")
	}
	select {
	case <-sess.ctx.Done():
	default:
		t.Fatalf("expected session context to be canceled")
	}
	if got := rec.list(); len(got) != 1 {
		t.Fatalf("expected one expiry, got %v", got)
	}
}

func TestSessionStoreSweep(t *testing.T) {
	rec := &expiryRecorder{}
	store := newSessionStore(time.Minute, rec.record)
	now := time.Now()
	store.now = func() time.Time { return now }
	_, first := store.create()
	now = now.Add(30 * time.Second)
	keep, _ := store.create()
	now = now.Add(45 * time.Second)
	if n := store.sweep(); n != 1 {
		t.Fatalf("expected one expired session, got %d", n)
	}
	if got := rec.list(); len(got) != 1 || got[0] != first.id {
		t.Fatalf("expected %q to expire, got %v", first.id, got)
	}
	if _, ok := store.get(keep); !ok {
		t.Fatalf("expected newer session to survive")
	}
}

func TestSessionStoreBaseContext(t *testing.T) {
	store := newSessionStore(time.Hour, nil)
	base := context.WithValue(context.Background(), sessionTestKey{}, "value")
	store.setBaseContext(base)
	_, sess := store.create()
	if got := sess.ctx.Value(sessionTestKey{}); got != "value" {
		t.Fatalf("expected base context value, got %v", got)
	}
}
