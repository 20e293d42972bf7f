package shotpdf

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"testing"
	"time"

	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/httpapi"
	"pkt.systems/shotpdf/schema"
)

type recordingSink struct {
	mu     sync.Mutex
	events []schema.StateEvent
}

func (r *recordingSink) OnStateChange(event schema.StateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestNewRequiresService(t *testing.T) {
	if _, err := New(ServerConfig{}, ServerDeps{}); err == nil {
		t.Fatalf("expected error without enabled services")
	}
}

func TestEventFanoutSkipsNil(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	fan := eventFanout{sinks: []core.EventSink{a, nil, b}}
	fan.OnStateChange(schema.StateEvent{SessionID: "s", State: schema.StateReady})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d", len(a.events), len(b.events))
	}
}

func TestServerServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server, err := New(ServerConfig{HTTP: httpapi.Config{}}, ServerDeps{}, WithListener(ln))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := server.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	resp, err := httpClient.Get("http://" + ln.Addr().String() + "/api/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	var payload struct {
		Session schema.SessionInfo `json:"session"`
	}
	err = json.NewDecoder(resp.Body).Decode(&payload)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if payload.Session.State != schema.StateEmpty || payload.Session.ID == "" {
		t.Fatalf("unexpected session: %+v", payload.Session)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := server.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestServerFansOutToExtraSink(t *testing.T) {
	sink := &recordingSink{}
	server, err := New(ServerConfig{}, ServerDeps{ServiceDeps: core.ServiceDeps{EventSink: sink}}, WithHTTP())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cs := server.(*compositeServer)
	ctx := context.Background()
	open, err := cs.service.OpenSession(ctx, schema.OpenSessionRequest{})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if _, err := cs.service.Ingest(ctx, schema.IngestRequest{
		SessionID: open.Session.ID,
		Items:     []schema.RawInput{schema.BytesInput("image/png", "bad.png", []byte("nope"))},
	}); err == nil {
		t.Fatalf("expected decode failure")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("expected loading and restore events, got %+v", sink.events)
	}
}
