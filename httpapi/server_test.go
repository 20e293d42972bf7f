package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/schema"
)

func newTestServer(t *testing.T) (*Server, http.Handler, core.Service) {
	t.Helper()
	hub := NewHub(16)
	service, err := core.NewService(schema.ServiceConfig{}, core.ServiceDeps{EventSink: hub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	srv := NewServer(Config{SessionCookie: "shot"}, service, hub)
	return srv, srv.Handler(), service
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: uint8(y), B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type testPart struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts ...testPart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="item"; filename=%q`, part.name))
		if part.contentType != "" {
			header.Set("Content-Type", part.contentType)
		}
		w, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write(part.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// client replays the session cookie across requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (c *client) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "shot" {
			c.cookie = cookie
		}
	}
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestIndexSetsSessionCookie(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}
	rec := c.do(http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if c.cookie == nil || c.cookie.Value == "" {
		t.Fatalf("expected session cookie")
	}
	if !strings.Contains(rec.Body.String(), "api/stream") && !strings.Contains(rec.Body.String(), "app.js") {
		t.Fatalf("expected paste page, got %q", rec.Body.String())
	}
	first := c.cookie.Value
	c.do(http.MethodGet, "/api/state", nil, "")
	if c.cookie.Value != first {
		t.Fatalf("expected cookie to be reused")
	}
}

func TestIngestThenExport(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}

	body, contentType := multipartBody(t,
		testPart{name: "note.txt", contentType: "text/plain", data: []byte("hello")},
		testPart{name: "shot.png", contentType: "image/png", data: encodePNG(t, 40, 100)},
	)
	rec := c.do(http.MethodPost, "/api/ingest", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody[ingestPayload](t, rec)
	if payload.Decoded != 1 || payload.Skipped != 1 || payload.Failed != 0 {
		t.Fatalf("unexpected ingest counts: %+v", payload)
	}
	if payload.Session.State != schema.StateReady || payload.Session.Pages != 2 {
		t.Fatalf("unexpected session: %+v", payload.Session)
	}

	rec = c.do(http.MethodGet, "/api/export?name=capture", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "capture.pdf") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if pages := rec.Header().Get("X-Page-Count"); pages != "2" {
		t.Fatalf("expected 2 pages, got %q", pages)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected pdf body")
	}
}

func TestIngestRawBodySniffsType(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}
	rec := c.do(http.MethodPost, "/api/ingest", bytes.NewReader(encodePNG(t, 10, 10)), "application/octet-stream")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload := decodeBody[ingestPayload](t, rec); payload.Decoded != 1 {
		t.Fatalf("expected decoded image, got %+v", payload)
	}
}

func TestIngestCorruptImage(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}
	body, contentType := multipartBody(t, testPart{name: "bad.png", contentType: "image/png", data: []byte("not a png")})
	rec := c.do(http.MethodPost, "/api/ingest", body, contentType)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody[ingestPayload](t, rec)
	if payload.Failed != 1 || payload.Error == "" {
		t.Fatalf("expected failure details, got %+v", payload)
	}
	if payload.Session.State != schema.StateEmpty {
		t.Fatalf("expected empty state after failed ingest, got %q", payload.Session.State)
	}
}

func TestExportWhileEmptyConflicts(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}
	rec := c.do(http.MethodGet, "/api/export", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClearResetsState(t *testing.T) {
	_, handler, _ := newTestServer(t)
	c := &client{t: t, handler: handler}
	c.do(http.MethodPost, "/api/ingest", bytes.NewReader(encodePNG(t, 8, 8)), "image/png")
	rec := c.do(http.MethodPost, "/api/clear", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[sessionPayload](t, rec).Session; got.State != schema.StateEmpty || got.Width != 0 {
		t.Fatalf("expected cleared session, got %+v", got)
	}
	if rec := c.do(http.MethodGet, "/api/clear", nil, ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSessionExpiryClosesCaptureSession(t *testing.T) {
	srv, handler, service := newTestServer(t)
	c := &client{t: t, handler: handler}
	state := decodeBody[sessionPayload](t, c.do(http.MethodGet, "/api/state", nil, ""))
	id := state.Session.ID
	srv.sessions.delete(c.cookie.Value)
	_, err := service.GetSession(context.Background(), schema.GetSessionRequest{SessionID: id})
	if !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected capture session to be closed, got %v", err)
	}
}

func TestBasePathMount(t *testing.T) {
	hub := NewHub(4)
	service, err := core.NewService(schema.ServiceConfig{}, core.ServiceDeps{EventSink: hub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	srv := NewServer(Config{BasePath: "/shots"}, service, hub)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shots", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shots/", nil))
	if !strings.Contains(rec.Body.String(), `<base href="/shots/" />`) {
		t.Fatalf("expected base href in index")
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{schema.ErrSessionNotFound, http.StatusNotFound},
		{schema.ErrSessionBusy, http.StatusConflict},
		{&core.InvalidStateError{Op: "export", State: schema.StateEmpty}, http.StatusConflict},
		{&core.DecodeError{Stage: core.DecodeStageDecode, Err: errors.New("bad")}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", schema.ErrInvalidName), http.StatusBadRequest},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.err); got != tc.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
