package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/internal/logx"
	"pkt.systems/shotpdf/schema"
)

// Server serves the HTTP API and the paste page.
type Server struct {
	cfg      Config
	service  core.Service
	sessions *sessionStore
	hub      *Hub
	basePath string
	baseHref string
}

const (
	sessionSweepInterval = time.Minute
	streamKeepalive      = 25 * time.Second
)

// NewServer constructs an HTTP server. Expired browser sessions close their
// capture session and drop their event history.
func NewServer(cfg Config, service core.Service, hub *Hub) *Server {
	cfg = cfg.withDefaults()
	if hub == nil {
		hub = NewHub(0)
	}
	s := &Server{
		cfg:      cfg,
		service:  service,
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
		baseHref: buildBaseHref(cfg.BaseURL, cfg.BasePath),
	}
	s.sessions = newSessionStore(time.Duration(cfg.SessionTTLHours)*time.Hour, s.closeCaptureSession)
	return s
}

// SetBaseContext sets the parent context for session lifetimes and starts
// the expired-session sweeper, which stops with ctx.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.sessions.setBaseContext(ctx)
	go s.sessions.runSweeper(ctx, sessionSweepInterval)
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS))))

	mux.HandleFunc("/api/state", s.withSession(s.handleState))
	mux.HandleFunc("/api/ingest", s.withSession(s.handleIngest))
	mux.HandleFunc("/api/clear", s.withSession(s.handleClear))
	mux.HandleFunc("/api/export", s.withSession(s.handleExport))
	mux.HandleFunc("/api/stream", s.withSession(s.handleStream))

	handler := withRequestLogging(mux, s.lookupSession)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, err := s.ensureSession(w, r); err != nil {
		logx.Ctx(r.Context()).Warn("http index session failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	data, err := fs.ReadFile(assetsFS, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	stat, err := fs.Stat(assetsFS, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	data = applyBaseHref(data, s.baseHref)
	http.ServeContent(w, r, "index.html", stat.ModTime(), bytes.NewReader(data))
}

const baseHrefPlaceholder = "<!-- BASE_HREF -->"

func applyBaseHref(data []byte, baseHref string) []byte {
	replacement := ""
	if strings.TrimSpace(baseHref) != "" {
		replacement = fmt.Sprintf(`<base href="%s" />`, html.EscapeString(baseHref))
	}
	return bytes.ReplaceAll(data, []byte(baseHrefPlaceholder), []byte(replacement))
}

type sessionPayload struct {
	Session schema.SessionInfo `json:"session"`
}

type ingestPayload struct {
	Session schema.SessionInfo `json:"session"`
	Decoded int                `json:"decoded"`
	Failed  int                `json:"failed"`
	Skipped int                `json:"skipped"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, id schema.SessionID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.GetSession(r.Context(), schema.GetSessionRequest{SessionID: id})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http state failed", "err", err)
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload{Session: resp.Session})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, id schema.SessionID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	items, err := readIngestItems(r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn("http ingest read failed", "err", err)
		writeError(w, status, err)
		return
	}
	log = log.With("items", len(items))
	resp, err := s.service.Ingest(r.Context(), schema.IngestRequest{SessionID: id, Items: items})
	payload := ingestPayload{
		Session: resp.Session,
		Decoded: resp.Decoded,
		Failed:  resp.Failed,
		Skipped: resp.Skipped,
	}
	if err != nil {
		payload.Error = err.Error()
		if resp.Decoded == 0 {
			log.Warn("http ingest failed", "err", err)
			writeJSON(w, errorStatus(err), payload)
			return
		}
		log.Warn("http ingest partial", "decoded", resp.Decoded, "failed", resp.Failed, "err", err)
	}
	writeJSON(w, http.StatusOK, payload)
	log.Info("http ingest ok", "decoded", resp.Decoded, "skipped", resp.Skipped, "state", resp.Session.State)
}

// readIngestItems turns a multipart body into one item per part, or a raw
// body into a single item. Media types follow the part or request headers,
// falling back to the file name and then the content.
func readIngestItems(r *http.Request) ([]schema.RawInput, error) {
	contentType := r.Header.Get("Content-Type")
	if schema.NormalizeMediaType(contentType) == "multipart/form-data" {
		return readMultipartItems(r)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", schema.ErrInvalidRequest)
	}
	name := r.URL.Query().Get("name")
	mediaType := schema.DetectMediaType(contentType, name, data)
	return []schema.RawInput{schema.BytesInput(mediaType, name, data)}, nil
}

func readMultipartItems(r *http.Request) ([]schema.RawInput, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	var items []schema.RawInput
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		name := part.FileName()
		if name == "" {
			name = part.FormName()
		}
		mediaType := schema.DetectMediaType(part.Header.Get("Content-Type"), part.FileName(), data)
		items = append(items, schema.BytesInput(mediaType, name, data))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no parts", schema.ErrInvalidRequest)
	}
	return items, nil
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, id schema.SessionID) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.Clear(r.Context(), schema.ClearRequest{SessionID: id})
	if err != nil {
		logx.Ctx(r.Context()).Warn("http clear failed", "err", err)
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload{Session: resp.Session})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id schema.SessionID) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	resp, err := s.service.Export(r.Context(), schema.ExportRequest{
		SessionID: id,
		Name:      r.URL.Query().Get("name"),
	})
	if err != nil {
		log.Warn("http export failed", "err", err)
		writeError(w, errorStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": resp.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Data)))
	w.Header().Set("X-Page-Count", strconv.Itoa(resp.Pages))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Data)
	log.Info("http export ok", "name", resp.Name, "pages", resp.Pages, "bytes", len(resp.Data), "path", resp.Path)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, id schema.SessionID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	resp, err := s.service.GetSession(r.Context(), schema.GetSessionRequest{SessionID: id})
	if err != nil {
		log.Warn("http stream snapshot failed", "err", err)
		writeError(w, errorStatus(err), err)
		return
	}
	info := resp.Session
	_ = writeSSEvent(w, StreamEvent{
		Type:      streamSnapshot,
		Session:   &info,
		Timestamp: time.Now(),
	})
	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(id, lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "state", info.State)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				log.Info("http stream closed", "reason", "session ended")
				return
			}
			if event.Seq <= lastID {
				continue
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		case <-keepalive.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// withSession resolves the browser session, creating one on first contact,
// and binds its capture session to the request context.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, schema.SessionID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.ensureSession(w, r)
		if err != nil {
			logx.Ctx(r.Context()).With("remote", clientIP(r)).Warn("http session failed", "err", err)
			writeError(w, errorStatus(err), err)
			return
		}
		log := logx.WithSessionCtx(r.Context(), entry.id).With("remote", clientIP(r))
		ctx := logx.ContextWithSessionLogger(r.Context(), log, entry.id)
		next(w, r.WithContext(ctx), entry.id)
	}
}

func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) (session, error) {
	entry, ok := session{}, false
	if token := s.sessionToken(r); token != "" {
		entry, ok = s.sessions.get(token)
	}
	if !ok {
		var token string
		token, entry = s.sessions.create()
		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  entry.expiresAt,
		})
	}
	if _, err := s.service.OpenSession(r.Context(), schema.OpenSessionRequest{SessionID: entry.id}); err != nil {
		return session{}, err
	}
	return entry, nil
}

func (s *Server) closeCaptureSession(id schema.SessionID) {
	ctx := s.sessions.baseContext()
	if _, err := s.service.CloseSession(ctx, schema.CloseSessionRequest{SessionID: id}); err != nil && !errors.Is(err, schema.ErrSessionNotFound) {
		logx.WithSession(logx.Ctx(ctx), id).Warn("http session close failed", "err", err)
	}
	s.hub.Remove(id)
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) lookupSession(r *http.Request) schema.SessionID {
	if s == nil || r == nil {
		return ""
	}
	token := s.sessionToken(r)
	if token == "" {
		return ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return ""
	}
	return entry.id
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, schema.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrSessionBusy),
		errors.Is(err, schema.ErrInvalidState),
		errors.Is(err, schema.ErrIngestionCanceled):
		return http.StatusConflict
	case errors.Is(err, schema.ErrDecode), errors.Is(err, schema.ErrGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidName),
		errors.Is(err, schema.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
