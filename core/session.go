package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pkt.systems/shotpdf/internal/logx"
	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

// Session is one capture session: a surface, its state, and the pipeline
// that feeds it. Only the session mutates its surface.
type Session struct {
	id       schema.SessionID
	cfg      schema.ServiceConfig
	decoder  *Decoder
	exporter *Exporter
	surface  *Surface
	sink     EventSink
	logger   pslog.Logger

	mu        sync.Mutex
	state     schema.SessionState
	pending   *Ingestion
	updatedAt time.Time
}

// Ingestion is a pending ingestion started by BeginIngestion.
type Ingestion struct {
	ctx    context.Context
	cancel context.CancelFunc
	prev   schema.SessionState
}

// Context is canceled when the ingestion ends or the session is cleared.
func (i *Ingestion) Context() context.Context {
	return i.ctx
}

// IngestResult reports the outcome of Ingest.
type IngestResult struct {
	Decoded int
	Failed  int
	Skipped int
}

// NewSession constructs an empty session.
func NewSession(id schema.SessionID, cfg schema.ServiceConfig, deps ServiceDeps) (*Session, error) {
	if err := schema.ValidateSessionID(id); err != nil {
		return nil, err
	}
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	return &Session{
		id:        id,
		cfg:       normalized,
		decoder:   NewDecoder(normalized),
		exporter:  NewExporter(normalized.Geometry, deps.Documents),
		surface:   NewSurface(),
		sink:      deps.EventSink,
		logger:    logx.WithSession(deps.Logger, id),
		state:     schema.StateEmpty,
		updatedAt: normalized.Now(),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() schema.SessionID {
	return s.id
}

// State returns the current state.
func (s *Session) State() schema.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info reports the session state and surface size.
func (s *Session) Info() schema.SessionInfo {
	s.mu.Lock()
	state := s.state
	updated := s.updatedAt
	s.mu.Unlock()
	w, h := s.surface.Size()
	info := schema.SessionInfo{ID: s.id, State: state, Width: w, Height: h, UpdatedAt: updated}
	if state == schema.StateReady {
		if pages, err := PageCount(w, h, s.cfg.Geometry); err == nil {
			info.Pages = pages
		}
	}
	return info
}

// BeginIngestion moves the session to loading. A second ingestion while one
// is pending is rejected with schema.ErrSessionBusy.
func (s *Session) BeginIngestion(ctx context.Context) (*Ingestion, error) {
	if ctx == nil {
		return nil, errors.New("missing context")
	}
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		s.logger.Warn("session ingest rejected", "reason", "busy")
		return nil, schema.ErrSessionBusy
	}
	ictx, cancel := context.WithCancel(ctx)
	ing := &Ingestion{ctx: ictx, cancel: cancel, prev: s.state}
	s.pending = ing
	event := s.transitionLocked(schema.StateLoading, nil)
	s.mu.Unlock()
	s.emit(event)
	return ing, nil
}

// CompleteIngestion draws every image in order, each replacing the previous
// contents, and moves the session to ready. A stale ingestion returns
// schema.ErrIngestionCanceled without touching the surface.
func (s *Session) CompleteIngestion(ing *Ingestion, images ...DecodedImage) error {
	if ing == nil {
		return errors.New("missing ingestion")
	}
	if len(images) == 0 {
		return fmt.Errorf("%w: no images to draw", schema.ErrInvalidRequest)
	}
	for _, img := range images {
		if img.Image == nil || img.Width <= 0 || img.Height <= 0 {
			return &GeometryError{Width: img.Width, Height: img.Height, Reason: "nothing to draw"}
		}
	}
	s.mu.Lock()
	if s.pending != ing {
		s.mu.Unlock()
		return schema.ErrIngestionCanceled
	}
	for _, img := range images {
		if err := s.surface.Draw(img); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.pending = nil
	ing.cancel()
	event := s.transitionLocked(schema.StateReady, nil)
	s.mu.Unlock()
	s.emit(event)
	return nil
}

// AbortIngestion ends a pending ingestion without drawing and restores the
// state held before it began. Stale ingestions are ignored.
func (s *Session) AbortIngestion(ing *Ingestion, cause error) {
	if ing == nil {
		return
	}
	s.mu.Lock()
	if s.pending != ing {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	ing.cancel()
	event := s.transitionLocked(ing.prev, cause)
	s.mu.Unlock()
	s.emit(event)
}

// Ingest decodes every image-typed item in order and draws the results.
// Non-image items are skipped. When some images fail, the others are still
// drawn and the failures are returned joined; when all fail, the surface and
// state are left as they were.
func (s *Session) Ingest(ctx context.Context, items []schema.RawInput) (IngestResult, error) {
	if ctx == nil {
		return IngestResult{}, errors.New("missing context")
	}
	images := SelectImages(items)
	result := IngestResult{Skipped: len(items) - len(images)}
	log := s.logger
	if len(images) == 0 {
		log.Debug("session ingest skipped", "items", len(items))
		return result, nil
	}
	ing, err := s.BeginIngestion(ctx)
	if err != nil {
		return result, err
	}
	log.Info("session ingest start", "images", len(images), "skipped", result.Skipped)

	decoded := make([]DecodedImage, 0, len(images))
	var errs []error
	for _, item := range images {
		img, err := s.decoder.Decode(ing.Context(), item)
		if err != nil {
			if ing.Context().Err() != nil {
				if ctx.Err() != nil {
					s.AbortIngestion(ing, ctx.Err())
					log.Warn("session ingest canceled", "err", ctx.Err())
					return result, ctx.Err()
				}
				log.Info("session ingest superseded by clear")
				return result, schema.ErrIngestionCanceled
			}
			logx.WithInput(log, item.MediaType, item.Name).Warn("session decode failed", "err", err)
			errs = append(errs, err)
			result.Failed++
			continue
		}
		logx.WithInput(log, item.MediaType, item.Name).Debug("session decode ok", "format", img.Format, "width", img.Width, "height", img.Height)
		decoded = append(decoded, img)
	}
	joined := errors.Join(errs...)
	if len(decoded) == 0 {
		s.AbortIngestion(ing, joined)
		log.Warn("session ingest failed", "failed", result.Failed)
		return result, joined
	}
	if err := s.CompleteIngestion(ing, decoded...); err != nil {
		if !errors.Is(err, schema.ErrIngestionCanceled) {
			s.AbortIngestion(ing, err)
		}
		return result, err
	}
	result.Decoded = len(decoded)
	w, h := s.surface.Size()
	log.Info("session ingest ok", "decoded", result.Decoded, "failed", result.Failed, "width", w, "height", h)
	return result, joined
}

// Clear erases the surface and moves the session to empty. A pending
// ingestion is canceled and its completion discarded. Clearing an empty
// session is a no-op.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.state == schema.StateEmpty && s.pending == nil {
		s.mu.Unlock()
		return
	}
	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
	}
	s.surface.Clear()
	event := s.transitionLocked(schema.StateEmpty, nil)
	s.mu.Unlock()
	s.logger.Info("session cleared")
	s.emit(event)
}

// ExportDocument renders the surface into a paginated document. It is only
// valid while ready.
func (s *Session) ExportDocument(ctx context.Context, name string) (Document, error) {
	if ctx == nil {
		return Document{}, errors.New("missing context")
	}
	if name == "" {
		name = s.cfg.DocumentName
	}
	docName, err := schema.NormalizeDocumentName(name)
	if err != nil {
		return Document{}, err
	}
	if state := s.State(); state != schema.StateReady {
		s.logger.Warn("session export rejected", "state", state)
		return Document{}, &InvalidStateError{Op: "export", State: state}
	}
	snap, err := s.surface.Snapshot()
	if err != nil {
		return Document{}, err
	}
	pages, err := PageCount(snap.Width, snap.Height, s.cfg.Geometry)
	if err != nil {
		return Document{}, err
	}
	if pages > s.cfg.MaxPages {
		return Document{}, &GeometryError{Width: snap.Width, Height: snap.Height, Reason: fmt.Sprintf("needs %d pages, limit is %d", pages, s.cfg.MaxPages)}
	}
	segments, err := Plan(snap.Width, snap.Height, s.cfg.Geometry)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.exporter.Export(ctx, snap, segments, DocumentMeta{
		Title:     s.cfg.Title,
		Author:    s.cfg.Author,
		CreatedAt: s.cfg.Now(),
	})
	if err != nil {
		s.logger.Warn("session export failed", "err", err)
		return Document{}, err
	}
	doc.Name = docName
	s.logger.Info("session export ok", "name", doc.Name, "pages", doc.Pages, "bytes", len(doc.Data))
	return doc, nil
}

// transitionLocked sets the state and returns the event to emit once the
// lock is released.
func (s *Session) transitionLocked(next schema.SessionState, cause error) schema.StateEvent {
	prev := s.state
	s.state = next
	s.updatedAt = s.cfg.Now()
	event := schema.StateEvent{
		SessionID: s.id,
		State:     next,
		Previous:  prev,
		Timestamp: s.updatedAt,
	}
	event.Width, event.Height = s.surface.Size()
	if cause != nil {
		event.Error = cause.Error()
	}
	s.logger.Debug("session state", "from", prev, "to", next)
	return event
}

func (s *Session) emit(event schema.StateEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnStateChange(event)
}
