package core

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/shotpdf/internal/logx"
	"pkt.systems/shotpdf/internal/persist"
	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

// service implements Service over a set of sessions.
type service struct {
	cfg      schema.ServiceConfig
	deps     ServiceDeps
	store    *persist.Store
	logger   pslog.Logger
	mu       sync.Mutex
	sessions map[schema.SessionID]*Session
}

// NewService constructs the capture service.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	var store *persist.Store
	if normalized.OutputDir != "" {
		store, err = persist.NewStoreWithLogger(normalized.OutputDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	return &service{
		cfg:      normalized,
		deps:     deps,
		store:    store,
		logger:   deps.Logger,
		sessions: make(map[schema.SessionID]*Session),
	}, nil
}

func (s *service) OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error) {
	if ctx == nil {
		return schema.OpenSessionResponse{}, errors.New("missing context")
	}
	id := req.SessionID
	if id == "" {
		id = newSessionID()
	}
	if err := schema.ValidateSessionID(id); err != nil {
		return schema.OpenSessionResponse{}, err
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		created, err := NewSession(id, s.cfg, s.deps)
		if err != nil {
			s.mu.Unlock()
			return schema.OpenSessionResponse{}, err
		}
		sess = created
		s.sessions[id] = sess
	}
	count := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		logx.WithSessionCtx(ctx, id).Info("service session open", "sessions", count)
	}
	return schema.OpenSessionResponse{Session: sess.Info()}, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	if ctx == nil {
		return schema.CloseSessionResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	if ok {
		delete(s.sessions, req.SessionID)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	info := sess.Info()
	sess.Clear()
	logx.WithSessionCtx(ctx, req.SessionID).Info("service session close", "sessions", count)
	return schema.CloseSessionResponse{Session: info}, nil
}

func (s *service) GetSession(ctx context.Context, req schema.GetSessionRequest) (schema.GetSessionResponse, error) {
	if ctx == nil {
		return schema.GetSessionResponse{}, errors.New("missing context")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.GetSessionResponse{}, err
	}
	return schema.GetSessionResponse{Session: sess.Info()}, nil
}

func (s *service) Ingest(ctx context.Context, req schema.IngestRequest) (schema.IngestResponse, error) {
	if ctx == nil {
		return schema.IngestResponse{}, errors.New("missing context")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.IngestResponse{}, err
	}
	result, err := sess.Ingest(ctx, req.Items)
	return schema.IngestResponse{
		Session: sess.Info(),
		Decoded: result.Decoded,
		Failed:  result.Failed,
		Skipped: result.Skipped,
	}, err
}

func (s *service) Clear(ctx context.Context, req schema.ClearRequest) (schema.ClearResponse, error) {
	if ctx == nil {
		return schema.ClearResponse{}, errors.New("missing context")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.ClearResponse{}, err
	}
	sess.Clear()
	return schema.ClearResponse{Session: sess.Info()}, nil
}

func (s *service) Export(ctx context.Context, req schema.ExportRequest) (schema.ExportResponse, error) {
	if ctx == nil {
		return schema.ExportResponse{}, errors.New("missing context")
	}
	sess, err := s.session(req.SessionID)
	if err != nil {
		return schema.ExportResponse{}, err
	}
	doc, err := sess.ExportDocument(ctx, req.Name)
	if err != nil {
		return schema.ExportResponse{}, err
	}
	resp := schema.ExportResponse{Name: doc.Name, Pages: doc.Pages, Data: doc.Data}
	if s.store != nil {
		path, err := s.store.Save(doc.Name, doc.Data)
		if err != nil {
			return schema.ExportResponse{}, err
		}
		resp.Path = path
	}
	return resp, nil
}

func (s *service) session(id schema.SessionID) (*Session, error) {
	if err := schema.ValidateSessionID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, schema.ErrSessionNotFound
	}
	return sess, nil
}
