package shotpdf

import (
	"context"
	"errors"
	"net"
	"sync"

	"pkt.systems/shotpdf/core"
	"pkt.systems/shotpdf/httpapi"
	"pkt.systems/shotpdf/schema"
	"pkt.systems/pslog"
)

// Server composes the capture service and its HTTP front end.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service    schema.ServiceConfig
	HTTP       httpapi.Config
	HubHistory int
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	listener   net.Listener
}

// WithHTTP enables the HTTP API/UI server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithListener serves HTTP on an already bound listener instead of
// HTTP.Addr. It implies WithHTTP.
func WithListener(ln net.Listener) ServerOption {
	return func(o *serverOptions) {
		o.enableHTTP = true
		o.listener = ln
	}
}

// New constructs a composable shotpdf server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP {
		return nil, errors.New("no services enabled")
	}

	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	hub := httpapi.NewHub(cfg.HubHistory)
	serviceDeps := deps.ServiceDeps
	if serviceDeps.EventSink == nil {
		serviceDeps.EventSink = hub
	} else if serviceDeps.EventSink != hub {
		serviceDeps.EventSink = eventFanout{sinks: []core.EventSink{serviceDeps.EventSink, hub}}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	return &compositeServer{
		cfg:      cfg,
		options:  options,
		service:  service,
		httpSrv:  httpapi.NewServer(cfg.HTTP, service, hub),
		listener: options.listener,
	}, nil
}

type compositeServer struct {
	cfg      ServerConfig
	options  serverOptions
	service  core.Service
	httpSrv  *httpapi.Server
	listener net.Listener
	logger   pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	addr := s.cfg.HTTP.Addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	log.Info(
		"server start",
		"http_addr", addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"page_width", s.cfg.Service.Geometry.PageWidth,
		"page_height", s.cfg.Service.Geometry.PageHeight,
		"output_dir", s.cfg.Service.OutputDir,
	)
	s.httpSrv.SetBaseContext(s.ctx)
	go func() {
		defer close(s.done)
		var err error
		if s.listener != nil {
			err = httpapi.Serve(s.ctx, s.listener, s.httpSrv.Handler())
		} else {
			err = httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler())
		}
		if err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	done := s.done
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil || done == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
