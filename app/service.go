package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/rescue/api"
	apievents "github.com/kilianp07/rescue/api/events"
	apijournal "github.com/kilianp07/rescue/api/journal"
	"github.com/kilianp07/rescue/api/requests"
	"github.com/kilianp07/rescue/api/teams"
	"github.com/kilianp07/rescue/app/plugins"
	"github.com/kilianp07/rescue/config"
	"github.com/kilianp07/rescue/core/dispatch"
	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/journal"
	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
	coremon "github.com/kilianp07/rescue/core/monitoring"
	"github.com/kilianp07/rescue/core/store"
	"github.com/kilianp07/rescue/infra/logger"
	"github.com/kilianp07/rescue/infra/metrics"
	"github.com/kilianp07/rescue/infra/monitoring"
	"github.com/kilianp07/rescue/infra/notify/local"
	"github.com/kilianp07/rescue/infra/telemetry"
)

// Service owns the dispatch controller and everything wired around it.
type Service struct {
	Controller *dispatch.Controller

	cfg       *config.Config
	store     store.Store
	notifier  *events.Multi
	stream    *local.Publisher
	journal   *journal.Recorder
	sink      coremetrics.Sink
	telemetry *telemetry.Manager
	log       logger.Logger
}

// Option customises New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer sets where the field-report counters are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a Service from the configuration. On error every backend
// opened so far is closed.
func New(cfg *config.Config, opts ...Option) (svc *Service, err error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if s.store, err = plugins.Stores.Create(cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	pubs := make([]events.Publisher, 0, len(cfg.Notifiers)+2)
	for _, nc := range cfg.Notifiers {
		p, err := plugins.Notifiers.Create(nc)
		if err != nil {
			s.notifier = events.NewMulti(pubs...)
			return nil, fmt.Errorf("notifier: %w", err)
		}
		if lp, ok := p.(*local.Publisher); ok && s.stream == nil {
			s.stream = lp
		}
		pubs = append(pubs, p)
	}
	// the SSE endpoint always needs an in-process bus
	if s.stream == nil {
		s.stream = local.New(local.Config{Buffer: cfg.HTTP.SSEBuffer})
		pubs = append(pubs, s.stream)
	}
	if mod, ok := plugins.JournalModule(cfg.Journal); ok {
		js, err := plugins.JournalStores.Create(mod)
		if err != nil {
			s.notifier = events.NewMulti(pubs...)
			return nil, fmt.Errorf("journal: %w", err)
		}
		s.journal = journal.NewRecorder(js)
		pubs = append(pubs, s.journal)
	}
	s.notifier = events.NewMulti(pubs...)

	if s.sink, err = coremetrics.NewSink(cfg.Metrics.Sinks, metrics.Combine); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	s.Controller, err = dispatch.NewController(s.store, s.notifier, s.sink, logger.New("dispatch"),
		dispatch.WithConfig(cfg.Dispatch))
	if err != nil {
		return nil, err
	}

	if cfg.Telemetry.Feed.Enabled {
		s.telemetry, err = telemetry.NewManager(cfg.Telemetry.MQTT, cfg.Telemetry.Feed, s.Controller, o.registerer)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
	}

	names := make([]string, 0, len(pubs))
	for _, p := range pubs {
		names = append(names, events.NameOf(p))
	}
	s.log.Infof("service ready: store=%s notifiers=%v journal=%s", cfg.Store.Type, names, cfg.Journal.Backend)
	return s, nil
}

// Handler returns the REST API, including the SSE stream and journal query.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	requests.Register(mux, s.Controller)
	teams.Register(mux, s.Controller)
	mux.Handle("GET /api/events", apievents.NewHandler(s.stream))
	if s.journal != nil {
		mux.Handle("GET /api/journal", apijournal.NewHandler(s.journal))
	}
	mux.HandleFunc("GET /api/catalog", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, model.Capabilities())
	})

	root := http.NewServeMux()
	root.Handle("/api/", api.RequireToken(s.cfg.HTTP.BearerToken, mux))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return root
}

// Run serves the API, the metrics endpoint and the field-report feed until
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.StartBackground(ctx)

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("API listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// open event streams never end on their own
	_ = s.stream.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("api shutdown: %v", err)
	}
	return nil
}

// StartBackground starts the metrics endpoint and the field-report feed.
// Both stop with ctx.
func (s *Service) StartBackground(ctx context.Context) {
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.telemetry != nil {
		go s.telemetry.Start(ctx)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.notifier != nil {
		errs = append(errs, s.notifier.Close())
	}
	if c, ok := s.sink.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
