package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/field"
	"github.com/meikuraledutech/pipeline/layout"
	"golang.org/x/sync/errgroup"
)

// Backend is everything an editing session needs from the appliance API.
type Backend interface {
	NodeBackend
	field.OptionFetcher

	Schematics(ctx context.Context) (pipeline.Catalog, error)
	Pipeline(ctx context.Context, pipelineID int64) (*pipeline.Pipeline, error)
	UpdatePipeline(ctx context.Context, pipelineID int64, p pipeline.Payload) (*pipeline.Pipeline, error)
	Devices(ctx context.Context) ([]pipeline.Device, error)
}

// Config tunes an editing session.
type Config struct {
	// SettleDelay is how long after hydration the first auto layout runs,
	// giving the renderer time to measure nodes. Zero runs it immediately;
	// a negative value disables it.
	SettleDelay time.Duration
	// Layout is the engine used by AutoLayout. Nil selects layout.Layered.
	Layout layout.Engine
}

// DefaultConfig returns the settings the console uses.
func DefaultConfig() Config {
	return Config{SettleDelay: 100 * time.Millisecond}
}

// Session is one pipeline opened for editing.
type Session struct {
	Graph      *Graph
	Controller *Controller
	Relations  *field.RelationLoader

	backend    Backend
	pipelineID int64
	logger     *slog.Logger
	notifier   Notifier

	mu      sync.Mutex
	devices []pipeline.Device
	pending pipeline.Payload
	timer   *time.Timer
}

// Open loads the schematic catalog, the pipeline and the device list
// concurrently and hydrates a graph. A missing catalog fails the whole
// session with pipeline.ErrSchemaUnavailable; a missing device list only
// warns.
func Open(ctx context.Context, backend Backend, pipelineID int64, cfg Config, logger *slog.Logger, notifier Notifier) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	var (
		catalog pipeline.Catalog
		p       *pipeline.Pipeline
		devices []pipeline.Device
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := backend.Schematics(gctx)
		if err != nil {
			if !errors.Is(err, pipeline.ErrSchemaUnavailable) {
				err = fmt.Errorf("%w: %w", pipeline.ErrSchemaUnavailable, err)
			}
			return err
		}
		catalog = c
		return nil
	})
	g.Go(func() error {
		got, err := backend.Pipeline(gctx, pipelineID)
		if err != nil {
			return fmt.Errorf("load pipeline %d: %w", pipelineID, err)
		}
		p = got
		return nil
	})
	g.Go(func() error {
		got, err := backend.Devices(gctx)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load devices", "error", err)
			return nil
		}
		devices = got
		return nil
	})
	if err := g.Wait(); err != nil {
		notifier.Notify(ctx, Notification{Level: LevelError, Message: "Failed to load pipeline", Err: err})
		return nil, err
	}

	s := &Session{
		backend:    backend,
		pipelineID: pipelineID,
		logger:     logger,
		notifier:   notifier,
		devices:    devices,
	}
	s.Graph = NewGraph(logger, cfg.Layout, SinkFunc(s.graphChanged))
	s.Controller = NewController(s.Graph, backend, notifier, logger)
	s.Relations = field.NewRelationLoader(backend, logger)

	s.Graph.SetCatalog(catalog)
	s.hydrate(ctx, p)

	switch {
	case cfg.SettleDelay == 0:
		s.layout(ctx)
	case cfg.SettleDelay > 0:
		s.timer = time.AfterFunc(cfg.SettleDelay, func() { s.layout(context.WithoutCancel(ctx)) })
	}
	return s, nil
}

// Close stops a pending auto layout.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// PipelineID is the id of the edited pipeline.
func (s *Session) PipelineID() int64 { return s.pipelineID }

// Devices returns the devices known when the session was opened.
func (s *Session) Devices() []pipeline.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Device(nil), s.devices...)
}

// CaptureDevices are the devices offered as audio sources.
func (s *Session) CaptureDevices() []pipeline.Device {
	return filterDevices(s.Devices(), pipeline.Device.IsCapture)
}

// PlaybackDevices are the devices offered as audio outputs.
func (s *Session) PlaybackDevices() []pipeline.Device {
	return filterDevices(s.Devices(), pipeline.Device.IsPlayback)
}

func filterDevices(all []pipeline.Device, keep func(pipeline.Device) bool) []pipeline.Device {
	out := make([]pipeline.Device, 0, len(all))
	for _, d := range all {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Pending is the backend shape last produced by the graph, i.e. what Submit
// would send.
func (s *Session) Pending() pipeline.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Refresh refetches the pipeline. The graph is only rebuilt when the
// pipeline changed identity or node count.
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	p, err := s.backend.Pipeline(ctx, s.pipelineID)
	if err != nil {
		return false, fmt.Errorf("refresh pipeline %d: %w", s.pipelineID, err)
	}
	return s.hydrate(ctx, p), nil
}

// Submit sends the whole graph to the backend and rebuilds the graph from
// the stored result, since the backend assigns fresh node ids.
func (s *Session) Submit(ctx context.Context) error {
	payload := s.Graph.Payload()
	p, err := s.backend.UpdatePipeline(ctx, s.pipelineID, payload)
	if err != nil {
		s.notifier.Notify(ctx, Notification{Level: LevelError, Message: "Failed to save pipeline", Err: err})
		return fmt.Errorf("submit pipeline %d: %w", s.pipelineID, err)
	}
	s.Graph.Reset()
	s.hydrate(ctx, p)
	s.layout(ctx)
	s.notifier.Notify(ctx, Notification{Level: LevelSuccess, Message: "Pipeline saved successfully"})
	return nil
}

// Relation loads the options of a relation widget.
func (s *Session) Relation(ctx context.Context, w field.Widget) (field.Widget, error) {
	if w.Relation == nil {
		return w, nil
	}
	state, err := s.Relations.Load(ctx, *w.Relation)
	if errors.Is(err, field.ErrSuperseded) {
		return w.WithRelation(s.Relations.State(*w.Relation)), err
	}
	return w.WithRelation(state), err
}

func (s *Session) hydrate(ctx context.Context, p *pipeline.Pipeline) bool {
	replaced, warnings := s.Graph.Hydrate(p, s.Graph.Catalog())
	for _, w := range warnings {
		s.notifier.Notify(ctx, Notification{Level: LevelWarning, Message: "Pipeline loaded with warnings", Err: w})
	}
	return replaced
}

// layout ignores the error; AutoLayout already logged it.
func (s *Session) layout(ctx context.Context) {
	_ = s.Graph.AutoLayout(ctx)
}

func (s *Session) graphChanged(p pipeline.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}
