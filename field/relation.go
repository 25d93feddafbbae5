package field

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meikuraledutech/pipeline"
)

// ErrSuperseded is returned by a load that a newer load of the same key
// replaced before it completed.
var ErrSuperseded = errors.New("field: relation load superseded")

// OptionFetcher looks up the selectable targets of a relation field.
type OptionFetcher interface {
	RelationOptions(ctx context.Context, kind, field string) ([]pipeline.RelationOption, error)
}

// RelationState is what a relation dropdown renders.
type RelationState struct {
	Loading bool
	Options []pipeline.RelationOption
	Err     error
}

type relationEntry struct {
	seq    uint64
	cancel context.CancelFunc
	state  RelationState
}

// RelationLoader tracks option lookups per relation key. Results are not
// cached across loads: each Load goes to the backend, and starting a new
// Load for a key cancels the one still in flight.
type RelationLoader struct {
	fetch  OptionFetcher
	logger *slog.Logger

	mu      sync.Mutex
	seq     uint64
	entries map[RelationKey]*relationEntry
}

// NewRelationLoader creates a loader backed by fetch.
func NewRelationLoader(fetch OptionFetcher, logger *slog.Logger) *RelationLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelationLoader{
		fetch:   fetch,
		logger:  logger,
		entries: make(map[RelationKey]*relationEntry),
	}
}

// State returns the last known state of key.
func (l *RelationLoader) State(key RelationKey) RelationState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e.state
	}
	return RelationState{}
}

// Load fetches the options of key and records them. An empty list is a
// valid result. A failed fetch records empty options and an error wrapping
// pipeline.ErrRelationOptionsUnavailable.
func (l *RelationLoader) Load(ctx context.Context, key RelationKey) (RelationState, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.seq++
	seq := l.seq
	e, ok := l.entries[key]
	if !ok {
		e = &relationEntry{}
		l.entries[key] = e
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.seq = seq
	e.cancel = cancel
	e.state = RelationState{Loading: true, Options: e.state.Options}
	l.mu.Unlock()

	opts, err := l.fetch.RelationOptions(ctx, key.Kind, key.Field)

	l.mu.Lock()
	defer l.mu.Unlock()
	if e.seq != seq {
		return RelationState{}, ErrSuperseded
	}
	e.cancel = nil
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to fetch relation options", "kind", key.Kind, "field", key.Field, "error", err)
		if !errors.Is(err, pipeline.ErrRelationOptionsUnavailable) {
			err = fmt.Errorf("%w: %s: %w", pipeline.ErrRelationOptionsUnavailable, key.Path(), err)
		}
		e.state = RelationState{Options: []pipeline.RelationOption{}, Err: err}
		return e.state, err
	}
	if opts == nil {
		opts = []pipeline.RelationOption{}
	}
	e.state = RelationState{Options: opts}
	return e.state, nil
}
