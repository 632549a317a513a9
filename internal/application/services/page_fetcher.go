package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// ErrStaleResponse is returned for a fetch that was superseded by a newer one
// before it resolved. Its result has been discarded.
var ErrStaleResponse = errors.New("stale page response discarded")

// SyncOptions carries the collaborators shared by the sync components
type SyncOptions struct {
	Governor *FailureGovernor
	Cooldown time.Duration
	Metrics  *observability.Metrics

	// Events, if set, receives a change event after every confirmed write
	Events providers.EventBus
}

// ApplyFunc receives the outcome of the most recent fetch. It runs while the fetcher
// holds its sequencing lock, so it must not issue another fetch.
type ApplyFunc[T entities.Record] func(window *entities.PageWindow[T], err error)

// PageFetcher resolves FilterStates into PageWindows for one logical list. Each fetch
// takes the next sequence number; a response whose number is no longer the latest
// issued is discarded, so the most recently issued fetch always wins.
type PageFetcher[T entities.Record, P comparable] struct {
	list     string
	reader   repositories.PageReader[T, P]
	governor *FailureGovernor
	cooldown time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger

	mu     sync.Mutex
	latest uint64
}

// NewPageFetcher creates a fetcher for list reading through reader
func NewPageFetcher[T entities.Record, P comparable](list string, reader repositories.PageReader[T, P], opts SyncOptions) *PageFetcher[T, P] {
	return &PageFetcher[T, P]{
		list:     list,
		reader:   reader,
		governor: opts.Governor,
		cooldown: opts.Cooldown,
		metrics:  opts.Metrics,
		logger:   observability.Component("page_fetcher").With().Str("list", list).Logger(),
	}
}

// Channel is the governor channel guarding this list's reads
func (f *PageFetcher[T, P]) Channel() string {
	return f.list + ":fetch"
}

// Invalidate discards the results of every fetch issued so far
func (f *PageFetcher[T, P]) Invalidate() {
	f.mu.Lock()
	f.latest++
	f.mu.Unlock()
}

// Fetch reads the page filter describes. When the response is still the latest
// issued, apply (if non-nil) is handed the new window or the error and Fetch returns
// the same. A superseded response returns ErrStaleResponse and apply is not called.
func (f *PageFetcher[T, P]) Fetch(ctx context.Context, filter entities.FilterState[P], apply ApplyFunc[T]) (*entities.PageWindow[T], error) {
	f.mu.Lock()
	f.latest++
	seq := f.latest
	f.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "PageFetcher.Fetch",
		attribute.String("catalog.list", f.list),
		attribute.Int("catalog.page", filter.Page),
		attribute.Int64("catalog.seq", int64(seq)),
	)
	defer span.End()

	f.logger.Debug().Uint64("seq", seq).Int("page", filter.Page).Msg("fetch issued")

	start := time.Now()
	window, err := f.read(ctx, filter)

	f.mu.Lock()
	defer f.mu.Unlock()

	stale := seq != f.latest
	f.metrics.RecordFetch(ctx, f.list, time.Since(start), stale, err)
	if stale {
		f.logger.Debug().Uint64("seq", seq).Uint64("latest", f.latest).Msg("stale response discarded")
		return nil, ErrStaleResponse
	}

	if err != nil {
		observability.RecordError(span, err)
		f.logger.Error().Err(err).Uint64("seq", seq).Msg("fetch failed")
	}
	if apply != nil {
		apply(window, err)
	}
	return window, err
}

func (f *PageFetcher[T, P]) read(ctx context.Context, filter entities.FilterState[P]) (*entities.PageWindow[T], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	result, err := Guard(ctx, f.governor, f.Channel(), f.cooldown, func(ctx context.Context) (*repositories.PageResult[T], error) {
		return f.reader.ReadPage(ctx, filter)
	})
	if err != nil {
		return nil, err
	}

	return entities.NewPageWindow(result.Items, result.Pagination, filter.PageSize)
}
