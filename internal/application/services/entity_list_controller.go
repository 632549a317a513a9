package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// StatsFunc derives stats for a freshly applied window. afterWrite is true when the
// window changed because of a confirmed write rather than a fetch.
// A nil result with a nil error means the list has no stats for this filter.
type StatsFunc[T entities.Record, P comparable] func(ctx context.Context, filter entities.FilterState[P], window *entities.PageWindow[T], afterWrite bool) (*entities.DerivedStats, error)

// ConfirmedFunc is called after a write succeeded and before listeners are notified
type ConfirmedFunc[T entities.Record] func(identity entities.Identity, kind MutationKind, id int64, record T)

// ListConfig wires one EntityListController
type ListConfig[T entities.Record, P comparable, I any] struct {
	Name   string
	Filter entities.FilterState[P]
	Reader repositories.PageReader[T, P]
	Writer repositories.EntityWriter[T, I]
	Sync   SyncOptions

	// Stats is optional; lists without ratings leave it nil
	Stats StatsFunc[T, P]

	// Belongs decides whether a created record joins the current window. Nil means always.
	Belongs func(filter entities.FilterState[P], record T) bool

	OnConfirmed ConfirmedFunc[T]

	// ParentOf names the parent a record's change events are scoped to, e.g. a
	// review's place. Nil means no parent.
	ParentOf func(record T) int64
}

// ListState is a consistent snapshot of a list
type ListState[T entities.Record, P comparable] struct {
	Filter    entities.FilterState[P]
	Window    *entities.PageWindow[T]
	Stats     *entities.DerivedStats
	LastError string
	Loading   bool
}

// EntityListController owns the filter, window, stats and last error of one logical
// list. Reads go through a PageFetcher and writes through a MutationPipeline; errors
// from either land in LastError instead of escaping to the caller of SetFilter,
// SetPage or Refresh.
type EntityListController[T entities.Record, P comparable, I any] struct {
	name        string
	initial     entities.FilterState[P]
	fetcher     *PageFetcher[T, P]
	pipeline    *MutationPipeline[T, I]
	stats       StatsFunc[T, P]
	belongs     func(entities.FilterState[P], T) bool
	onConfirmed ConfirmedFunc[T]
	parentOf    func(T) int64
	family      entities.Family
	events      providers.EventBus
	logger      zerolog.Logger

	mu           sync.RWMutex
	filter       entities.FilterState[P]
	window       *entities.PageWindow[T]
	currentStats *entities.DerivedStats
	lastError    string
	inflight     int
	listeners    map[int]func()
	nextListener int
}

// NewEntityListController creates a list positioned at cfg.Filter with an empty window
func NewEntityListController[T entities.Record, P comparable, I any](cfg ListConfig[T, P, I]) *EntityListController[T, P, I] {
	return &EntityListController[T, P, I]{
		name:        cfg.Name,
		initial:     cfg.Filter,
		fetcher:     NewPageFetcher(cfg.Name, cfg.Reader, cfg.Sync),
		pipeline:    NewMutationPipeline(cfg.Name, cfg.Writer, cfg.Sync),
		stats:       cfg.Stats,
		belongs:     cfg.Belongs,
		onConfirmed: cfg.OnConfirmed,
		parentOf:    cfg.ParentOf,
		family:      entities.Family(cfg.Name),
		events:      cfg.Sync.Events,
		logger:      observability.Component("entity_list").With().Str("list", cfg.Name).Logger(),
		filter:      cfg.Filter,
		window:      entities.EmptyPageWindow[T](cfg.Filter.PageSize),
		listeners:   make(map[int]func()),
	}
}

// Name returns the list's name
func (c *EntityListController[T, P, I]) Name() string { return c.name }

// CurrentWindow returns the loaded page
func (c *EntityListController[T, P, I]) CurrentWindow() *entities.PageWindow[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.window
}

// CurrentStats returns the stats of the loaded page, or nil when there are none
func (c *EntityListController[T, P, I]) CurrentStats() *entities.DerivedStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentStats
}

// LastError returns the message of the last failed operation, or ""
func (c *EntityListController[T, P, I]) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// Filter returns the current filter
func (c *EntityListController[T, P, I]) Filter() entities.FilterState[P] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Loading reports whether a fetch or write is in flight
func (c *EntityListController[T, P, I]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// State returns a snapshot of every exposed field
func (c *EntityListController[T, P, I]) State() ListState[T, P] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ListState[T, P]{
		Filter:    c.filter,
		Window:    c.window,
		Stats:     c.currentStats,
		LastError: c.lastError,
		Loading:   c.inflight > 0,
	}
}

// Pending returns the writes waiting for the remote
func (c *EntityListController[T, P, I]) Pending() []MutationIntent {
	return c.pipeline.Pending()
}

// OnChange registers fn to run after every state change. The returned func
// unregisters it.
func (c *EntityListController[T, P, I]) OnChange(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SetFilter merges patch into the filter and fetches. Changing anything other than the
// page moves back to page 0.
func (c *EntityListController[T, P, I]) SetFilter(ctx context.Context, patch entities.FilterPatch[P]) {
	c.mu.Lock()
	c.filter = c.filter.Apply(patch)
	c.lastError = ""
	filter := c.filter
	c.mu.Unlock()

	c.fetch(ctx, filter)
}

// SetPage moves to page n of the current query
func (c *EntityListController[T, P, I]) SetPage(ctx context.Context, n int) {
	c.SetFilter(ctx, entities.FilterPatch[P]{Page: &n})
}

// Refresh clears the last error and fetches the current filter again
func (c *EntityListController[T, P, I]) Refresh(ctx context.Context) {
	c.ClearError()

	c.mu.RLock()
	filter := c.filter
	c.mu.RUnlock()

	c.fetch(ctx, filter)
}

// ClearError empties LastError
func (c *EntityListController[T, P, I]) ClearError() {
	c.mu.Lock()
	changed := c.lastError != ""
	c.lastError = ""
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Reset returns the list to its initial filter with an empty window. Responses of
// fetches still in flight are discarded.
func (c *EntityListController[T, P, I]) Reset() {
	c.fetcher.Invalidate()

	c.mu.Lock()
	c.filter = c.initial
	c.window = entities.EmptyPageWindow[T](c.initial.PageSize)
	c.currentStats = nil
	c.lastError = ""
	c.mu.Unlock()

	c.notify()
}

// Create writes input and, once confirmed, puts the stored record at the head of the
// window
func (c *EntityListController[T, P, I]) Create(ctx context.Context, identity entities.Identity, input I) (T, error) {
	return c.write(ctx, identity, MutationCreate, 0, func(ctx context.Context) (T, error) {
		return c.pipeline.Create(ctx, identity, input)
	}, func(w *entities.PageWindow[T], filter entities.FilterState[P], record T) *entities.PageWindow[T] {
		if c.belongs != nil && !c.belongs(filter, record) {
			return w
		}
		return ApplyCreated(w, record)
	})
}

// Update writes input over record id and, once confirmed, replaces it in the window
func (c *EntityListController[T, P, I]) Update(ctx context.Context, identity entities.Identity, id int64, input I) (T, error) {
	return c.write(ctx, identity, MutationUpdate, id, func(ctx context.Context) (T, error) {
		return c.pipeline.Update(ctx, identity, id, input)
	}, replaceInWindow[T, P])
}

// Remove deletes record id and, once confirmed, drops it from the window. Removing an
// id outside the window leaves the window as it is.
func (c *EntityListController[T, P, I]) Remove(ctx context.Context, identity entities.Identity, id int64) error {
	_, err := c.write(ctx, identity, MutationDelete, id, func(ctx context.Context) (T, error) {
		var zero T
		return zero, c.pipeline.Remove(ctx, identity, id)
	}, func(w *entities.PageWindow[T], _ entities.FilterState[P], _ T) *entities.PageWindow[T] {
		return ApplyRemoved(w, id)
	})
	return err
}

// Amend runs a family-specific confirmed write and replaces the returned record in
// the window
func (c *EntityListController[T, P, I]) Amend(ctx context.Context, identity entities.Identity, name string, id int64, op func(context.Context) (T, error)) (T, error) {
	return c.write(ctx, identity, MutationKind(name), id, func(ctx context.Context) (T, error) {
		return c.pipeline.Amend(ctx, name, id, op)
	}, replaceInWindow[T, P])
}

func replaceInWindow[T entities.Record, P comparable](w *entities.PageWindow[T], _ entities.FilterState[P], record T) *entities.PageWindow[T] {
	return ApplyUpdated(w, record)
}

func (c *EntityListController[T, P, I]) write(
	ctx context.Context,
	identity entities.Identity,
	kind MutationKind,
	id int64,
	op func(context.Context) (T, error),
	apply func(*entities.PageWindow[T], entities.FilterState[P], T) *entities.PageWindow[T],
) (T, error) {
	c.begin(true)
	defer c.end()

	record, err := op(ctx)
	if err != nil {
		c.recordError(err)
		c.notify()
		return record, err
	}

	c.mu.Lock()
	if kind == MutationDelete {
		if prev, ok := c.window.Find(id); ok {
			record = prev
		}
	}
	c.window = apply(c.window, c.filter, record)
	window, filter := c.window, c.filter
	c.mu.Unlock()

	if c.onConfirmed != nil {
		c.onConfirmed(identity, kind, id, record)
	}
	c.refreshStats(ctx, filter, window, true)
	c.notify()
	c.publish(ctx, kind, id, record)
	return record, nil
}

func (c *EntityListController[T, P, I]) publish(ctx context.Context, kind MutationKind, id int64, record T) {
	if c.events == nil {
		return
	}

	change := entities.ChangeUpdated
	switch kind {
	case MutationCreate:
		change = entities.ChangeCreated
		id = record.EntityID()
	case MutationDelete:
		change = entities.ChangeDeleted
	}
	var parentID int64
	if c.parentOf != nil {
		parentID = c.parentOf(record)
	}

	event := entities.NewEntityChangeEvent(c.family, change, id, parentID)
	for _, channel := range providers.ChannelsFor(event) {
		if err := c.events.Publish(ctx, channel, event); err != nil {
			c.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish change event")
		}
	}
}

func (c *EntityListController[T, P, I]) fetch(ctx context.Context, filter entities.FilterState[P]) {
	c.begin(false)
	defer c.end()

	var applied *entities.PageWindow[T]
	_, err := c.fetcher.Fetch(ctx, filter, func(window *entities.PageWindow[T], err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.lastError = apperrors.UserMessage(err)
			return
		}
		c.window = window
		applied = window
	})
	if errors.Is(err, ErrStaleResponse) {
		return
	}
	if err == nil {
		c.refreshStats(ctx, filter, applied, false)
	}
	c.notify()
}

func (c *EntityListController[T, P, I]) refreshStats(ctx context.Context, filter entities.FilterState[P], window *entities.PageWindow[T], afterWrite bool) {
	if c.stats == nil {
		return
	}
	stats, err := c.stats(ctx, filter, window, afterWrite)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window != window {
		return
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("stats projection failed")
		c.lastError = apperrors.UserMessage(err)
		return
	}
	c.currentStats = stats
}

func (c *EntityListController[T, P, I]) recordError(err error) {
	c.mu.Lock()
	c.lastError = apperrors.UserMessage(err)
	c.mu.Unlock()
}

func (c *EntityListController[T, P, I]) begin(clearError bool) {
	c.mu.Lock()
	c.inflight++
	if clearError {
		c.lastError = ""
	}
	c.mu.Unlock()
}

func (c *EntityListController[T, P, I]) end() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

func (c *EntityListController[T, P, I]) notify() {
	c.mu.RLock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
