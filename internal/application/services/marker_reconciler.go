package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// Selection is the user-selected entity of a map, if any
type Selection struct {
	ID  int64
	Set bool
}

// NoSelection is the empty selection
var NoSelection = Selection{}

// Selected returns a selection of id
func Selected(id int64) Selection {
	return Selection{ID: id, Set: true}
}

// MarkerOptions tunes camera and highlight behaviour
type MarkerOptions struct {
	FocusZoomThreshold float64 // zoom below which focusing zooms in
	FocusZoom          float64 // zoom level focusing zooms in to
	HighlightDuration  time.Duration
	Metrics            *observability.Metrics

	// OnSelectionChange, if set, is told about every selection change
	OnSelectionChange func(Selection)
}

// DefaultMarkerOptions returns the options used by the catalog map
func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptions{
		FocusZoomThreshold: 14,
		FocusZoom:          15,
		HighlightDuration:  1500 * time.Millisecond,
	}
}

// ReconcileResult reports what one reconcile pass did
type ReconcileResult struct {
	Created []int64
	Removed []int64
	Focused bool
	Skipped bool // surface not ready or reconciler torn down
}

// Churn is the number of marker create and remove operations of the pass
func (r ReconcileResult) Churn() int {
	return len(r.Created) + len(r.Removed)
}

type markerEntry struct {
	handle   providers.MarkerHandle
	position entities.Coordinates
}

type highlight struct {
	id    int64
	stop  func()
	timer *time.Timer
}

// MarkerReconciler keeps exactly one marker per located entity of a window on a
// MapSurface. Each pass only creates markers for ids that entered the window and
// removes markers for ids that left it; markers of ids present in both are left alone.
type MarkerReconciler[T entities.Locatable] struct {
	surface providers.MapSurface
	opts    MarkerOptions
	logger  zerolog.Logger

	mu        sync.Mutex
	markers   map[int64]markerEntry
	window    *entities.PageWindow[T]
	selection Selection
	focused   Selection
	highlight *highlight
	closed    bool
}

// NewMarkerReconciler creates a reconciler drawing on surface
func NewMarkerReconciler[T entities.Locatable](surface providers.MapSurface, opts MarkerOptions) *MarkerReconciler[T] {
	defaults := DefaultMarkerOptions()
	if opts.FocusZoomThreshold <= 0 {
		opts.FocusZoomThreshold = defaults.FocusZoomThreshold
	}
	if opts.FocusZoom <= 0 {
		opts.FocusZoom = defaults.FocusZoom
	}
	if opts.HighlightDuration <= 0 {
		opts.HighlightDuration = defaults.HighlightDuration
	}
	return &MarkerReconciler[T]{
		surface: surface,
		opts:    opts,
		logger:  observability.Component("marker_reconciler"),
		markers: make(map[int64]markerEntry),
	}
}

// Reconcile brings the markers in line with window and selection. When the surface
// is not ready it does nothing; SurfaceReady re-drives the last input.
func (r *MarkerReconciler[T]) Reconcile(window *entities.PageWindow[T], selection Selection) ReconcileResult {
	r.mu.Lock()
	r.window = window
	changed := r.selection != selection
	r.selection = selection
	result := r.drive()
	r.mu.Unlock()

	if changed {
		r.notifySelection(selection)
	}
	return result
}

// Update reconciles a new window keeping the current selection
func (r *MarkerReconciler[T]) Update(window *entities.PageWindow[T]) ReconcileResult {
	return r.Reconcile(window, r.Selection())
}

// OnSelect selects id and focuses its marker
func (r *MarkerReconciler[T]) OnSelect(id int64) ReconcileResult {
	r.mu.Lock()
	window := r.window
	r.mu.Unlock()
	return r.Reconcile(window, Selected(id))
}

// OnDeselect clears the selection
func (r *MarkerReconciler[T]) OnDeselect() ReconcileResult {
	r.mu.Lock()
	window := r.window
	r.mu.Unlock()
	return r.Reconcile(window, NoSelection)
}

// SurfaceReady re-drives the last window and selection once the surface initialized
func (r *MarkerReconciler[T]) SurfaceReady() ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drive()
}

// Teardown stops any highlight and releases every marker. The reconciler does
// nothing afterwards.
func (r *MarkerReconciler[T]) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.stopHighlight()
	for id, entry := range r.markers {
		r.surface.RemoveMarker(entry.handle)
		delete(r.markers, id)
	}
	r.focused = NoSelection
	r.window = nil
	r.closed = true
	r.logger.Debug().Msg("markers torn down")
}

// Selection returns the current selection
func (r *MarkerReconciler[T]) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// MarkerIDs returns the ids that currently have a marker, ascending
func (r *MarkerReconciler[T]) MarkerIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.markers))
	for id := range r.markers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Highlighted returns the id whose highlight animation is playing
func (r *MarkerReconciler[T]) Highlighted() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.highlight == nil {
		return 0, false
	}
	return r.highlight.id, true
}

// drive runs one pass. r.mu must be held.
func (r *MarkerReconciler[T]) drive() ReconcileResult {
	if r.closed {
		return ReconcileResult{Skipped: true}
	}
	if !r.surface.Ready() {
		r.logger.Debug().Msg("map surface not ready, reconcile deferred")
		return ReconcileResult{Skipped: true}
	}

	var items []T
	if r.window != nil {
		items = r.window.Items()
	}
	incoming := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := item.Coordinates(); ok {
			incoming[item.EntityID()] = struct{}{}
		}
	}

	result := ReconcileResult{}

	for id, entry := range r.markers {
		if _, keep := incoming[id]; keep {
			continue
		}
		if r.highlight != nil && r.highlight.id == id {
			r.stopHighlight()
		}
		r.surface.RemoveMarker(entry.handle)
		delete(r.markers, id)
		result.Removed = append(result.Removed, id)
	}
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i] < result.Removed[j] })

	created := make(map[int64]bool)
	for _, item := range items {
		id := item.EntityID()
		position, ok := item.Coordinates()
		if !ok {
			continue
		}
		if _, exists := r.markers[id]; exists {
			continue
		}
		handle, err := r.surface.CreateMarker(providers.MarkerSpec{
			EntityID: id,
			Position: position,
			Title:    item.MarkerTitle(),
			OnSelect: r.selectHandler(id),
		})
		if err != nil {
			r.logger.Warn().Err(err).Int64("entity_id", id).Msg("marker creation failed")
			continue
		}
		r.markers[id] = markerEntry{handle: handle, position: position}
		created[id] = true
		result.Created = append(result.Created, id)
	}

	result.Focused = r.applySelection(created)

	r.opts.Metrics.RecordMarkerChurn(context.Background(), len(result.Created), len(result.Removed))
	if result.Churn() > 0 {
		r.logger.Debug().
			Int("created", len(result.Created)).
			Int("removed", len(result.Removed)).
			Int("markers", len(r.markers)).
			Msg("markers reconciled")
	}
	return result
}

// applySelection runs focus effects when the selection changed or its marker was
// just created. r.mu must be held.
func (r *MarkerReconciler[T]) applySelection(created map[int64]bool) bool {
	if !r.selection.Set {
		if r.focused.Set {
			r.stopHighlight()
			r.focused = NoSelection
		}
		return false
	}

	entry, ok := r.markers[r.selection.ID]
	if !ok {
		r.focused = NoSelection
		return false
	}
	if r.focused == r.selection && !created[r.selection.ID] {
		return false
	}

	r.surface.PanTo(entry.position)
	if r.surface.Zoom() < r.opts.FocusZoomThreshold {
		r.surface.SetZoom(r.opts.FocusZoom)
	}
	r.startHighlight(r.selection.ID, entry.handle)
	r.focused = r.selection
	return true
}

// startHighlight plays a bounded bounce on handle. It returns immediately; a timer
// stops the animation after HighlightDuration. r.mu must be held.
func (r *MarkerReconciler[T]) startHighlight(id int64, handle providers.MarkerHandle) {
	r.stopHighlight()

	h := &highlight{id: id}
	h.stop = r.surface.Animate(handle, providers.AnimationBounce, r.opts.HighlightDuration)
	h.timer = time.AfterFunc(r.opts.HighlightDuration, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.highlight == h {
			r.stopHighlight()
		}
	})
	r.highlight = h
}

// stopHighlight ends the playing highlight, if any. r.mu must be held.
func (r *MarkerReconciler[T]) stopHighlight() {
	h := r.highlight
	if h == nil {
		return
	}
	r.highlight = nil
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.stop != nil {
		h.stop()
	}
}

func (r *MarkerReconciler[T]) selectHandler(id int64) func() {
	return func() {
		r.OnSelect(id)
	}
}

func (r *MarkerReconciler[T]) notifySelection(s Selection) {
	if r.opts.OnSelectionChange != nil {
		r.opts.OnSelectionChange(s)
	}
}
