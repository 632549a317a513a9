package services_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/application/services"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
)

type fakeMarker struct {
	spec providers.MarkerSpec
}

type fakeSurface struct {
	mu         sync.Mutex
	ready      bool
	zoom       float64
	center     entities.Coordinates
	live       map[int64]*fakeMarker
	creates    int
	removes    int
	pans       int
	animating  map[int64]bool
	animations int
	failFor    map[int64]bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		ready:     true,
		zoom:      12,
		live:      make(map[int64]*fakeMarker),
		animating: make(map[int64]bool),
		failFor:   make(map[int64]bool),
	}
}

func (s *fakeSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSurface) CreateMarker(spec providers.MarkerSpec) (providers.MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[spec.EntityID] {
		return nil, errors.New("marker icon missing")
	}
	m := &fakeMarker{spec: spec}
	s.live[spec.EntityID] = m
	s.creates++
	return m, nil
}

func (s *fakeSurface) RemoveMarker(handle providers.MarkerHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := handle.(*fakeMarker)
	delete(s.live, m.spec.EntityID)
	s.removes++
}

func (s *fakeSurface) PanTo(position entities.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = position
	s.pans++
}

func (s *fakeSurface) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *fakeSurface) SetZoom(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = level
}

func (s *fakeSurface) Animate(handle providers.MarkerHandle, animation providers.Animation, duration time.Duration) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := handle.(*fakeMarker).spec.EntityID
	s.animating[id] = true
	s.animations++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.animating, id)
	}
}

func (s *fakeSurface) click(id int64) {
	s.mu.Lock()
	m := s.live[id]
	s.mu.Unlock()
	m.spec.OnSelect()
}

func (s *fakeSurface) counts() (creates, removes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.removes
}

func (s *fakeSurface) isAnimating(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.animating[id]
}

func placeWindow(t *testing.T, places ...entities.Place) *entities.PageWindow[entities.Place] {
	t.Helper()
	w, err := entities.NewPageWindow(places, entities.Pagination{TotalElements: int64(len(places)), TotalPages: 1}, 12)
	require.NoError(t, err)
	return w
}

func skopjePlaces(ids ...int64) []entities.Place {
	out := make([]entities.Place, 0, len(ids))
	for _, id := range ids {
		out = append(out, placeAt(id, "place", 41.99+float64(id)/1000, 21.42+float64(id)/1000))
	}
	return out
}

func TestMarkerReconciler_ChurnIsSymmetricDifference(t *testing.T) {
	surface := newFakeSurface()
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	first := r.Reconcile(placeWindow(t, skopjePlaces(1, 2, 3)...), services.NoSelection)
	assert.Equal(t, []int64{1, 2, 3}, first.Created)
	handle2 := surface.live[2]

	second := r.Reconcile(placeWindow(t, skopjePlaces(2, 3, 4)...), services.NoSelection)

	assert.Equal(t, []int64{4}, second.Created)
	assert.Equal(t, []int64{1}, second.Removed)
	assert.Equal(t, 2, second.Churn())
	assert.Same(t, handle2, surface.live[2])
	assert.Equal(t, []int64{2, 3, 4}, r.MarkerIDs())
}

func TestMarkerReconciler_IdenticalWindowIsIdempotent(t *testing.T) {
	surface := newFakeSurface()
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())
	w := placeWindow(t, skopjePlaces(1, 2, 3)...)

	r.Reconcile(w, services.NoSelection)
	creates, removes := surface.counts()

	again := r.Reconcile(placeWindow(t, skopjePlaces(1, 2, 3)...), services.NoSelection)

	assert.Equal(t, 0, again.Churn())
	c2, r2 := surface.counts()
	assert.Equal(t, creates, c2)
	assert.Equal(t, removes, r2)
}

func TestMarkerReconciler_SkipsEntitiesWithoutValidCoordinates(t *testing.T) {
	surface := newFakeSurface()
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	r.Reconcile(placeWindow(t,
		placeAt(1, "ok", 41.99, 21.42),
		entities.Place{ID: 2, Name: "no coordinates"},
		placeAt(3, "origin", 0, 0),
	), services.NoSelection)

	assert.Equal(t, []int64{1}, r.MarkerIDs())
}

func TestMarkerReconciler_NotReadySurfaceIsNoOpUntilReady(t *testing.T) {
	surface := newFakeSurface()
	surface.ready = false
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	result := r.Reconcile(placeWindow(t, skopjePlaces(1, 2)...), services.Selected(2))
	assert.True(t, result.Skipped)
	assert.Empty(t, r.MarkerIDs())

	surface.mu.Lock()
	surface.ready = true
	surface.mu.Unlock()

	result = r.SurfaceReady()
	assert.Equal(t, []int64{1, 2}, result.Created)
	assert.True(t, result.Focused)
}

func TestMarkerReconciler_SelectionFocusesAndHighlights(t *testing.T) {
	surface := newFakeSurface()
	opts := services.DefaultMarkerOptions()
	opts.HighlightDuration = 30 * time.Millisecond
	r := services.NewMarkerReconciler[entities.Place](surface, opts)
	places := skopjePlaces(1, 2)

	r.Reconcile(placeWindow(t, places...), services.NoSelection)
	result := r.OnSelect(2)

	assert.True(t, result.Focused)
	assert.Equal(t, 0, result.Churn())
	wantPos, _ := places[1].Coordinates()
	assert.Equal(t, wantPos, surface.center)
	assert.Equal(t, 15.0, surface.Zoom())
	assert.True(t, surface.isAnimating(2))

	assert.Eventually(t, func() bool { return !surface.isAnimating(2) }, time.Second, 5*time.Millisecond)
	_, highlighting := r.Highlighted()
	assert.False(t, highlighting)
}

func TestMarkerReconciler_FocusKeepsZoomAboveThreshold(t *testing.T) {
	surface := newFakeSurface()
	surface.zoom = 17
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	r.Reconcile(placeWindow(t, skopjePlaces(1)...), services.Selected(1))

	assert.Equal(t, 17.0, surface.Zoom())
	assert.Equal(t, 1, surface.pans)
}

func TestMarkerReconciler_UnchangedSelectionDoesNotRefocus(t *testing.T) {
	surface := newFakeSurface()
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	r.Reconcile(placeWindow(t, skopjePlaces(1, 2)...), services.Selected(1))
	r.Reconcile(placeWindow(t, skopjePlaces(1, 2, 3)...), services.Selected(1))

	assert.Equal(t, 1, surface.pans)
	assert.Equal(t, 1, surface.animations)
}

func TestMarkerReconciler_MarkerClickSelects(t *testing.T) {
	surface := newFakeSurface()
	var seen []services.Selection
	opts := services.DefaultMarkerOptions()
	opts.OnSelectionChange = func(s services.Selection) { seen = append(seen, s) }
	r := services.NewMarkerReconciler[entities.Place](surface, opts)

	r.Reconcile(placeWindow(t, skopjePlaces(1, 2)...), services.NoSelection)
	surface.click(1)

	assert.Equal(t, services.Selected(1), r.Selection())
	assert.Equal(t, []services.Selection{services.Selected(1)}, seen)

	r.OnDeselect()
	assert.Equal(t, services.NoSelection, r.Selection())
	assert.False(t, surface.isAnimating(1))
}

func TestMarkerReconciler_SelectedEntityLeavingWindowStopsHighlight(t *testing.T) {
	surface := newFakeSurface()
	opts := services.DefaultMarkerOptions()
	opts.HighlightDuration = time.Minute
	r := services.NewMarkerReconciler[entities.Place](surface, opts)

	r.Reconcile(placeWindow(t, skopjePlaces(1, 2)...), services.Selected(1))
	require.True(t, surface.isAnimating(1))

	r.Update(placeWindow(t, skopjePlaces(2)...))

	assert.False(t, surface.isAnimating(1))
	assert.Equal(t, []int64{2}, r.MarkerIDs())

	result := r.Update(placeWindow(t, skopjePlaces(1, 2)...))
	assert.True(t, result.Focused)
}

func TestMarkerReconciler_FailedMarkerIsRetriedNextPass(t *testing.T) {
	surface := newFakeSurface()
	surface.failFor[2] = true
	r := services.NewMarkerReconciler[entities.Place](surface, services.DefaultMarkerOptions())

	r.Reconcile(placeWindow(t, skopjePlaces(1, 2)...), services.NoSelection)
	assert.Equal(t, []int64{1}, r.MarkerIDs())

	surface.mu.Lock()
	delete(surface.failFor, 2)
	surface.mu.Unlock()

	result := r.Update(placeWindow(t, skopjePlaces(1, 2)...))
	assert.Equal(t, []int64{2}, result.Created)
}

func TestMarkerReconciler_TeardownReleasesEverything(t *testing.T) {
	surface := newFakeSurface()
	opts := services.DefaultMarkerOptions()
	opts.HighlightDuration = time.Minute
	r := services.NewMarkerReconciler[entities.Place](surface, opts)

	r.Reconcile(placeWindow(t, skopjePlaces(1, 2, 3)...), services.Selected(3))
	r.Teardown()

	assert.Empty(t, surface.live)
	assert.False(t, surface.isAnimating(3))
	assert.True(t, r.Reconcile(placeWindow(t, skopjePlaces(1)...), services.NoSelection).Skipped)

	r.Teardown()
}

func TestMarkerReconciler_ToursUseCentroid(t *testing.T) {
	surface := newFakeSurface()
	r := services.NewMarkerReconciler[entities.Tour](surface, services.DefaultMarkerOptions())
	tours, err := entities.NewPageWindow([]entities.Tour{
		{ID: 1, Title: "Old town", Places: []entities.Place{placeAt(1, "a", 42.0, 21.4), placeAt(2, "b", 42.002, 21.404)}},
		{ID: 2, Title: "Empty"},
	}, entities.Pagination{TotalElements: 2, TotalPages: 1}, 12)
	require.NoError(t, err)

	r.Reconcile(tours, services.NoSelection)

	require.Equal(t, []int64{1}, r.MarkerIDs())
	assert.InDelta(t, 42.001, surface.live[1].spec.Position.Latitude, 1e-9)
	assert.Equal(t, "Old town", surface.live[1].spec.Title)
}
