package mapview

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// Operation is one call a surface received, kept for inspection
type Operation struct {
	Kind     string
	EntityID int64
	Position entities.Coordinates
	Zoom     float64
}

// Operation kinds
const (
	OpCreate  = "create"
	OpRemove  = "remove"
	OpPan     = "pan"
	OpZoom    = "zoom"
	OpAnimate = "animate"
	OpStop    = "stop"
)

type marker struct {
	spec    providers.MarkerSpec
	removed bool
}

// LoggingSurface is a headless map surface. It keeps markers in memory, logs every
// operation and lets callers simulate marker clicks.
type LoggingSurface struct {
	mu         sync.Mutex
	ready      bool
	zoom       float64
	center     entities.Coordinates
	markers    map[int64]*marker
	operations []Operation
	logger     zerolog.Logger
}

var _ providers.MapSurface = (*LoggingSurface)(nil)

// NewLoggingSurface creates a surface centered on center at the given zoom. The surface
// starts not ready; call MarkReady once the caller considers it initialized.
func NewLoggingSurface(center entities.Coordinates, zoom float64) *LoggingSurface {
	return &LoggingSurface{
		zoom:    zoom,
		center:  center,
		markers: make(map[int64]*marker),
		logger:  observability.Component("map_surface"),
	}
}

// MarkReady flags the surface as initialized
func (s *LoggingSurface) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Ready implements providers.MapSurface
func (s *LoggingSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// CreateMarker implements providers.MapSurface
func (s *LoggingSurface) CreateMarker(spec providers.MarkerSpec) (providers.MarkerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil, fmt.Errorf("map surface is not ready")
	}
	if existing, ok := s.markers[spec.EntityID]; ok && !existing.removed {
		return nil, fmt.Errorf("marker for entity %d already exists", spec.EntityID)
	}

	m := &marker{spec: spec}
	s.markers[spec.EntityID] = m
	s.record(Operation{Kind: OpCreate, EntityID: spec.EntityID, Position: spec.Position})
	s.logger.Debug().
		Int64("entity_id", spec.EntityID).
		Str("title", spec.Title).
		Float64("lat", spec.Position.Latitude).
		Float64("lng", spec.Position.Longitude).
		Msg("marker created")
	return m, nil
}

// RemoveMarker implements providers.MapSurface
func (s *LoggingSurface) RemoveMarker(handle providers.MarkerHandle) {
	m, ok := handle.(*marker)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.removed {
		return
	}
	m.removed = true
	if s.markers[m.spec.EntityID] == m {
		delete(s.markers, m.spec.EntityID)
	}
	s.record(Operation{Kind: OpRemove, EntityID: m.spec.EntityID})
	s.logger.Debug().Int64("entity_id", m.spec.EntityID).Msg("marker removed")
}

// PanTo implements providers.MapSurface
func (s *LoggingSurface) PanTo(position entities.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = position
	s.record(Operation{Kind: OpPan, Position: position})
	s.logger.Debug().Float64("lat", position.Latitude).Float64("lng", position.Longitude).Msg("camera panned")
}

// Zoom implements providers.MapSurface
func (s *LoggingSurface) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetZoom implements providers.MapSurface
func (s *LoggingSurface) SetZoom(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = level
	s.record(Operation{Kind: OpZoom, Zoom: level})
	s.logger.Debug().Float64("zoom", level).Msg("camera zoomed")
}

// Animate implements providers.MapSurface. The animation has no visual effect; the
// returned stop func records its end once.
func (s *LoggingSurface) Animate(handle providers.MarkerHandle, animation providers.Animation, duration time.Duration) func() {
	m, ok := handle.(*marker)
	if !ok {
		return func() {}
	}

	s.mu.Lock()
	s.record(Operation{Kind: OpAnimate, EntityID: m.spec.EntityID})
	s.mu.Unlock()
	s.logger.Debug().
		Int64("entity_id", m.spec.EntityID).
		Str("animation", string(animation)).
		Dur("duration", duration).
		Msg("marker animated")

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.record(Operation{Kind: OpStop, EntityID: m.spec.EntityID})
		})
	}
}

// Click simulates the user picking the marker of entityID. It reports false when no
// such marker is on the surface.
func (s *LoggingSurface) Click(entityID int64) bool {
	s.mu.Lock()
	m, ok := s.markers[entityID]
	s.mu.Unlock()
	if !ok || m.spec.OnSelect == nil {
		return ok
	}
	// invoked without the lock: the handler drives the surface again
	m.spec.OnSelect()
	return true
}

// MarkerIDs returns the entity ids with a live marker, sorted
func (s *LoggingSurface) MarkerIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Center returns the camera center
func (s *LoggingSurface) Center() entities.Coordinates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// Operations returns a copy of every operation received so far
func (s *LoggingSurface) Operations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Operation, len(s.operations))
	copy(out, s.operations)
	return out
}

// ResetOperations clears the operation log
func (s *LoggingSurface) ResetOperations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations = nil
}

func (s *LoggingSurface) record(op Operation) {
	s.operations = append(s.operations, op)
}
