package providers

import (
	"time"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
)

// MarkerHandle is an opaque reference to a marker owned by a MapSurface
type MarkerHandle interface{}

// MarkerSpec describes a marker to create
type MarkerSpec struct {
	EntityID int64
	Position entities.Coordinates
	Title    string
	// OnSelect is invoked by the surface when the user picks the marker
	OnSelect func()
}

// Animation names a marker animation
type Animation string

const (
	AnimationDrop   Animation = "drop"
	AnimationBounce Animation = "bounce"
)

// MapSurface is the capability set of a map widget. Implementations are driven from a
// single goroutine at a time.
type MapSurface interface {
	// Ready reports whether the widget finished initializing
	Ready() bool

	// CreateMarker places a marker and returns its handle
	CreateMarker(spec MarkerSpec) (MarkerHandle, error)

	// RemoveMarker releases a marker
	RemoveMarker(handle MarkerHandle)

	// PanTo moves the camera center
	PanTo(position entities.Coordinates)

	// Zoom returns the current zoom level
	Zoom() float64

	// SetZoom changes the zoom level
	SetZoom(level float64)

	// Animate starts an animation on a marker. The returned stop func ends it and
	// must be safe to call more than once.
	Animate(handle MarkerHandle, animation Animation, duration time.Duration) (stop func())
}
