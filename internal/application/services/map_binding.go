package services

import (
	"sync"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
)

// WindowSource is a list whose window can be observed
type WindowSource[T entities.Record] interface {
	CurrentWindow() *entities.PageWindow[T]
	OnChange(fn func()) (unsubscribe func())
}

// MapBinding keeps a MarkerReconciler in step with a list. Every window change of the
// list is reconciled with the current selection.
type MapBinding[T entities.Locatable] struct {
	source     WindowSource[T]
	reconciler *MarkerReconciler[T]

	once        sync.Once
	unsubscribe func()
}

// BindMap reconciles source's current window and subscribes to its changes
func BindMap[T entities.Locatable](source WindowSource[T], reconciler *MarkerReconciler[T]) *MapBinding[T] {
	b := &MapBinding[T]{source: source, reconciler: reconciler}
	b.unsubscribe = source.OnChange(b.sync)
	b.sync()
	return b
}

// Reconciler returns the bound reconciler
func (b *MapBinding[T]) Reconciler() *MarkerReconciler[T] { return b.reconciler }

// OnSelect selects id on the map
func (b *MapBinding[T]) OnSelect(id int64) ReconcileResult {
	return b.reconciler.OnSelect(id)
}

// OnDeselect clears the map selection
func (b *MapBinding[T]) OnDeselect() ReconcileResult {
	return b.reconciler.OnDeselect()
}

// SurfaceReady re-drives the reconciler once the map initialized
func (b *MapBinding[T]) SurfaceReady() ReconcileResult {
	return b.reconciler.SurfaceReady()
}

// Close stops following the list and releases every marker
func (b *MapBinding[T]) Close() {
	b.once.Do(func() {
		b.unsubscribe()
		b.reconciler.Teardown()
	})
}

func (b *MapBinding[T]) sync() {
	b.reconciler.Update(b.source.CurrentWindow())
}
