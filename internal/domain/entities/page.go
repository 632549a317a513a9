package entities

import (
	"fmt"

	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// Pagination is the page metadata reported by a remote source
type Pagination struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Last          bool  `json:"last"`
}

// PageWindow is one loaded page of a list. It is immutable: every change
// produces a new window. Items are unique by id and never exceed PageSize.
type PageWindow[T Record] struct {
	items         []T
	page          int
	pageSize      int
	totalPages    int
	totalElements int64
}

// NewPageWindow validates items against the window invariants and builds a window
func NewPageWindow[T Record](items []T, pagination Pagination, pageSize int) (*PageWindow[T], error) {
	if pageSize <= 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("page size must be positive, got %d", pageSize))
	}
	if len(items) > pageSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("page holds %d items, more than page size %d", len(items), pageSize))
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		id := item.EntityID()
		if _, dup := seen[id]; dup {
			return nil, apperrors.NewValidationError(fmt.Sprintf("duplicate id %d in page", id))
		}
		seen[id] = struct{}{}
	}

	out := make([]T, len(items))
	copy(out, items)
	return &PageWindow[T]{
		items:         out,
		page:          pagination.Page,
		pageSize:      pageSize,
		totalPages:    pagination.TotalPages,
		totalElements: pagination.TotalElements,
	}, nil
}

// EmptyPageWindow returns a window with no items
func EmptyPageWindow[T Record](pageSize int) *PageWindow[T] {
	return &PageWindow[T]{pageSize: pageSize}
}

// Items returns a copy of the window's items in order
func (w *PageWindow[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}

// Len returns the number of items in the window
func (w *PageWindow[T]) Len() int { return len(w.items) }

// Page returns the zero-based page index
func (w *PageWindow[T]) Page() int { return w.page }

// PageSize returns the maximum number of items the window can hold
func (w *PageWindow[T]) PageSize() int { return w.pageSize }

// TotalPages returns the number of pages in the full result
func (w *PageWindow[T]) TotalPages() int { return w.totalPages }

// TotalElements returns the number of records in the full result
func (w *PageWindow[T]) TotalElements() int64 { return w.totalElements }

// IDs returns item ids in window order
func (w *PageWindow[T]) IDs() []int64 {
	ids := make([]int64, len(w.items))
	for i, item := range w.items {
		ids[i] = item.EntityID()
	}
	return ids
}

// Find returns the item with id
func (w *PageWindow[T]) Find(id int64) (T, bool) {
	if i := w.indexOf(id); i >= 0 {
		return w.items[i], true
	}
	var zero T
	return zero, false
}

// Contains reports whether id is in the window
func (w *PageWindow[T]) Contains(id int64) bool {
	return w.indexOf(id) >= 0
}

// Prepend returns a window with item first. If item's id is already present it is
// replaced in place instead. The last item is dropped when the page overflows.
func (w *PageWindow[T]) Prepend(item T) *PageWindow[T] {
	if next, ok := w.Replace(item); ok {
		return next
	}
	items := make([]T, 0, len(w.items)+1)
	items = append(items, item)
	items = append(items, w.items...)
	if len(items) > w.pageSize {
		items = items[:w.pageSize]
	}
	next := w.withItems(items)
	next.totalElements = w.totalElements + 1
	next.totalPages = pagesFor(next.totalElements, w.pageSize)
	return next
}

// Replace returns a window with the item matching item's id swapped in place.
// ok is false, and w is returned, when the id is not present.
func (w *PageWindow[T]) Replace(item T) (*PageWindow[T], bool) {
	i := w.indexOf(item.EntityID())
	if i < 0 {
		return w, false
	}
	items := make([]T, len(w.items))
	copy(items, w.items)
	items[i] = item
	return w.withItems(items), true
}

// Remove returns a window without id. ok is false, and w is returned, when the id
// is not present.
func (w *PageWindow[T]) Remove(id int64) (*PageWindow[T], bool) {
	i := w.indexOf(id)
	if i < 0 {
		return w, false
	}
	items := make([]T, 0, len(w.items)-1)
	items = append(items, w.items[:i]...)
	items = append(items, w.items[i+1:]...)
	next := w.withItems(items)
	if next.totalElements > 0 {
		next.totalElements--
	}
	next.totalPages = pagesFor(next.totalElements, w.pageSize)
	return next, true
}

func (w *PageWindow[T]) withItems(items []T) *PageWindow[T] {
	return &PageWindow[T]{
		items:         items,
		page:          w.page,
		pageSize:      w.pageSize,
		totalPages:    w.totalPages,
		totalElements: w.totalElements,
	}
}

func (w *PageWindow[T]) indexOf(id int64) int {
	for i, item := range w.items {
		if item.EntityID() == id {
			return i
		}
	}
	return -1
}

func pagesFor(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
