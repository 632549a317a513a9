package entities

import (
	"fmt"

	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// SortDirection is the ordering of a sorted page
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Valid reports whether d is a known direction
func (d SortDirection) Valid() bool {
	return d == SortAscending || d == SortDescending
}

// FilterState describes what subset, what order and what page a list wants.
// P carries the family-specific predicates and must be comparable so two states
// can be checked for "same query".
type FilterState[P comparable] struct {
	Predicates    P
	Page          int
	PageSize      int
	SortKey       string
	SortDirection SortDirection
}

// SameQuery reports whether f and other differ at most in Page
func (f FilterState[P]) SameQuery(other FilterState[P]) bool {
	return f.Predicates == other.Predicates &&
		f.PageSize == other.PageSize &&
		f.SortKey == other.SortKey &&
		f.SortDirection == other.SortDirection
}

// WithPage returns a copy of f positioned at page
func (f FilterState[P]) WithPage(page int) FilterState[P] {
	f.Page = page
	return f
}

// Apply merges patch into f. Any change to a non-page field resets Page to 0,
// even when the patch also names a page.
func (f FilterState[P]) Apply(patch FilterPatch[P]) FilterState[P] {
	next := f
	if patch.Predicates != nil {
		next.Predicates = *patch.Predicates
	}
	if patch.PageSize != nil {
		next.PageSize = *patch.PageSize
	}
	if patch.SortKey != nil {
		next.SortKey = *patch.SortKey
	}
	if patch.SortDirection != nil {
		next.SortDirection = *patch.SortDirection
	}
	if patch.Page != nil {
		next.Page = *patch.Page
	}
	if !next.SameQuery(f) {
		next.Page = 0
	}
	return next
}

// Validate checks the pagination and sort fields before the state reaches a remote
func (f FilterState[P]) Validate() error {
	if f.Page < 0 {
		return apperrors.NewInvalidQueryError(fmt.Sprintf("page must not be negative, got %d", f.Page))
	}
	if f.PageSize <= 0 {
		return apperrors.NewInvalidQueryError(fmt.Sprintf("page size must be positive, got %d", f.PageSize))
	}
	if f.SortKey == "" {
		return apperrors.NewInvalidQueryError("sort key is required")
	}
	if !f.SortDirection.Valid() {
		return apperrors.NewInvalidQueryError(fmt.Sprintf("unknown sort direction %q", f.SortDirection))
	}
	return nil
}

// FilterPatch is a partial update to a FilterState; nil fields are left unchanged
type FilterPatch[P comparable] struct {
	Predicates    *P
	Page          *int
	PageSize      *int
	SortKey       *string
	SortDirection *SortDirection
}

// PatchPredicates builds a patch replacing only the predicates
func PatchPredicates[P comparable](p P) FilterPatch[P] {
	return FilterPatch[P]{Predicates: &p}
}

// PatchSort builds a patch replacing only the sort order
func PatchSort[P comparable](key string, dir SortDirection) FilterPatch[P] {
	return FilterPatch[P]{SortKey: &key, SortDirection: &dir}
}

// DefaultPlaceFilter is the initial state of a place list
func DefaultPlaceFilter() FilterState[PlaceFilter] {
	return FilterState[PlaceFilter]{PageSize: 12, SortKey: "averageRating", SortDirection: SortDescending}
}

// DefaultReviewFilter is the initial state of a review list
func DefaultReviewFilter() FilterState[ReviewFilter] {
	return FilterState[ReviewFilter]{PageSize: 10, SortKey: "timestamp", SortDirection: SortDescending}
}

// DefaultTourFilter is the initial state of a tour list
func DefaultTourFilter() FilterState[TourFilter] {
	return FilterState[TourFilter]{PageSize: 12, SortKey: "dateCreated", SortDirection: SortDescending}
}
