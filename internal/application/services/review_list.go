package services

import (
	"context"
	"sync"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// ReviewList is the list controller for reviews. Besides the page it keeps the current
// user's single review of a place, and reprojects stats after every fetch and write.
type ReviewList struct {
	*EntityListController[entities.Review, entities.ReviewFilter, entities.ReviewInput]

	repo      repositories.ReviewRepository
	projector *StatsProjector
	mode      entities.StatsSource
	opts      SyncOptions

	mu         sync.RWMutex
	userReview *entities.Review
}

// NewReviewList creates a review list whose stats come from mode. Authoritative mode
// needs a projector with an aggregate reader; a review list with no place in its
// filter then has no stats rather than falling back to the window.
func NewReviewList(repo repositories.ReviewRepository, projector *StatsProjector, mode entities.StatsSource, filter entities.FilterState[entities.ReviewFilter], opts SyncOptions) (*ReviewList, error) {
	if projector == nil {
		projector = NewStatsProjector(nil)
	}
	switch mode {
	case entities.StatsWindowed:
	case entities.StatsAuthoritative:
		if !projector.SupportsAuthoritative() {
			return nil, apperrors.NewValidationError("authoritative review stats need an aggregate reader")
		}
	default:
		return nil, apperrors.NewValidationError("unknown stats mode " + string(mode))
	}

	l := &ReviewList{repo: repo, projector: projector, mode: mode, opts: opts}
	l.EntityListController = NewEntityListController(ListConfig[entities.Review, entities.ReviewFilter, entities.ReviewInput]{
		Name:        string(entities.FamilyReview),
		Filter:      filter,
		Reader:      repo,
		Writer:      repo,
		Sync:        opts,
		Stats:       l.projectStats,
		Belongs:     reviewBelongs,
		OnConfirmed: l.trackUserReview,
		ParentOf:    func(r entities.Review) int64 { return r.PlaceID },
	})
	return l, nil
}

// StatsMode returns the source this list's stats come from
func (l *ReviewList) StatsMode() entities.StatsSource { return l.mode }

// ForPlace lists the reviews of one place
func (l *ReviewList) ForPlace(ctx context.Context, placeID int64) {
	l.SetFilter(ctx, entities.PatchPredicates(entities.ReviewFilter{PlaceID: placeID}))
}

// ForUser lists the reviews written by one user
func (l *ReviewList) ForUser(ctx context.Context, userID int64) {
	l.SetFilter(ctx, entities.PatchPredicates(entities.ReviewFilter{UserID: userID}))
}

// UserReview returns the current user's review of the listed place, or nil
func (l *ReviewList) UserReview() *entities.Review {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.userReview == nil {
		return nil
	}
	r := *l.userReview
	return &r
}

// LoadUserReview reads identity's review of placeID into the singleton. A missing
// review clears it and is not an error.
func (l *ReviewList) LoadUserReview(ctx context.Context, identity entities.Identity, placeID int64) (*entities.Review, error) {
	if identity.UserID == 0 {
		l.setUserReview(nil)
		return nil, nil
	}

	channel := string(entities.FamilyReview) + ":user_review"
	review, err := Guard(ctx, l.opts.Governor, channel, l.opts.Cooldown, func(ctx context.Context) (*entities.Review, error) {
		r, err := l.repo.UserReviewForPlace(ctx, placeID, identity.UserID)
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, nil
		}
		return r, err
	})
	if err != nil {
		l.recordError(err)
		l.notify()
		return nil, err
	}

	l.setUserReview(review)
	l.notify()
	return l.UserReview(), nil
}

// Reset clears the page, stats and the user's review
func (l *ReviewList) Reset() {
	l.setUserReview(nil)
	l.EntityListController.Reset()
}

func (l *ReviewList) setUserReview(r *entities.Review) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r == nil {
		l.userReview = nil
		return
	}
	cp := *r
	l.userReview = &cp
}

func (l *ReviewList) trackUserReview(identity entities.Identity, kind MutationKind, id int64, review entities.Review) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch kind {
	case MutationCreate:
		if identity.UserID != 0 && review.UserID == identity.UserID {
			cp := review
			l.userReview = &cp
		}
	case MutationUpdate:
		if l.userReview != nil && l.userReview.ID == id {
			cp := review
			l.userReview = &cp
		}
	case MutationDelete:
		if l.userReview != nil && l.userReview.ID == id {
			l.userReview = nil
		}
	}
}

func (l *ReviewList) projectStats(ctx context.Context, filter entities.FilterState[entities.ReviewFilter], window *entities.PageWindow[entities.Review], _ bool) (*entities.DerivedStats, error) {
	placeID := filter.Predicates.PlaceID
	if l.mode == entities.StatsWindowed {
		return l.projector.Project(ctx, Windowed(window, placeID))
	}
	if placeID == 0 {
		return nil, nil
	}
	// Every accepted fetch rereads the aggregate so it tracks the window.
	l.projector.Invalidate(ctx, placeID)
	return l.projector.Project(ctx, Authoritative(placeID))
}

func reviewBelongs(f entities.FilterState[entities.ReviewFilter], r entities.Review) bool {
	p := f.Predicates
	if p.PlaceID != 0 && p.PlaceID != r.PlaceID {
		return false
	}
	if p.UserID != 0 && p.UserID != r.UserID {
		return false
	}
	if p.MinRating != 0 && r.Rating < float64(p.MinRating) {
		return false
	}
	if p.MaxRating != 0 && r.Rating > float64(p.MaxRating) {
		return false
	}
	return true
}
