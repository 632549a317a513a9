package services

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// AggregateReader reads the authoritative stats of a place
type AggregateReader interface {
	Load(ctx context.Context, placeID int64) (*entities.DerivedStats, error)
	Invalidate(ctx context.Context, placeID int64)
}

// StatsRequest names the source to project stats from
type StatsRequest struct {
	Source  entities.StatsSource
	PlaceID int64
	Window  *entities.PageWindow[entities.Review]
}

// Authoritative requests server-computed stats over every review of placeID
func Authoritative(placeID int64) StatsRequest {
	return StatsRequest{Source: entities.StatsAuthoritative, PlaceID: placeID}
}

// Windowed requests stats folded over the reviews in window only
func Windowed(window *entities.PageWindow[entities.Review], placeID int64) StatsRequest {
	return StatsRequest{Source: entities.StatsWindowed, PlaceID: placeID, Window: window}
}

// StatsProjector produces DerivedStats labelled with the source they came from
type StatsProjector struct {
	aggregates AggregateReader
}

// NewStatsProjector creates a projector. aggregates may be nil when only windowed
// projections are needed.
func NewStatsProjector(aggregates AggregateReader) *StatsProjector {
	return &StatsProjector{aggregates: aggregates}
}

// SupportsAuthoritative reports whether an aggregate reader is configured
func (p *StatsProjector) SupportsAuthoritative() bool {
	return p != nil && p.aggregates != nil
}

// Project computes the stats req asks for
func (p *StatsProjector) Project(ctx context.Context, req StatsRequest) (*entities.DerivedStats, error) {
	switch req.Source {
	case entities.StatsWindowed:
		var items []entities.Review
		if req.Window != nil {
			items = req.Window.Items()
		}
		stats := FoldRatings(items, req.PlaceID)
		return &stats, nil

	case entities.StatsAuthoritative:
		if !p.SupportsAuthoritative() {
			return nil, apperrors.NewInternalError("no aggregate reader configured for authoritative stats", nil)
		}
		if req.PlaceID == 0 {
			return nil, apperrors.NewInvalidQueryError("authoritative stats need a place")
		}
		ctx, span := observability.StartSpan(ctx, "StatsProjector.Authoritative",
			attribute.Int64("catalog.place_id", req.PlaceID))
		defer span.End()

		stats, err := p.aggregates.Load(ctx, req.PlaceID)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		stats.Source = entities.StatsAuthoritative
		stats.PlaceID = req.PlaceID
		return stats, nil

	default:
		return nil, apperrors.NewValidationError("unknown stats source " + string(req.Source))
	}
}

// Invalidate drops any memoized authoritative stats of placeID
func (p *StatsProjector) Invalidate(ctx context.Context, placeID int64) {
	if p.SupportsAuthoritative() && placeID != 0 {
		p.aggregates.Invalidate(ctx, placeID)
	}
}

// FoldRatings computes windowed stats over reviews. Each rating is clamped to
// [MinRating, MaxRating]; the distribution counts it in its nearest whole bucket while
// the average uses the clamped, unrounded value. Unlike a plain mean of the raw
// ratings, an out-of-range rating therefore cannot pull the average outside [0,5].
// reviews is not modified.
func FoldRatings(reviews []entities.Review, placeID int64) entities.DerivedStats {
	stats := entities.EmptyStats(entities.StatsWindowed, placeID)
	if len(reviews) == 0 {
		return stats
	}

	sum := 0.0
	for _, r := range reviews {
		rating := clampRating(r.Rating)
		sum += rating
		stats.RatingDistribution[int(math.Round(rating))]++
	}
	stats.TotalReviews = len(reviews)
	stats.AverageRating = sum / float64(len(reviews))
	return stats
}

func clampRating(r float64) float64 {
	switch {
	case math.IsNaN(r) || r < entities.MinRating:
		return entities.MinRating
	case r > entities.MaxRating:
		return entities.MaxRating
	default:
		return r
	}
}
