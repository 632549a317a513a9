package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/postgres"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

var reviewSortColumns = map[string]string{
	"timestamp": "r.timestamp",
	"rating":    "r.rating",
	"id":        "r.id",
}

// ReviewAdapter implements repositories.ReviewRepository and
// repositories.ReviewStatsReader on the catalog database
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) *ReviewAdapter {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

var (
	_ repositories.ReviewRepository  = (*ReviewAdapter)(nil)
	_ repositories.ReviewStatsReader = (*ReviewAdapter)(nil)
)

func (a *ReviewAdapter) selectReviews() *goqu.SelectDataset {
	return a.db.From(goqu.T(reviewsTable).As("r")).
		LeftJoin(goqu.T(usersTable).As("u"), goqu.On(goqu.I("r.user_id").Eq(goqu.I("u.id")))).
		Select(
			goqu.I("r.id"), goqu.I("r.rating"), goqu.I("r.comment"), goqu.I("r.timestamp"),
			goqu.I("r.user_id"), goqu.I("u.username"), goqu.I("r.place_id"),
		)
}

func reviewConditions(pred entities.ReviewFilter) []goqu.Expression {
	var conds []goqu.Expression
	if pred.PlaceID != 0 {
		conds = append(conds, goqu.I("r.place_id").Eq(pred.PlaceID))
	}
	if pred.UserID != 0 {
		conds = append(conds, goqu.I("r.user_id").Eq(pred.UserID))
	}
	if pred.MinRating != 0 {
		conds = append(conds, goqu.I("r.rating").Gte(pred.MinRating))
	}
	if pred.MaxRating != 0 {
		conds = append(conds, goqu.I("r.rating").Lte(pred.MaxRating))
	}
	return conds
}

// ReadPageQuery builds the count and page queries for a filter
func (a *ReviewAdapter) ReadPageQuery(filter entities.FilterState[entities.ReviewFilter]) (countSQL, pageSQL string, err error) {
	order, err := orderBy(reviewSortColumns, filter.SortKey, filter.SortDirection, "r.id")
	if err != nil {
		return "", "", err
	}
	conds := reviewConditions(filter.Predicates)

	countSQL, _, err = a.db.From(goqu.T(reviewsTable).As("r")).Select(goqu.COUNT("*")).Where(conds...).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build review count query", err)
	}
	pageSQL, _, err = paginate(a.selectReviews().Where(conds...).Order(order...), filter.Page, filter.PageSize).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build review page query", err)
	}
	return countSQL, pageSQL, nil
}

// ReadPage reads one filtered, sorted page of reviews
func (a *ReviewAdapter) ReadPage(ctx context.Context, filter entities.FilterState[entities.ReviewFilter]) (*repositories.PageResult[entities.Review], error) {
	countSQL, pageSQL, err := a.ReadPageQuery(filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := a.client.DB().QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		return nil, classifyDBError("failed to count reviews", err)
	}

	reviews, err := a.queryReviews(ctx, pageSQL)
	if err != nil {
		return nil, err
	}
	return &repositories.PageResult[entities.Review]{
		Items:      reviews,
		Pagination: pagination(filter.Page, filter.PageSize, total),
	}, nil
}

// GetByID returns one review
func (a *ReviewAdapter) GetByID(ctx context.Context, id int64) (*entities.Review, error) {
	query, _, err := a.selectReviews().Where(goqu.I("r.id").Eq(id)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build review query", err)
	}
	return a.queryOne(ctx, query, fmt.Sprintf("review with id %d not found", id))
}

// UserReviewForPlace returns the user's review of a place
func (a *ReviewAdapter) UserReviewForPlace(ctx context.Context, placeID, userID int64) (*entities.Review, error) {
	query, _, err := a.selectReviews().
		Where(goqu.I("r.place_id").Eq(placeID), goqu.I("r.user_id").Eq(userID)).
		Order(goqu.I("r.timestamp").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build user review query", err)
	}
	return a.queryOne(ctx, query, fmt.Sprintf("user %d has not reviewed place %d", userID, placeID))
}

// Create inserts a review written by identity
func (a *ReviewAdapter) Create(ctx context.Context, identity entities.Identity, input entities.ReviewInput) (entities.Review, error) {
	rating, err := validateReview(identity, input)
	if err != nil {
		return entities.Review{}, err
	}
	if input.PlaceID == 0 {
		return entities.Review{}, apperrors.NewValidationError("a review needs a place")
	}

	query, _, err := a.db.Insert(reviewsTable).Rows(goqu.Record{
		"rating":    rating,
		"comment":   nullString(input.Comment),
		"timestamp": a.now().UTC(),
		"user_id":   identity.UserID,
		"place_id":  input.PlaceID,
	}).Returning("id").ToSQL()
	if err != nil {
		return entities.Review{}, apperrors.NewInternalError("failed to build review insert query", err)
	}

	var id int64
	if err := a.client.DB().QueryRowContext(ctx, query).Scan(&id); err != nil {
		return entities.Review{}, classifyDBError("failed to create review", err)
	}
	review, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Review{}, err
	}
	return *review, nil
}

// Update changes the rating and comment of a review owned by identity
func (a *ReviewAdapter) Update(ctx context.Context, identity entities.Identity, id int64, input entities.ReviewInput) (entities.Review, error) {
	rating, err := validateReview(identity, input)
	if err != nil {
		return entities.Review{}, err
	}

	query, _, err := a.db.Update(reviewsTable).
		Set(goqu.Record{"rating": rating, "comment": nullString(input.Comment)}).
		Where(goqu.Ex{"id": id, "user_id": identity.UserID}).
		ToSQL()
	if err != nil {
		return entities.Review{}, apperrors.NewInternalError("failed to build review update query", err)
	}
	if err := a.execOwned(ctx, query, "failed to update review", id); err != nil {
		return entities.Review{}, err
	}

	review, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Review{}, err
	}
	return *review, nil
}

// Delete deletes a review owned by identity
func (a *ReviewAdapter) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	if identity.UserID == 0 {
		return apperrors.NewUnauthorizedError("sign in to delete a review")
	}
	query, _, err := a.db.Delete(reviewsTable).Where(goqu.Ex{"id": id, "user_id": identity.UserID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build review delete query", err)
	}
	return a.execOwned(ctx, query, "failed to delete review", id)
}

// StatsQuery builds the per-place, per-rating aggregate query
func (a *ReviewAdapter) StatsQuery(placeIDs []int64) (string, error) {
	query, _, err := a.db.From(reviewsTable).
		Select(goqu.C("place_id"), goqu.C("rating"), goqu.COUNT("*").As("n")).
		Where(goqu.C("place_id").In(placeIDs)).
		GroupBy(goqu.C("place_id"), goqu.C("rating")).
		Order(goqu.C("place_id").Asc(), goqu.C("rating").Asc()).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build review stats query", err)
	}
	return query, nil
}

// StatsForPlaces aggregates every review of each place in one round trip
func (a *ReviewAdapter) StatsForPlaces(ctx context.Context, placeIDs []int64) (map[int64]*entities.DerivedStats, error) {
	out := make(map[int64]*entities.DerivedStats, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}

	query, err := a.StatsQuery(placeIDs)
	if err != nil {
		return nil, err
	}
	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classifyDBError("failed to query review stats", err)
	}
	defer rows.Close()

	sums := make(map[int64]float64, len(placeIDs))
	for rows.Next() {
		var placeID int64
		var rating, n int
		if err := rows.Scan(&placeID, &rating, &n); err != nil {
			return nil, apperrors.NewInternalError("failed to scan review stats", err)
		}

		stats, ok := out[placeID]
		if !ok {
			empty := entities.EmptyStats(entities.StatsAuthoritative, placeID)
			stats = &empty
			out[placeID] = stats
		}
		bucket := min(max(rating, entities.MinRating), entities.MaxRating)
		stats.RatingDistribution[bucket] += n
		stats.TotalReviews += n
		sums[placeID] += float64(bucket * n)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("error iterating review stats", err)
	}

	for placeID, stats := range out {
		if stats.TotalReviews > 0 {
			stats.AverageRating = sums[placeID] / float64(stats.TotalReviews)
		}
	}
	return out, nil
}

func (a *ReviewAdapter) execOwned(ctx context.Context, query, message string, id int64) error {
	result, err := a.client.DB().ExecContext(ctx, query)
	if err != nil {
		return classifyDBError(message, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("review with id %d not found", id))
	}
	return nil
}

func (a *ReviewAdapter) queryOne(ctx context.Context, query, notFound string) (*entities.Review, error) {
	reviews, err := a.queryReviews(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	return &reviews[0], nil
}

func (a *ReviewAdapter) queryReviews(ctx context.Context, query string) ([]entities.Review, error) {
	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classifyDBError("failed to query reviews", err)
	}
	defer rows.Close()

	reviews := []entities.Review{}
	for rows.Next() {
		var (
			r                 entities.Review
			comment, userName sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Rating, &comment, &r.Timestamp, &r.UserID, &userName, &r.PlaceID); err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		r.Comment = comment.String
		r.UserName = userName.String
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("error iterating reviews", err)
	}
	return reviews, nil
}

// validateReview checks the author and rating; ratings are stored as whole stars
func validateReview(identity entities.Identity, input entities.ReviewInput) (int, error) {
	if identity.UserID == 0 {
		return 0, apperrors.NewUnauthorizedError("sign in to write a review")
	}
	rating := int(math.Round(input.Rating))
	if math.IsNaN(input.Rating) || rating < entities.MinRating || rating > entities.MaxRating {
		return 0, apperrors.NewValidationError(fmt.Sprintf("rating must be between %d and %d", entities.MinRating, entities.MaxRating))
	}
	return rating, nil
}
