package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/postgres"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

var tourSortColumns = map[string]string{
	"dateCreated": "t.date_created",
	"title":       "t.title",
	"id":          "t.id",
}

// TourAdapter implements repositories.TourRepository on the catalog database
type TourAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewTourAdapter creates a new tour adapter
func NewTourAdapter(client *postgres.Client) *TourAdapter {
	return &TourAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

var _ repositories.TourRepository = (*TourAdapter)(nil)

func (a *TourAdapter) selectTours() *goqu.SelectDataset {
	return a.db.From(goqu.T(toursTable).As("t")).
		LeftJoin(goqu.T(usersTable).As("u"), goqu.On(goqu.I("t.user_id").Eq(goqu.I("u.id")))).
		LeftJoin(goqu.T(preferenceTable).As("pr"), goqu.On(goqu.I("t.preference_id").Eq(goqu.I("pr.id")))).
		Select(
			goqu.I("t.id"), goqu.I("t.title"), goqu.I("t.date_created"), goqu.I("t.user_id"),
			goqu.I("u.username"), goqu.I("t.preference_id"), goqu.I("pr.description"),
		)
}

func tourConditions(pred entities.TourFilter) []goqu.Expression {
	var conds []goqu.Expression
	if pred.UserID != 0 {
		conds = append(conds, goqu.I("t.user_id").Eq(pred.UserID))
	}
	if pred.PreferenceID != 0 {
		conds = append(conds, goqu.I("t.preference_id").Eq(pred.PreferenceID))
	}
	if title := strings.TrimSpace(pred.Title); title != "" {
		conds = append(conds, goqu.I("t.title").ILike("%"+title+"%"))
	}
	return conds
}

// ReadPageQuery builds the count and page queries for a filter
func (a *TourAdapter) ReadPageQuery(filter entities.FilterState[entities.TourFilter]) (countSQL, pageSQL string, err error) {
	order, err := orderBy(tourSortColumns, filter.SortKey, filter.SortDirection, "t.id")
	if err != nil {
		return "", "", err
	}
	conds := tourConditions(filter.Predicates)

	countSQL, _, err = a.db.From(goqu.T(toursTable).As("t")).Select(goqu.COUNT("*")).Where(conds...).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build tour count query", err)
	}
	pageSQL, _, err = paginate(a.selectTours().Where(conds...).Order(order...), filter.Page, filter.PageSize).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build tour page query", err)
	}
	return countSQL, pageSQL, nil
}

// ReadPage reads one page of tours together with their places
func (a *TourAdapter) ReadPage(ctx context.Context, filter entities.FilterState[entities.TourFilter]) (*repositories.PageResult[entities.Tour], error) {
	countSQL, pageSQL, err := a.ReadPageQuery(filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := a.client.DB().QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		return nil, classifyDBError("failed to count tours", err)
	}

	tours, err := a.queryTours(ctx, pageSQL)
	if err != nil {
		return nil, err
	}
	return &repositories.PageResult[entities.Tour]{
		Items:      tours,
		Pagination: pagination(filter.Page, filter.PageSize, total),
	}, nil
}

// GetByID returns one tour with its places
func (a *TourAdapter) GetByID(ctx context.Context, id int64) (*entities.Tour, error) {
	query, _, err := a.selectTours().Where(goqu.I("t.id").Eq(id)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build tour query", err)
	}
	tours, err := a.queryTours(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(tours) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("tour with id %d not found", id))
	}
	return &tours[0], nil
}

// Create inserts a tour, its optional preference and its places in one transaction
func (a *TourAdapter) Create(ctx context.Context, identity entities.Identity, input entities.TourInput) (entities.Tour, error) {
	if identity.UserID == 0 {
		return entities.Tour{}, apperrors.NewUnauthorizedError("sign in to create a tour")
	}
	if strings.TrimSpace(input.Title) == "" {
		return entities.Tour{}, apperrors.NewValidationError("tour title is required")
	}

	var id int64
	err := a.inTx(ctx, "failed to create tour", func(tx *sql.Tx) error {
		preferenceID := input.PreferenceID
		if input.Preference != nil && preferenceID == 0 {
			query, _, err := a.db.Insert(preferenceTable).Rows(preferenceRecord(*input.Preference)).Returning("id").ToSQL()
			if err != nil {
				return err
			}
			if err := tx.QueryRowContext(ctx, query).Scan(&preferenceID); err != nil {
				return err
			}
		}

		query, _, err := a.db.Insert(toursTable).Rows(goqu.Record{
			"title":         input.Title,
			"date_created":  a.now().UTC(),
			"user_id":       identity.UserID,
			"preference_id": nullInt64(preferenceID),
		}).Returning("id").ToSQL()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, query).Scan(&id); err != nil {
			return err
		}
		return a.insertTourPlaces(ctx, tx, id, input.PlaceIDs)
	})
	if err != nil {
		return entities.Tour{}, err
	}

	tour, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Tour{}, err
	}
	return *tour, nil
}

// Update changes a tour's title and preference. A non-nil PlaceIDs replaces the
// tour's places.
func (a *TourAdapter) Update(ctx context.Context, identity entities.Identity, id int64, input entities.TourInput) (entities.Tour, error) {
	if strings.TrimSpace(input.Title) == "" {
		return entities.Tour{}, apperrors.NewValidationError("tour title is required")
	}

	err := a.inTx(ctx, "failed to update tour", func(tx *sql.Tx) error {
		record := goqu.Record{"title": input.Title}
		if input.PreferenceID != 0 {
			record["preference_id"] = input.PreferenceID
		}
		query, _, err := a.db.Update(toursTable).
			Set(record).
			Where(goqu.Ex{"id": id, "user_id": identity.UserID}).
			ToSQL()
		if err != nil {
			return err
		}
		if err := execAffecting(ctx, tx, query, fmt.Sprintf("tour with id %d not found", id)); err != nil {
			return err
		}
		if input.PlaceIDs == nil {
			return nil
		}

		query, _, err = a.db.Delete(tourPlacesTable).Where(goqu.Ex{"tour_id": id}).ToSQL()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
		return a.insertTourPlaces(ctx, tx, id, input.PlaceIDs)
	})
	if err != nil {
		return entities.Tour{}, err
	}

	tour, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Tour{}, err
	}
	return *tour, nil
}

// Delete deletes a tour and its place links
func (a *TourAdapter) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	return a.inTx(ctx, "failed to delete tour", func(tx *sql.Tx) error {
		if err := a.checkOwner(ctx, tx, identity, id); err != nil {
			return err
		}
		query, _, err := a.db.Delete(tourPlacesTable).Where(goqu.Ex{"tour_id": id}).ToSQL()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
		query, _, err = a.db.Delete(toursTable).Where(goqu.Ex{"id": id}).ToSQL()
		if err != nil {
			return err
		}
		return execAffecting(ctx, tx, query, fmt.Sprintf("tour with id %d not found", id))
	})
}

// AddPlace links a place to a tour. Adding a place already on the tour is a no-op.
func (a *TourAdapter) AddPlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	err := a.inTx(ctx, "failed to add place to tour", func(tx *sql.Tx) error {
		if err := a.checkOwner(ctx, tx, identity, tourID); err != nil {
			return err
		}
		return a.insertTourPlaces(ctx, tx, tourID, []int64{placeID})
	})
	if err != nil {
		return entities.Tour{}, err
	}
	tour, err := a.GetByID(ctx, tourID)
	if err != nil {
		return entities.Tour{}, err
	}
	return *tour, nil
}

// RemovePlace unlinks a place from a tour
func (a *TourAdapter) RemovePlace(ctx context.Context, identity entities.Identity, tourID, placeID int64) (entities.Tour, error) {
	err := a.inTx(ctx, "failed to remove place from tour", func(tx *sql.Tx) error {
		if err := a.checkOwner(ctx, tx, identity, tourID); err != nil {
			return err
		}
		query, _, err := a.db.Delete(tourPlacesTable).Where(goqu.Ex{"tour_id": tourID, "place_id": placeID}).ToSQL()
		if err != nil {
			return err
		}
		return execAffecting(ctx, tx, query, fmt.Sprintf("place %d is not on tour %d", placeID, tourID))
	})
	if err != nil {
		return entities.Tour{}, err
	}
	tour, err := a.GetByID(ctx, tourID)
	if err != nil {
		return entities.Tour{}, err
	}
	return *tour, nil
}

func (a *TourAdapter) checkOwner(ctx context.Context, tx *sql.Tx, identity entities.Identity, tourID int64) error {
	query, _, err := a.db.From(toursTable).Select("user_id").Where(goqu.Ex{"id": tourID}).ToSQL()
	if err != nil {
		return err
	}
	var owner int64
	if err := tx.QueryRowContext(ctx, query).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError(fmt.Sprintf("tour with id %d not found", tourID))
		}
		return err
	}
	if owner != identity.UserID {
		return apperrors.NewUnauthorizedError("only the tour's owner can change it")
	}
	return nil
}

func (a *TourAdapter) insertTourPlaces(ctx context.Context, tx *sql.Tx, tourID int64, placeIDs []int64) error {
	if len(placeIDs) == 0 {
		return nil
	}
	rows := make([]any, 0, len(placeIDs))
	for _, placeID := range placeIDs {
		rows = append(rows, goqu.Record{"tour_id": tourID, "place_id": placeID})
	}
	query, _, err := a.db.Insert(tourPlacesTable).Rows(rows...).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query)
	return err
}

// inTx runs fn in a transaction. AppErrors from fn pass through; anything else is
// classified as a database failure.
func (a *TourAdapter) inTx(ctx context.Context, message string, fn func(tx *sql.Tx) error) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return classifyDBError(message, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if apperrors.TypeOf(err) != "" {
			return err
		}
		return classifyDBError(message, err)
	}
	if err := tx.Commit(); err != nil {
		return classifyDBError(message, err)
	}
	return nil
}

func execAffecting(ctx context.Context, tx *sql.Tx, query, notFound string) error {
	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(notFound)
	}
	return nil
}

func (a *TourAdapter) queryTours(ctx context.Context, query string) ([]entities.Tour, error) {
	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classifyDBError("failed to query tours", err)
	}
	defer rows.Close()

	tours := []entities.Tour{}
	for rows.Next() {
		var (
			t                  entities.Tour
			userName, prefDesc sql.NullString
			preferenceID       sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.DateCreated, &t.UserID, &userName, &preferenceID, &prefDesc); err != nil {
			return nil, apperrors.NewInternalError("failed to scan tour", err)
		}
		t.UserName = userName.String
		t.PreferenceID = preferenceID.Int64
		t.PreferenceDescription = prefDesc.String
		t.Places = []entities.Place{}
		tours = append(tours, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("error iterating tours", err)
	}
	if len(tours) == 0 {
		return tours, nil
	}

	ids := make([]int64, len(tours))
	index := make(map[int64]int, len(tours))
	for i, t := range tours {
		ids[i] = t.ID
		index[t.ID] = i
	}
	if err := a.attachPlaces(ctx, tours, ids, index); err != nil {
		return nil, err
	}
	return tours, nil
}

// TourPlacesQuery builds the query loading the places of a set of tours
func (a *TourAdapter) TourPlacesQuery(tourIDs []int64) (string, error) {
	query, _, err := a.db.From(goqu.T(tourPlacesTable).As("tp")).
		Join(goqu.T(placesTable).As("p"), goqu.On(goqu.I("tp.place_id").Eq(goqu.I("p.id")))).
		Select(
			goqu.I("tp.tour_id"), goqu.I("p.id"), goqu.I("p.name"), goqu.I("p.description"),
			goqu.I("p.place_type"), goqu.I("p.latitude"), goqu.I("p.longitude"), goqu.I("p.address"),
			goqu.I("p.average_rating"), goqu.I("p.photo_reference"), goqu.L("0").As("review_count"),
		).
		Where(goqu.I("tp.tour_id").In(tourIDs)).
		Order(goqu.I("tp.tour_id").Asc(), goqu.I("p.id").Asc()).
		ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build tour places query", err)
	}
	return query, nil
}

func (a *TourAdapter) attachPlaces(ctx context.Context, tours []entities.Tour, ids []int64, index map[int64]int) error {
	query, err := a.TourPlacesQuery(ids)
	if err != nil {
		return err
	}
	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return classifyDBError("failed to query tour places", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tourID int64
		place, err := scanPlace(prefixedScanner{rows: rows, prefix: []any{&tourID}})
		if err != nil {
			return apperrors.NewInternalError("failed to scan tour place", err)
		}
		if i, ok := index[tourID]; ok {
			tours[i].Places = append(tours[i].Places, place)
		}
	}
	if err := rows.Err(); err != nil {
		return classifyDBError("error iterating tour places", err)
	}
	return nil
}

// prefixedScanner scans leading columns into prefix before handing the rest to the caller
type prefixedScanner struct {
	rows   *sql.Rows
	prefix []any
}

func (s prefixedScanner) Scan(dest ...any) error {
	return s.rows.Scan(append(append([]any{}, s.prefix...), dest...)...)
}

func preferenceRecord(p entities.Preference) goqu.Record {
	return goqu.Record{
		"description":                 nullString(p.Description),
		"tour_length":                 string(p.TourLength),
		"budget_level":                string(p.BudgetLevel),
		"include_shopping_malls":      p.IncludeShoppingMalls,
		"food_type_preferences":       pq.Array(p.FoodTypePreferences),
		"drink_type_preferences":      pq.Array(p.DrinkTypePreferences),
		"attraction_type_preferences": pq.Array(p.AttractionTypePreferences),
	}
}
