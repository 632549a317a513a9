package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/clients/postgres"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

var placeSortColumns = map[string]string{
	"averageRating": "average_rating",
	"name":          "name",
	"reviewCount":   "review_count",
	"id":            "id",
}

// PlaceAdapter implements repositories.PlaceRepository on the catalog database
type PlaceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPlaceAdapter creates a new place adapter
func NewPlaceAdapter(client *postgres.Client) *PlaceAdapter {
	return &PlaceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.PlaceRepository = (*PlaceAdapter)(nil)

func (a *PlaceAdapter) selectPlaces() *goqu.SelectDataset {
	return a.db.From(placesTable).Select(
		"id", "name", "description", "place_type", "latitude", "longitude",
		"address", "average_rating", "photo_reference",
		goqu.L(fmt.Sprintf("(SELECT COUNT(*) FROM %s r WHERE r.place_id = %s.id)", reviewsTable, placesTable)).As("review_count"),
	)
}

// placeConditions builds the WHERE clause for a place filter
func placeConditions(pred entities.PlaceFilter) []goqu.Expression {
	var conds []goqu.Expression
	if pred.Type != "" {
		conds = append(conds, goqu.C("place_type").Eq(string(pred.Type)))
	}
	if name := strings.TrimSpace(pred.Name); name != "" {
		conds = append(conds, goqu.C("name").ILike("%"+name+"%"))
	}
	return conds
}

// ReadPageQuery builds the count and page queries for a filter
func (a *PlaceAdapter) ReadPageQuery(filter entities.FilterState[entities.PlaceFilter]) (countSQL, pageSQL string, err error) {
	order, err := orderBy(placeSortColumns, filter.SortKey, filter.SortDirection, "id")
	if err != nil {
		return "", "", err
	}
	conds := placeConditions(filter.Predicates)

	countSQL, _, err = a.db.From(placesTable).Select(goqu.COUNT("*")).Where(conds...).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build place count query", err)
	}
	pageSQL, _, err = paginate(a.selectPlaces().Where(conds...).Order(order...), filter.Page, filter.PageSize).ToSQL()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to build place page query", err)
	}
	return countSQL, pageSQL, nil
}

// ReadPage reads one filtered, sorted page of places
func (a *PlaceAdapter) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	countSQL, pageSQL, err := a.ReadPageQuery(filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := a.client.DB().QueryRowContext(ctx, countSQL).Scan(&total); err != nil {
		return nil, classifyDBError("failed to count places", err)
	}

	places, err := a.queryPlaces(ctx, pageSQL)
	if err != nil {
		return nil, err
	}
	return &repositories.PageResult[entities.Place]{
		Items:      places,
		Pagination: pagination(filter.Page, filter.PageSize, total),
	}, nil
}

// GetByID returns one place
func (a *PlaceAdapter) GetByID(ctx context.Context, id int64) (*entities.Place, error) {
	query, _, err := a.selectPlaces().Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build place query", err)
	}
	places, err := a.queryPlaces(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("place with id %d not found", id))
	}
	return &places[0], nil
}

// Create inserts a place
func (a *PlaceAdapter) Create(ctx context.Context, identity entities.Identity, input entities.PlaceInput) (entities.Place, error) {
	if strings.TrimSpace(input.Name) == "" {
		return entities.Place{}, apperrors.NewValidationError("place name is required")
	}

	query, _, err := a.db.Insert(placesTable).Rows(placeRecord(input)).Returning("id").ToSQL()
	if err != nil {
		return entities.Place{}, apperrors.NewInternalError("failed to build place insert query", err)
	}

	var id int64
	if err := a.client.DB().QueryRowContext(ctx, query).Scan(&id); err != nil {
		return entities.Place{}, classifyDBError("failed to create place", err)
	}

	place, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Place{}, err
	}
	return *place, nil
}

// Update replaces a place's mutable fields
func (a *PlaceAdapter) Update(ctx context.Context, identity entities.Identity, id int64, input entities.PlaceInput) (entities.Place, error) {
	query, _, err := a.db.Update(placesTable).
		Set(placeRecord(input)).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return entities.Place{}, apperrors.NewInternalError("failed to build place update query", err)
	}

	if err := a.execAffecting(ctx, query, "failed to update place", id); err != nil {
		return entities.Place{}, err
	}

	place, err := a.GetByID(ctx, id)
	if err != nil {
		return entities.Place{}, err
	}
	return *place, nil
}

// Delete deletes a place
func (a *PlaceAdapter) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	query, _, err := a.db.Delete(placesTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build place delete query", err)
	}
	return a.execAffecting(ctx, query, "failed to delete place", id)
}

func (a *PlaceAdapter) execAffecting(ctx context.Context, query, message string, id int64) error {
	result, err := a.client.DB().ExecContext(ctx, query)
	if err != nil {
		return classifyDBError(message, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("place with id %d not found", id))
	}
	return nil
}

func (a *PlaceAdapter) queryPlaces(ctx context.Context, query string) ([]entities.Place, error) {
	rows, err := a.client.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, classifyDBError("failed to query places", err)
	}
	defer rows.Close()

	places := []entities.Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan place", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError("error iterating places", err)
	}
	return places, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(row rowScanner) (entities.Place, error) {
	var (
		p                                  entities.Place
		description, address, photoRef     sql.NullString
		placeType                          string
		latitude, longitude, averageRating sql.NullFloat64
	)
	err := row.Scan(
		&p.ID, &p.Name, &description, &placeType, &latitude, &longitude,
		&address, &averageRating, &photoRef, &p.ReviewCount,
	)
	if err != nil {
		return entities.Place{}, err
	}
	p.Description = description.String
	p.PlaceType = entities.PlaceType(placeType)
	p.Latitude = floatPtr(latitude)
	p.Longitude = floatPtr(longitude)
	p.Address = address.String
	p.AverageRating = averageRating.Float64
	p.PhotoReference = photoRef.String
	return p, nil
}

func placeRecord(input entities.PlaceInput) goqu.Record {
	return goqu.Record{
		"name":            input.Name,
		"description":     nullString(input.Description),
		"place_type":      string(input.PlaceType),
		"latitude":        nullFloat(input.Latitude),
		"longitude":       nullFloat(input.Longitude),
		"address":         nullString(input.Address),
		"photo_reference": nullString(input.PhotoReference),
	}
}
