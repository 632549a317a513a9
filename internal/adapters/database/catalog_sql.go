package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

const (
	placesTable     = "places_skopje"
	reviewsTable    = "reviews_skopje"
	toursTable      = "tours"
	tourPlacesTable = "tour_places_skopje"
	usersTable      = "tourly_users"
	preferenceTable = "preferences"
)

// orderBy resolves an API sort key against the columns a family may be sorted by.
// The tie column is always appended so pages are stable.
func orderBy(columns map[string]string, key string, dir entities.SortDirection, tieColumn string) ([]exp.OrderedExpression, error) {
	column, ok := columns[key]
	if !ok {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("cannot sort by %q", key))
	}

	ident := goqu.I(column)
	tie := goqu.I(tieColumn)
	if dir == entities.SortDescending {
		return []exp.OrderedExpression{ident.Desc().NullsLast(), tie.Desc()}, nil
	}
	return []exp.OrderedExpression{ident.Asc().NullsLast(), tie.Asc()}, nil
}

// paginate applies LIMIT/OFFSET for a zero-based page
func paginate(ds *goqu.SelectDataset, page, size int) *goqu.SelectDataset {
	ds = ds.Limit(uint(size))
	if page > 0 {
		ds = ds.Offset(uint(page * size))
	}
	return ds
}

// pagination builds the page metadata from a total count
func pagination(page, size int, total int64) entities.Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return entities.Pagination{
		Page:          page,
		Size:          size,
		TotalPages:    totalPages,
		TotalElements: total,
		Last:          page+1 >= totalPages,
	}
}

// classifyDBError maps driver failures to the catalog error taxonomy
func classifyDBError(message string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(message + ": not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "42":
			return &apperrors.AppError{Type: apperrors.ErrorTypeInvalidQuery, Message: message, Err: err}
		case "23":
			return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: pqErr.Message, Err: err}
		case "28":
			return &apperrors.AppError{Type: apperrors.ErrorTypeUnauthorized, Message: message, Err: err}
		}
	}
	return apperrors.NewRemoteUnavailableError(message, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
