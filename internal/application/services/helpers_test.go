package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func placeAt(id int64, name string, lat, lng float64) entities.Place {
	return entities.Place{
		ID:        id,
		Name:      name,
		PlaceType: entities.PlaceTypeHistorical,
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
	}
}

func paginate[T entities.Record](items []T, page, size int) *repositories.PageResult[T] {
	total := len(items)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return &repositories.PageResult[T]{
		Items: out,
		Pagination: entities.Pagination{
			Page:          page,
			Size:          size,
			TotalPages:    pages,
			TotalElements: int64(total),
			Last:          page >= pages-1,
		},
	}
}

// fakePlaceRepo is an in-memory place source. A gate registered for a name blocks
// reads searching that name until it is released.
type fakePlaceRepo struct {
	mu       sync.Mutex
	places   []entities.Place
	gates    map[string]chan struct{}
	readErr  error
	writeErr error
	reads    int
	writes   int
	nextID   int64
}

func newFakePlaceRepo(places ...entities.Place) *fakePlaceRepo {
	return &fakePlaceRepo{places: places, gates: make(map[string]chan struct{}), nextID: 100}
}

func (r *fakePlaceRepo) gate(name string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{})
	r.gates[name] = ch
	return ch
}

func (r *fakePlaceRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *fakePlaceRepo) ReadPage(ctx context.Context, filter entities.FilterState[entities.PlaceFilter]) (*repositories.PageResult[entities.Place], error) {
	r.mu.Lock()
	r.reads++
	gate := r.gates[filter.Predicates.Name]
	err := r.readErr
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []entities.Place
	for _, p := range r.places {
		if filter.Predicates.Type != "" && p.PlaceType != filter.Predicates.Type {
			continue
		}
		if filter.Predicates.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Predicates.Name)) {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, filter.Page, filter.PageSize), nil
}

func (r *fakePlaceRepo) Create(ctx context.Context, identity entities.Identity, input entities.PlaceInput) (entities.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return entities.Place{}, r.writeErr
	}
	r.nextID++
	p := entities.Place{
		ID:        r.nextID,
		Name:      input.Name,
		PlaceType: input.PlaceType,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	r.places = append([]entities.Place{p}, r.places...)
	return p, nil
}

func (r *fakePlaceRepo) Update(ctx context.Context, identity entities.Identity, id int64, input entities.PlaceInput) (entities.Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return entities.Place{}, r.writeErr
	}
	for i, p := range r.places {
		if p.ID == id {
			p.Name = input.Name
			p.PlaceType = input.PlaceType
			r.places[i] = p
			return p, nil
		}
	}
	return entities.Place{}, apperrors.NewNotFoundError(fmt.Sprintf("place %d not found", id))
}

func (r *fakePlaceRepo) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return r.writeErr
	}
	for i, p := range r.places {
		if p.ID == id {
			r.places = append(r.places[:i], r.places[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeReviewRepo is an in-memory review source
type fakeReviewRepo struct {
	mu       sync.Mutex
	reviews  []entities.Review
	writeErr error
	nextID   int64
}

func newFakeReviewRepo(reviews ...entities.Review) *fakeReviewRepo {
	return &fakeReviewRepo{reviews: reviews, nextID: 500}
}

func (r *fakeReviewRepo) ReadPage(ctx context.Context, filter entities.FilterState[entities.ReviewFilter]) (*repositories.PageResult[entities.Review], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []entities.Review
	for _, rv := range r.reviews {
		if filter.Predicates.PlaceID != 0 && rv.PlaceID != filter.Predicates.PlaceID {
			continue
		}
		if filter.Predicates.UserID != 0 && rv.UserID != filter.Predicates.UserID {
			continue
		}
		matched = append(matched, rv)
	}
	return paginate(matched, filter.Page, filter.PageSize), nil
}

func (r *fakeReviewRepo) Create(ctx context.Context, identity entities.Identity, input entities.ReviewInput) (entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return entities.Review{}, r.writeErr
	}
	r.nextID++
	rv := entities.Review{
		ID:        r.nextID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		PlaceID:   input.PlaceID,
		UserID:    identity.UserID,
		UserName:  identity.Username,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	r.reviews = append([]entities.Review{rv}, r.reviews...)
	return rv, nil
}

func (r *fakeReviewRepo) Update(ctx context.Context, identity entities.Identity, id int64, input entities.ReviewInput) (entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return entities.Review{}, r.writeErr
	}
	for i, rv := range r.reviews {
		if rv.ID == id {
			rv.Rating = input.Rating
			rv.Comment = input.Comment
			r.reviews[i] = rv
			return rv, nil
		}
	}
	return entities.Review{}, apperrors.NewNotFoundError(fmt.Sprintf("review %d not found", id))
}

func (r *fakeReviewRepo) Delete(ctx context.Context, identity entities.Identity, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	for i, rv := range r.reviews {
		if rv.ID == id {
			r.reviews = append(r.reviews[:i], r.reviews[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeReviewRepo) UserReviewForPlace(ctx context.Context, placeID, userID int64) (*entities.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rv := range r.reviews {
		if rv.PlaceID == placeID && rv.UserID == userID {
			cp := rv
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("review not found")
}

// recordingBus is an in-memory EventBus that remembers what was published and fans
// events out to subscribers
type recordingBus struct {
	mu          sync.Mutex
	published   map[string][]*entities.EntityChangeEvent
	subscribers map[string][]chan *entities.EntityChangeEvent
}

func newRecordingBus() *recordingBus {
	return &recordingBus{
		published:   make(map[string][]*entities.EntityChangeEvent),
		subscribers: make(map[string][]chan *entities.EntityChangeEvent),
	}
}

func (b *recordingBus) Publish(ctx context.Context, channel string, event *entities.EntityChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], event)
	for _, ch := range b.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.EntityChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.EntityChangeEvent, 16)
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	return ch, nil
}

func (b *recordingBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, channel)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) publishedOn(channel string) []*entities.EntityChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*entities.EntityChangeEvent(nil), b.published[channel]...)
}

var _ providers.EventBus = (*recordingBus)(nil)

var user = entities.Identity{UserID: 7, Username: "ana", Token: "t"}
