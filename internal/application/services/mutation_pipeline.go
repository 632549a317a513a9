package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/repositories"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// MutationKind is the kind of a pending write
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// MutationIntent is a write waiting for the remote to confirm it. Creates carry a
// client-generated TempID until the server assigns the real id.
type MutationIntent struct {
	ID       uuid.UUID
	Kind     MutationKind
	TempID   uuid.UUID
	TargetID int64
	Payload  any
	IssuedAt time.Time
}

// MutationPipeline applies confirmed writes for one list. Nothing changes locally
// before the remote call succeeds, so a failed write needs no rollback.
type MutationPipeline[T entities.Record, I any] struct {
	list     string
	writer   repositories.EntityWriter[T, I]
	governor *FailureGovernor
	cooldown time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]MutationIntent
}

// NewMutationPipeline creates a pipeline for list writing through writer
func NewMutationPipeline[T entities.Record, I any](list string, writer repositories.EntityWriter[T, I], opts SyncOptions) *MutationPipeline[T, I] {
	return &MutationPipeline[T, I]{
		list:     list,
		writer:   writer,
		governor: opts.Governor,
		cooldown: opts.Cooldown,
		metrics:  opts.Metrics,
		logger:   observability.Component("mutation_pipeline").With().Str("list", list).Logger(),
		pending:  make(map[uuid.UUID]MutationIntent),
	}
}

// Create asks the remote to create input and returns the stored record
func (p *MutationPipeline[T, I]) Create(ctx context.Context, identity entities.Identity, input I) (T, error) {
	intent := MutationIntent{Kind: MutationCreate, TempID: uuid.New(), Payload: input}
	return p.run(ctx, intent, func(ctx context.Context) (T, error) {
		return p.writer.Create(ctx, identity, input)
	})
}

// Update asks the remote to replace record id with input
func (p *MutationPipeline[T, I]) Update(ctx context.Context, identity entities.Identity, id int64, input I) (T, error) {
	intent := MutationIntent{Kind: MutationUpdate, TargetID: id, Payload: input}
	return p.run(ctx, intent, func(ctx context.Context) (T, error) {
		return p.writer.Update(ctx, identity, id, input)
	})
}

// Remove asks the remote to delete record id
func (p *MutationPipeline[T, I]) Remove(ctx context.Context, identity entities.Identity, id int64) error {
	intent := MutationIntent{Kind: MutationDelete, TargetID: id}
	_, err := p.run(ctx, intent, func(ctx context.Context) (T, error) {
		var zero T
		return zero, p.writer.Delete(ctx, identity, id)
	})
	return err
}

// Amend runs a family-specific confirmed write that returns the updated record,
// such as adding a place to a tour.
func (p *MutationPipeline[T, I]) Amend(ctx context.Context, name string, id int64, op func(context.Context) (T, error)) (T, error) {
	intent := MutationIntent{Kind: MutationKind(name), TargetID: id}
	return p.run(ctx, intent, op)
}

// Pending returns the writes still waiting for the remote, oldest first
func (p *MutationPipeline[T, I]) Pending() []MutationIntent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]MutationIntent, 0, len(p.pending))
	for _, intent := range p.pending {
		out = append(out, intent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

// Channel is the governor channel guarding a write
func (p *MutationPipeline[T, I]) Channel(kind MutationKind, id int64) string {
	if id == 0 {
		return fmt.Sprintf("%s:%s", p.list, kind)
	}
	return fmt.Sprintf("%s:%s:%d", p.list, kind, id)
}

func (p *MutationPipeline[T, I]) run(ctx context.Context, intent MutationIntent, op func(context.Context) (T, error)) (T, error) {
	intent.ID = uuid.New()
	intent.IssuedAt = time.Now()

	p.mu.Lock()
	p.pending[intent.ID] = intent
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, intent.ID)
		p.mu.Unlock()
	}()

	ctx, span := observability.StartSpan(ctx, "MutationPipeline."+string(intent.Kind),
		attribute.String("catalog.list", p.list),
		attribute.Int64("catalog.target_id", intent.TargetID),
	)
	defer span.End()

	record, err := Guard(ctx, p.governor, p.Channel(intent.Kind, intent.TargetID), p.cooldown, op)
	p.metrics.RecordMutation(ctx, p.list, string(intent.Kind), err)
	if err != nil {
		observability.RecordError(span, err)
		p.logger.Error().Err(err).
			Str("mutation", string(intent.Kind)).
			Int64("entity_id", intent.TargetID).
			Msg("write failed")
		return record, err
	}

	event := p.logger.Debug().Str("mutation", string(intent.Kind))
	if intent.Kind == MutationCreate {
		event = event.Str("temp_id", intent.TempID.String()).Int64("entity_id", record.EntityID())
	} else {
		event = event.Int64("entity_id", intent.TargetID)
	}
	event.Msg("write confirmed")
	return record, nil
}

// ApplyCreated places a newly created record at the head of window
func ApplyCreated[T entities.Record](window *entities.PageWindow[T], record T) *entities.PageWindow[T] {
	return window.Prepend(record)
}

// ApplyUpdated swaps record in place; a record outside the window leaves it unchanged
func ApplyUpdated[T entities.Record](window *entities.PageWindow[T], record T) *entities.PageWindow[T] {
	next, _ := window.Replace(record)
	return next
}

// ApplyRemoved drops id from window; an id outside the window is a no-op
func ApplyRemoved[T entities.Record](window *entities.PageWindow[T], id int64) *entities.PageWindow[T] {
	next, _ := window.Remove(id)
	return next
}
