package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/providers"
	"github.com/ZanaKriezi/tourly-skopje-guide/internal/infrastructure/observability"
)

// Refresher is a list that can refetch its current filter
type Refresher interface {
	Refresh(ctx context.Context)
}

// ChangeListener refetches a list whenever the change feed reports a write to its
// family. This is how a list converges with writes made elsewhere.
type ChangeListener struct {
	eventBus providers.EventBus
	channel  string
	target   Refresher
	timeout  time.Duration
	logger   zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handled int
	mu      sync.Mutex
}

// NewChangeListener creates a listener refreshing target on changes to family
func NewChangeListener(eventBus providers.EventBus, family entities.Family, target Refresher) *ChangeListener {
	return NewChangeListenerOnChannel(eventBus, providers.GetFamilyChannel(family), target)
}

// NewChangeListenerOnChannel creates a listener on an explicit channel, e.g. the
// reviews of a single place
func NewChangeListenerOnChannel(eventBus providers.EventBus, channel string, target Refresher) *ChangeListener {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChangeListener{
		eventBus: eventBus,
		channel:  channel,
		target:   target,
		timeout:  10 * time.Second,
		logger:   observability.Component("change_listener").With().Str("channel", channel).Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for change events
func (l *ChangeListener) Start() error {
	eventChan, err := l.eventBus.Subscribe(l.ctx, l.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	l.wg.Add(1)
	go l.processEvents(eventChan)
	l.logger.Info().Msg("change listener started")
	return nil
}

// Stop stops the listener and waits for the event loop to exit
func (l *ChangeListener) Stop() {
	l.cancel()
	l.wg.Wait()
	l.logger.Info().Msg("change listener stopped")
}

// Handled returns the number of events that triggered a refresh
func (l *ChangeListener) Handled() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handled
}

func (l *ChangeListener) processEvents(eventChan <-chan *entities.EntityChangeEvent) {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			l.handleEvent(event)
		}
	}
}

func (l *ChangeListener) handleEvent(event *entities.EntityChangeEvent) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	l.logger.Debug().
		Str("event_id", event.ID).
		Str("family", string(event.Family)).
		Str("kind", string(event.Kind)).
		Int64("entity_id", event.EntityID).
		Msg("change received, refreshing list")

	l.target.Refresh(ctx)

	l.mu.Lock()
	l.handled++
	l.mu.Unlock()
}
