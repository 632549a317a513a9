package providers

import (
	"context"
	"fmt"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to entity changes
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.EntityChangeEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.EntityChangeEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelPrefix is the prefix of every catalog change channel
const EventChannelPrefix = "catalog:"

// GetFamilyChannel returns the channel carrying every change to a family
func GetFamilyChannel(family entities.Family) string {
	return EventChannelPrefix + string(family)
}

// GetParentChannel returns the channel carrying changes to a family scoped to one
// parent, e.g. the reviews of a single place
func GetParentChannel(family entities.Family, parentID int64) string {
	return fmt.Sprintf("%s%s:%d", EventChannelPrefix, family, parentID)
}

// ChannelsFor returns every channel an event should be published on
func ChannelsFor(event *entities.EntityChangeEvent) []string {
	channels := []string{GetFamilyChannel(event.Family)}
	if event.ParentID != 0 {
		channels = append(channels, GetParentChannel(event.Family, event.ParentID))
	}
	return channels
}
