package realtime

import (
	"context"
	"errors"
	"fmt"
)

// Broadcaster publishes a trigger to every room in its emission table.
type Broadcaster struct {
	broker Broker
}

// NewBroadcaster wraps a broker.
func NewBroadcaster(broker Broker) *Broadcaster {
	return &Broadcaster{broker: broker}
}

// Emit publishes data under each emission of t. Every emission is attempted;
// failures are joined.
func (b *Broadcaster) Emit(ctx context.Context, t Trigger, data any) error {
	var errs []error
	for _, em := range EmissionsFor(t) {
		evt, err := NewEvent(em.Event, data)
		if err != nil {
			return err
		}
		if err := b.broker.Publish(ctx, em.Room, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s to %s: %w", em.Event, em.Room, err))
		}
	}
	return errors.Join(errs...)
}
