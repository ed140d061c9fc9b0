package realtime

import (
	"context"
	"sync"
)

// Subscriber receives events published to the topics it joined. Deliver must
// not block.
type Subscriber interface {
	Deliver(evt Event)
}

// Broker routes events to topic subscribers.
type Broker interface {
	Subscribe(topic string, s Subscriber)
	Unsubscribe(topic string, s Subscriber)
	Publish(ctx context.Context, topic string, evt Event) error
}

// LocalBroker delivers within the current process.
type LocalBroker struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

// NewLocalBroker constructs an empty broker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{topics: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds s to topic.
func (b *LocalBroker) Subscribe(topic string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.topics[topic] = subs
	}
	subs[s] = struct{}{}
}

// Unsubscribe removes s from topic.
func (b *LocalBroker) Unsubscribe(topic string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers evt to every subscriber of topic.
func (b *LocalBroker) Publish(_ context.Context, topic string, evt Event) error {
	b.deliver(topic, evt)
	return nil
}

// Subscribers reports how many subscribers a topic has.
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *LocalBroker) deliver(topic string, evt Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.topics[topic]))
	for s := range b.topics[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	evt.Room = topic
	for _, s := range subs {
		s.Deliver(evt)
	}
}
