package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"project-collab-backend/pkg/utils"
)

// Guarantee is the delivery guarantee a topic promises its subscribers.
type Guarantee string

const (
	// AtLeastOnce may invoke a handler more than once for the same event.
	AtLeastOnce Guarantee = "at-least-once"
	// ExactlyOnce suppresses redelivery of an event ID that a handler has
	// already processed successfully.
	ExactlyOnce Guarantee = "exactly-once"
)

// Topic names an event stream and fixes its delivery guarantee.
type Topic struct {
	Name      string
	Guarantee Guarantee
}

// Event is a single published message. Payload keeps the concrete type the
// publisher passed in; subscribers assert it back.
type Event struct {
	ID          string
	Topic       string
	Payload     interface{}
	PublishedAt time.Time
}

// Handler processes one event. A non-nil error triggers the retry policy.
type Handler func(ctx context.Context, ev Event) error

// SubscriptionConfig controls retry behaviour for one subscription.
type SubscriptionConfig struct {
	// Name identifies the subscription in logs and dead letters.
	Name string
	// MaxAttempts caps delivery attempts before the event is dead-lettered.
	// Zero means the default of 5.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry, doubling on each
	// subsequent one. Zero means the default of 100ms.
	InitialBackoff time.Duration
}

// DeadLetter records an event that exhausted its delivery attempts.
type DeadLetter struct {
	Event        Event
	Subscription string
	Attempts     int
	LastError    string
}

type subscription struct {
	topic   Topic
	config  SubscriptionConfig
	handler Handler
	ch      chan Event

	// seen tracks successfully processed event IDs for exactly-once topics.
	seen map[string]bool
}

// Broker is an in-process event bus. Every subscription gets its own
// dispatch goroutine, so one slow handler never stalls another.
type Broker struct {
	mu          sync.Mutex
	subs        []*subscription
	deadLetters []DeadLetter
	started     bool
	closed      bool

	inflight sync.WaitGroup
	workers  sync.WaitGroup
}

// NewBroker creates an empty broker. Register subscriptions, then call Start.
func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe registers a handler for a topic. Must be called before Start.
func (b *Broker) Subscribe(topic Topic, config SubscriptionConfig, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("cannot subscribe after broker start")
	}
	if config.Name == "" {
		return fmt.Errorf("subscription name is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 100 * time.Millisecond
	}

	sub := &subscription{
		topic:   topic,
		config:  config,
		handler: handler,
		ch:      make(chan Event, 256),
	}
	if topic.Guarantee == ExactlyOnce {
		sub.seen = make(map[string]bool)
	}
	b.subs = append(b.subs, sub)
	return nil
}

// Start launches one dispatch goroutine per subscription.
func (b *Broker) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return
	}
	b.started = true

	for _, sub := range b.subs {
		b.workers.Add(1)
		go b.dispatch(sub)
	}
}

// Publish fans an event out to every subscription of the topic and returns
// the generated event ID. Delivery happens asynchronously.
func (b *Broker) Publish(topic Topic, payload interface{}) (string, error) {
	id, err := utils.GenerateURLToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate event id: %w", err)
	}

	ev := Event{
		ID:          id,
		Topic:       topic.Name,
		Payload:     payload,
		PublishedAt: time.Now(),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", fmt.Errorf("broker is closed")
	}
	if !b.started {
		b.mu.Unlock()
		return "", fmt.Errorf("broker is not started")
	}
	var targets []*subscription
	for _, sub := range b.subs {
		if sub.topic.Name == topic.Name {
			targets = append(targets, sub)
		}
	}
	b.inflight.Add(len(targets))
	b.mu.Unlock()

	// Channel sends happen outside the lock so a backed-up subscription
	// cannot deadlock against a dead-letter append.
	for _, sub := range targets {
		sub.ch <- ev
	}
	return id, nil
}

func (b *Broker) dispatch(sub *subscription) {
	defer b.workers.Done()

	for ev := range sub.ch {
		b.deliver(sub, ev)
		b.inflight.Done()
	}
}

func (b *Broker) deliver(sub *subscription, ev Event) {
	if sub.topic.Guarantee == ExactlyOnce && sub.seen[ev.ID] {
		return
	}

	backoff := sub.config.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= sub.config.MaxAttempts; attempt++ {
		lastErr = sub.handler(context.Background(), ev)
		if lastErr == nil {
			if sub.topic.Guarantee == ExactlyOnce {
				sub.seen[ev.ID] = true
			}
			return
		}

		fmt.Printf("[warn] subscription %s failed on event %s (attempt %d/%d): %v\n",
			sub.config.Name, ev.ID, attempt, sub.config.MaxAttempts, lastErr)

		if attempt < sub.config.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	fmt.Printf("[error] subscription %s dead-lettered event %s after %d attempts: %v\n",
		sub.config.Name, ev.ID, sub.config.MaxAttempts, lastErr)

	b.mu.Lock()
	b.deadLetters = append(b.deadLetters, DeadLetter{
		Event:        ev,
		Subscription: sub.config.Name,
		Attempts:     sub.config.MaxAttempts,
		LastError:    lastErr.Error(),
	})
	b.mu.Unlock()
}

// Flush blocks until every event published so far has been handled or
// dead-lettered. Intended for tests and graceful shutdown.
func (b *Broker) Flush() {
	b.inflight.Wait()
}

// DeadLetters returns a copy of the accumulated dead letters.
func (b *Broker) DeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]DeadLetter, len(b.deadLetters))
	copy(out, b.deadLetters)
	return out
}

// Close drains inflight events and stops all dispatch goroutines.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.workers.Wait()
}
