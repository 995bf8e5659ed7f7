package pubsub

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopic(guarantee Guarantee) Topic {
	return Topic{Name: "test-topic", Guarantee: guarantee}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	broker := NewBroker()
	topic := testTopic(AtLeastOnce)

	var first, second atomic.Int32
	require.NoError(t, broker.Subscribe(topic, SubscriptionConfig{Name: "first"}, func(ctx context.Context, ev Event) error {
		first.Add(1)
		return nil
	}))
	require.NoError(t, broker.Subscribe(topic, SubscriptionConfig{Name: "second"}, func(ctx context.Context, ev Event) error {
		second.Add(1)
		return nil
	}))

	broker.Start()
	defer broker.Close()

	id, err := broker.Publish(topic, "payload")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	broker.Flush()
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestPublishCarriesPayloadAndDistinctIDs(t *testing.T) {
	broker := NewBroker()
	topic := testTopic(AtLeastOnce)

	events := make(chan Event, 2)
	require.NoError(t, broker.Subscribe(topic, SubscriptionConfig{Name: "collector"}, func(ctx context.Context, ev Event) error {
		events <- ev
		return nil
	}))

	broker.Start()
	defer broker.Close()

	id1, err := broker.Publish(topic, 41)
	require.NoError(t, err)
	id2, err := broker.Publish(topic, 42)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	broker.Flush()
	close(events)

	payloads := []interface{}{}
	for ev := range events {
		assert.Equal(t, "test-topic", ev.Topic)
		payloads = append(payloads, ev.Payload)
	}
	assert.ElementsMatch(t, []interface{}{41, 42}, payloads)
}

func TestRetryEventuallySucceeds(t *testing.T) {
	broker := NewBroker()
	topic := testTopic(AtLeastOnce)

	var calls atomic.Int32
	require.NoError(t, broker.Subscribe(topic, SubscriptionConfig{
		Name:           "flaky",
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context, ev Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	broker.Start()
	defer broker.Close()

	_, err := broker.Publish(topic, nil)
	require.NoError(t, err)
	broker.Flush()

	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, broker.DeadLetters())
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	broker := NewBroker()
	topic := testTopic(AtLeastOnce)

	var calls atomic.Int32
	require.NoError(t, broker.Subscribe(topic, SubscriptionConfig{
		Name:           "broken",
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return errors.New("permanent failure")
	}))

	broker.Start()
	defer broker.Close()

	id, err := broker.Publish(topic, nil)
	require.NoError(t, err)
	broker.Flush()

	assert.Equal(t, int32(3), calls.Load())

	letters := broker.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, id, letters[0].Event.ID)
	assert.Equal(t, "broken", letters[0].Subscription)
	assert.Equal(t, 3, letters[0].Attempts)
	assert.Contains(t, letters[0].LastError, "permanent failure")
}

func TestSubscribeAfterStartFails(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Close()

	err := broker.Subscribe(testTopic(AtLeastOnce), SubscriptionConfig{Name: "late"}, func(ctx context.Context, ev Event) error {
		return nil
	})
	assert.Error(t, err)
}

func TestPublishBeforeStartFails(t *testing.T) {
	broker := NewBroker()
	_, err := broker.Publish(testTopic(AtLeastOnce), nil)
	assert.Error(t, err)
}

func TestSubscriptionNameRequired(t *testing.T) {
	broker := NewBroker()
	err := broker.Subscribe(testTopic(AtLeastOnce), SubscriptionConfig{}, func(ctx context.Context, ev Event) error {
		return nil
	})
	assert.Error(t, err)
}
