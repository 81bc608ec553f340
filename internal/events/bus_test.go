package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

func newTestBus(t *testing.T, config Config) *Bus {
	t.Helper()
	bus := New(config, zap.NewNop())
	t.Cleanup(func() { bus.Shutdown(context.Background()) })
	return bus
}

func stepEvent(step entities.TransferStep) entities.ChainStepEvent {
	return entities.ChainStepEvent{
		Chain:     entities.ChainBaseSepolia,
		Step:      step,
		EmittedAt: time.Now(),
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus(t, Config{})

	sub, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)

	bus.Publish(TopicChainStep, stepEvent(entities.StepBurning))

	select {
	case event := <-sub.Events():
		assert.Equal(t, entities.StepBurning, event.Step)
		assert.Equal(t, entities.ChainBaseSepolia, event.Chain)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventOrdering(t *testing.T) {
	bus := newTestBus(t, Config{})

	sub, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)

	steps := []entities.TransferStep{
		entities.StepBurning,
		entities.StepAwaitingAttestation,
		entities.StepMinting,
		entities.StepDone,
	}
	for _, step := range steps {
		bus.Publish(TopicChainStep, stepEvent(step))
	}

	for _, want := range steps {
		select {
		case event := <-sub.Events():
			assert.Equal(t, want, event.Step)
		case <-time.After(time.Second):
			t.Fatalf("did not receive %s", want)
		}
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := newTestBus(t, Config{})

	done := make(chan struct{})
	go func() {
		bus.Publish(TopicChainStep, stepEvent(entities.StepDone))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with zero subscribers")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := newTestBus(t, Config{SubscriberBuffer: 1})

	slow, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)
	healthy, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)

	// Fill the slow subscriber's buffer, then keep publishing.
	bus.Publish(TopicChainStep, stepEvent(entities.StepBurning))
	drainHealthy(t, healthy)

	done := make(chan struct{})
	go func() {
		bus.Publish(TopicChainStep, stepEvent(entities.StepDone))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The healthy subscriber still receives the event.
	select {
	case event := <-healthy.Events():
		assert.Equal(t, entities.StepDone, event.Step)
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber starved by slow one")
	}

	// The slow subscriber keeps only its buffered event.
	select {
	case event := <-slow.Events():
		assert.Equal(t, entities.StepBurning, event.Step)
	case <-time.After(time.Second):
		t.Fatal("buffered event lost")
	}
}

func drainHealthy(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case <-sub.Events():
	case <-time.After(time.Second):
		t.Fatal("expected buffered event")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := newTestBus(t, Config{HealthCheckInterval: 10 * time.Millisecond})
	bus.Start()

	sub, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)

	// After the janitor has reaped it, a further unsubscribe is still safe.
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(TopicChainStep) == 0
	}, time.Second, 10*time.Millisecond)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
}

func TestJanitorReapsClosedSubscribers(t *testing.T) {
	bus := newTestBus(t, Config{HealthCheckInterval: 10 * time.Millisecond})
	bus.Start()

	closed, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)
	live, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)
	assert.Equal(t, 2, bus.SubscriberCount(TopicChainStep))

	bus.Unsubscribe(closed)

	// The reaped subscription's channel is closed by the sweep.
	require.Eventually(t, func() bool {
		select {
		case _, open := <-closed.Events():
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	// Delivery to the remaining subscriber is unaffected.
	bus.Publish(TopicChainStep, stepEvent(entities.StepDone))
	select {
	case event := <-live.Events():
		assert.Equal(t, entities.StepDone, event.Step)
	case <-time.After(time.Second):
		t.Fatal("live subscriber lost delivery after reap")
	}
	assert.Equal(t, 1, bus.SubscriberCount(TopicChainStep))
}

func TestSubscriberLimit(t *testing.T) {
	bus := newTestBus(t, Config{MaxSubscribers: 100})

	subs := make([]*Subscription, 0, 100)
	for i := 0; i < 100; i++ {
		sub, err := bus.Subscribe(TopicChainStep)
		require.NoError(t, err, "subscriber %d should be accepted", i)
		subs = append(subs, sub)
	}

	_, err := bus.Subscribe(TopicChainStep)
	assert.Error(t, err, "subscriber beyond the limit must be rejected")

	// Fan-out reaches every one of the 100 subscribers.
	bus.Publish(TopicChainStep, stepEvent(entities.StepBurning))
	for i, sub := range subs {
		select {
		case event := <-sub.Events():
			assert.Equal(t, entities.StepBurning, event.Step)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d missed the event", i)
		}
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := newTestBus(t, Config{})

	chainSub, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)
	otherSub, err := bus.Subscribe("other-topic")
	require.NoError(t, err)

	bus.Publish(TopicChainStep, stepEvent(entities.StepBurning))

	select {
	case <-chainSub.Events():
	case <-time.After(time.Second):
		t.Fatal("subscribed topic missed the event")
	}

	select {
	case event := <-otherSub.Events():
		t.Fatalf("unrelated topic received %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentPublishers(t *testing.T) {
	bus := newTestBus(t, Config{SubscriberBuffer: 256})

	sub, err := bus.Subscribe(TopicChainStep)
	require.NoError(t, err)

	const publishers = 8
	const perPublisher = 16
	for p := 0; p < publishers; p++ {
		go func(p int) {
			for i := 0; i < perPublisher; i++ {
				event := stepEvent(entities.StepBurning)
				event.Message = fmt.Sprintf("publisher-%d", p)
				bus.Publish(TopicChainStep, event)
			}
		}(p)
	}

	for i := 0; i < publishers*perPublisher; i++ {
		select {
		case event := <-sub.Events():
			assert.NotEmpty(t, event.Message)
		case <-time.After(time.Second):
			t.Fatalf("received %d of %d events", i, publishers*perPublisher)
		}
	}
}
