package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
	"github.com/bridge-service/bridge_service/pkg/metrics"
)

// TopicChainStep carries transfer progress events.
const TopicChainStep = "chain-step"

const (
	defaultMaxSubscribers      = 100
	defaultHealthCheckInterval = 500 * time.Millisecond
	defaultSubscriberBuffer    = 16
)

// Subscription is a handle to a topic subscription. Events arrive on the
// channel returned by Events; the channel is closed once the subscription
// is fully removed from the bus.
type Subscription struct {
	id     uuid.UUID
	topic  string
	ch     chan entities.ChainStepEvent
	closed atomic.Bool
}

// Events returns the delivery channel
func (s *Subscription) Events() <-chan entities.ChainStepEvent {
	return s.ch
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// Config holds bus tuning parameters
type Config struct {
	MaxSubscribers      int
	HealthCheckInterval time.Duration
	SubscriberBuffer    int
}

// Bus is an in-memory topic publish/subscribe fan-out. Delivery is
// best-effort and at-most-once: a subscriber whose buffer is full misses the
// event, and there is no replay for late joiners.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uuid.UUID]*Subscription

	// Serializes publishes so one call completes before the next is
	// accepted, and so the janitor never closes a channel mid-send.
	pubMu sync.Mutex

	config Config
	logger *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a bus. Call Start to run the liveness janitor.
func New(config Config, logger *zap.Logger) *Bus {
	if config.MaxSubscribers <= 0 {
		config.MaxSubscribers = defaultMaxSubscribers
	}
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = defaultHealthCheckInterval
	}
	if config.SubscriberBuffer <= 0 {
		config.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Bus{
		subscribers: make(map[string]map[uuid.UUID]*Subscription),
		config:      config,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start runs the janitor that removes dead subscriptions on a fixed interval
func (b *Bus) Start() {
	go func() {
		ticker := time.NewTicker(b.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
}

// Shutdown stops the janitor and tears down all subscriptions
func (b *Bus) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.done) })

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			sub.closed.Store(true)
			close(sub.ch)
			delete(subs, id)
		}
		delete(b.subscribers, topic)
	}
	metrics.BusSubscribers.Set(0)
	return nil
}

// Subscribe registers a new subscriber on a topic
func (b *Bus) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]*Subscription)
		b.subscribers[topic] = subs
	}
	if len(subs) >= b.config.MaxSubscribers {
		return nil, fmt.Errorf("topic %s is at its subscriber limit (%d)", topic, b.config.MaxSubscribers)
	}

	sub := &Subscription{
		id:    uuid.New(),
		topic: topic,
		ch:    make(chan entities.ChainStepEvent, b.config.SubscriberBuffer),
	}
	subs[sub.id] = sub
	metrics.BusSubscribers.Inc()

	b.logger.Debug("subscriber added",
		zap.String("topic", topic),
		zap.String("subscription_id", sub.id.String()),
		zap.Int("topic_subscribers", len(subs)))
	return sub, nil
}

// Unsubscribe marks a subscription as dead. It is idempotent and safe to
// call after the janitor has already removed the subscription; the delivery
// channel is closed on the next sweep.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if sub.closed.CompareAndSwap(false, true) {
		b.logger.Debug("subscriber closed",
			zap.String("topic", sub.topic),
			zap.String("subscription_id", sub.id.String()))
	}
}

// Publish fans an event out to every live subscriber of a topic. Publishing
// with zero subscribers is a no-op. Delivery never blocks: a subscriber with
// a full buffer misses the event.
func (b *Bus) Publish(topic string, event entities.ChainStepEvent) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers[topic]))
	for _, sub := range b.subscribers[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	metrics.EventsPublished.Inc()
	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDropped.Inc()
			b.logger.Warn("subscriber buffer full, event dropped",
				zap.String("topic", topic),
				zap.String("subscription_id", sub.id.String()),
				zap.String("step", string(event.Step)))
		}
	}
}

// SubscriberCount returns the number of live subscribers on a topic
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, sub := range b.subscribers[topic] {
		if !sub.closed.Load() {
			count++
		}
	}
	return count
}

// sweep removes subscriptions marked dead and closes their channels
func (b *Bus) sweep() {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			if !sub.closed.Load() {
				continue
			}
			delete(subs, id)
			close(sub.ch)
			metrics.BusSubscribers.Dec()
			b.logger.Debug("subscriber reaped",
				zap.String("topic", topic),
				zap.String("subscription_id", id.String()))
		}
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
}
