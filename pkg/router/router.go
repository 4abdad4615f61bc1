package router

import (
	"sync"
	"time"

	"github.com/cuemby/dispatchd/pkg/types"
)

// JobMessageRouter is the outbound collaborator the Dispatch Engine uses to
// publish WorkerEvent variants to the job-management plane. RouteWorkerEvent
// reports whether the event was accepted for delivery; it does not guarantee
// the job-management plane has processed it.
type JobMessageRouter interface {
	RouteWorkerEvent(event types.WorkerEvent) bool
}

// Envelope pairs a routed WorkerEvent with the time it was published, for
// subscribers that want to measure routing lag.
type Envelope struct {
	Event     types.WorkerEvent
	Published time.Time
}

// Subscription is a channel of routed events.
type Subscription chan *Envelope

// Broker is an in-memory JobMessageRouter. It broadcasts every routed event
// to all current subscribers without blocking the caller: a full subscriber
// buffer skips that subscriber for that event rather than stalling the
// placement or cancellation pipeline that published it.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscription]bool
	eventCh     chan *Envelope
	stopCh      chan struct{}
}

// NewBroker creates a Broker. Call Start before RouteWorkerEvent and Stop on
// shutdown.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscription]bool),
		eventCh:     make(chan *Envelope, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broadcast loop in its own goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop signals the broadcast loop to exit. Subscriber channels are left open;
// callers should Unsubscribe explicitly.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscription and returns its channel.
func (b *Broker) Subscribe() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscription, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscription.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// RouteWorkerEvent implements JobMessageRouter. It returns true once the
// event is queued on the broker's buffered channel, and false only when the
// broker has been stopped, which is a shutdown race rather than a routing
// failure the engine should act on.
func (b *Broker) RouteWorkerEvent(event types.WorkerEvent) bool {
	envelope := &Envelope{Event: event, Published: time.Now()}

	select {
	case b.eventCh <- envelope:
		return true
	case <-b.stopCh:
		return false
	}
}

func (b *Broker) run() {
	for {
		select {
		case envelope := <-b.eventCh:
			b.broadcast(envelope)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(envelope *Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- envelope:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
