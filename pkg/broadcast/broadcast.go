// Package broadcast publishes node/link/job state changes to subscribers
// (UI consumers, CLI watch commands): buffered channel, subscribe/
// unsubscribe, non-blocking fan-out that drops a full subscriber buffer's
// oldest event rather than stalling the publisher.
package broadcast

import (
	"sync"
	"time"
)

// EventType is the kind of state change being broadcast.
type EventType string

const (
	EventNodeStateChanged  EventType = "node_state.changed"
	EventLinkStateChanged  EventType = "link_state.changed"
	EventJobCreated        EventType = "job.created"
	EventJobStatusChanged  EventType = "job.status_changed"
	EventLabStateChanged   EventType = "lab.state_changed"
	EventHostStatusChanged EventType = "host.status_changed"
)

// Event is one published state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	LabID     string
	EntityID  string // NodeID, LinkID, JobID, or HostID depending on Type
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker distributes events to subscribers without blocking the publisher.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a Broker with a 200-event publish buffer.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 200),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts distribution; Publish after Stop is a noop.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber with a 100-event buffer.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 100)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish queues an event for distribution. Job-progress broadcasts may be
// reordered relative to each other by the time they reach a subscriber;
// consumers must tolerate that.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full: drop its oldest queued event to make
			// room rather than block the publisher
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- event:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
