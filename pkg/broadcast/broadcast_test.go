package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventNodeStateChanged, LabID: "lab-1", EntityID: "node-1"})

	select {
	case ev := <-sub:
		require.Equal(t, EventNodeStateChanged, ev.Type)
		require.Equal(t, "node-1", ev.EntityID)
		require.False(t, ev.Timestamp.IsZero(), "Publish should stamp a zero Timestamp")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(&Event{Type: EventJobCreated})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case <-sub:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out event")
		}
	}
}

func TestPublishDropsOnFullSubscriberBufferWithoutBlocking(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < 150; i++ {
		b.Publish(&Event{Type: EventLinkStateChanged})
	}

	// Publisher must not have blocked; give the broadcast loop time to drain
	// into the subscriber's 100-capacity buffer and confirm it didn't grow
	// past capacity or wedge the broker.
	time.Sleep(100 * time.Millisecond)
	b.Publish(&Event{Type: EventLinkStateChanged})
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	require.False(t, ok, "unsubscribed channel should be closed")
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()

	done := make(chan struct{})
	go func() {
		b.Publish(&Event{Type: EventHostStatusChanged})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish after Stop should not block")
	}
}
