package events

import (
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/pkg/models"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil, nil)

	var order []string
	bus.Subscribe(func(e models.PipelineEvent) {
		order = append(order, "first")
	})
	bus.Subscribe(func(e models.PipelineEvent) {
		order = append(order, "second")
	})

	bus.Publish(models.NewStartEvent(3))

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("delivery order = %v, want [first second]", order)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(nil, nil)

	var got int
	unsubscribe := bus.Subscribe(func(e models.PipelineEvent) {
		got++
	})

	bus.Publish(models.NewStartEvent(1))
	unsubscribe()
	bus.Publish(models.NewCompleteEvent(1, 1, 0))

	if got != 1 {
		t.Errorf("events after unsubscribe = %d, want 1", got)
	}

	// Unsubscribing twice must be harmless.
	unsubscribe()
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", bus.SubscriberCount())
	}
}

func TestBusPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(nil, nil)

	var firstGot, thirdGot int
	bus.Subscribe(func(e models.PipelineEvent) {
		firstGot++
	})
	bus.Subscribe(func(e models.PipelineEvent) {
		panic("subscriber bug")
	})
	bus.Subscribe(func(e models.PipelineEvent) {
		thirdGot++
	})

	bus.Publish(models.NewProgressEvent(1, 5, 0, nil))
	bus.Publish(models.NewProgressEvent(2, 5, 0, nil))

	if firstGot != 2 {
		t.Errorf("subscriber before the panicking one got %d events, want 2", firstGot)
	}
	if thirdGot != 2 {
		t.Errorf("subscriber after the panicking one got %d events, want 2", thirdGot)
	}
}

func TestBusReconnectForMidRunSubscriber(t *testing.T) {
	bus := NewBus(nil, nil)
	bus.SetSnapshotProvider(func() (models.Job, bool) {
		return models.Job{
			Running:   true,
			Mode:      models.JobModeBatch,
			Total:     10,
			Processed: 4,
			Failed:    1,
			StartedAt: time.Now(),
		}, true
	})

	var got *models.PipelineEvent
	bus.Subscribe(func(e models.PipelineEvent) {
		if got == nil {
			got = &e
		}
	})

	if got == nil {
		t.Fatal("expected immediate reconnect event for mid-run subscriber")
	}
	if got.Type != models.EventReconnect {
		t.Fatalf("event type = %q, want %q", got.Type, models.EventReconnect)
	}
	if got.Snapshot == nil || got.Snapshot.Processed != 4 || got.Snapshot.Total != 10 {
		t.Errorf("reconnect snapshot = %+v, want current counters", got.Snapshot)
	}
}

func TestBusNoReconnectWhenIdle(t *testing.T) {
	bus := NewBus(nil, nil)
	bus.SetSnapshotProvider(func() (models.Job, bool) {
		return models.Job{}, false
	})

	var events int
	bus.Subscribe(func(e models.PipelineEvent) {
		events++
	})

	if events != 0 {
		t.Errorf("idle subscribe produced %d events, want 0", events)
	}
}
