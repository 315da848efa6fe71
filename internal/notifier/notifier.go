package notifier

import (
	model "spirit-market/internal/models"
	"spirit-market/utils"
)

// Notifier receives marketplace events for delivery to users. The core's
// contract ends at producing the event value; implementations must never
// block the caller on delivery.
type Notifier interface {
	NotifyOutbid(ev model.OutbidEvent)
	NotifySold(ev model.SoldEvent)
}

// EventKind tags queued events
type EventKind string

const (
	EventOutbid EventKind = "outbid"
	EventSold   EventKind = "sold"
)

// Event is the envelope handed to the delivery side of the queue
type Event struct {
	Kind   EventKind
	Outbid *model.OutbidEvent
	Sold   *model.SoldEvent
}

// Queue is a bounded in-process event queue. Enqueueing never blocks: when
// the buffer is full the event is dropped with a warning, since delivery is
// best-effort and must not slow down bids or sales.
type Queue struct {
	events chan Event
}

// NewQueue creates a queue with the given buffer size
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{events: make(chan Event, size)}
}

// NotifyOutbid enqueues an outbid event without blocking
func (q *Queue) NotifyOutbid(ev model.OutbidEvent) {
	select {
	case q.events <- Event{Kind: EventOutbid, Outbid: &ev}:
	default:
		utils.Warn("notification queue full, dropping outbid event", map[string]any{
			"user_id":    ev.UserID,
			"listing_id": ev.ListingID,
		})
	}
}

// NotifySold enqueues a sold event without blocking
func (q *Queue) NotifySold(ev model.SoldEvent) {
	select {
	case q.events <- Event{Kind: EventSold, Sold: &ev}:
	default:
		utils.Warn("notification queue full, dropping sold event", map[string]any{
			"seller_id":  ev.SellerID,
			"listing_id": ev.ListingID,
		})
	}
}

// Events exposes the queue for the delivery consumer
func (q *Queue) Events() <-chan Event {
	return q.events
}

// LogDrain consumes events and writes them to the structured log. It stands
// in for the external notification service and runs until the queue closes.
func LogDrain(q *Queue) {
	for ev := range q.events {
		switch ev.Kind {
		case EventOutbid:
			utils.Info("outbid notification", map[string]any{
				"user_id":    ev.Outbid.UserID,
				"listing_id": ev.Outbid.ListingID,
				"message":    ev.Outbid.Message,
			})
		case EventSold:
			utils.Info("sold notification", map[string]any{
				"seller_id":   ev.Sold.SellerID,
				"buyer_id":    ev.Sold.BuyerID,
				"listing_id":  ev.Sold.ListingID,
				"final_price": ev.Sold.FinalPrice.String(),
			})
		}
	}
}

// Close stops the queue; pending events are still drained by the consumer
func (q *Queue) Close() {
	close(q.events)
}
