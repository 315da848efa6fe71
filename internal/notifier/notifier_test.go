package notifier

import (
	"testing"

	model "spirit-market/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Enqueued events come back out in order with their payloads intact
func TestQueue_DeliversEvents(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)

	q.NotifyOutbid(model.OutbidEvent{UserID: "userA", ListingID: "listing1", Message: "outbid"})
	q.NotifySold(model.SoldEvent{SellerID: "seller1", BuyerID: "buyerB", ListingID: "listing1", FinalPrice: decimal.RequireFromString("42.50")})
	q.Close()

	var events []Event
	for ev := range q.Events() {
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	require.Equal(t, EventOutbid, events[0].Kind)
	require.Equal(t, "userA", events[0].Outbid.UserID)
	require.Equal(t, EventSold, events[1].Kind)
	require.Equal(t, "buyerB", events[1].Sold.BuyerID)
	require.True(t, events[1].Sold.FinalPrice.Equal(decimal.RequireFromString("42.50")))
}

// A full queue drops events instead of blocking the caller
func TestQueue_FullQueueNeverBlocks(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)

	q.NotifyOutbid(model.OutbidEvent{UserID: "userA", ListingID: "listing1"})
	// buffer is full now; these must return immediately
	q.NotifyOutbid(model.OutbidEvent{UserID: "userB", ListingID: "listing1"})
	q.NotifySold(model.SoldEvent{SellerID: "seller1", ListingID: "listing1"})
	q.Close()

	var events []Event
	for ev := range q.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	require.Equal(t, "userA", events[0].Outbid.UserID)
}
