package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingKind determines which listing fields are meaningful
type ListingKind string

const (
	KindSale    ListingKind = "sale"
	KindAuction ListingKind = "auction"
	KindTrade   ListingKind = "trade"
)

// ListingStatus tracks a listing through its selling lifecycle
type ListingStatus string

const (
	StatusActive ListingStatus = "active"
	StatusClosed ListingStatus = "closed"
	StatusSold   ListingStatus = "sold"
)

// Listing represents a seller's offer to sell, auction or trade one bottle
type Listing struct {
	ListingID       string      `json:"listing_id"`
	SellerID        string      `json:"seller_id"`
	Kind            ListingKind `json:"kind"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Category        string      `json:"category,omitempty"`
	Condition       string      `json:"condition,omitempty"`
	ShippingOptions string      `json:"shipping_options,omitempty"`

	Price        float64  `json:"price,omitempty"`         // sale listings
	StartingBid  float64  `json:"starting_bid,omitempty"`  // auction listings
	ReservePrice *float64 `json:"reserve_price,omitempty"` // auction listings, optional
	TradeFor     string   `json:"trade_for,omitempty"`     // trade listings

	// Cached winner fields, updated only through the auction engine's
	// accept path in lock-step with the bid ledger.
	CurrentBid      *float64   `json:"current_bid,omitempty"`
	HighestBidderID string     `json:"highest_bidder_id,omitempty"`
	BidCount        int        `json:"bid_count"`
	AuctionEnd      *time.Time `json:"auction_end,omitempty"`

	Status ListingStatus `json:"status"`

	// Settlement fields, written exactly once on the transition into Sold.
	FinalPrice   *decimal.Decimal `json:"final_price,omitempty"`
	PlatformFee  *decimal.Decimal `json:"platform_fee,omitempty"`
	SellerPayout *decimal.Decimal `json:"seller_payout,omitempty"`
	BuyerID      string           `json:"buyer_id,omitempty"`
	SoldAt       *time.Time       `json:"sold_at,omitempty"`

	Views int `json:"views"`
	Saves int `json:"saves"`

	// Version is the optimistic-concurrency counter. Every mutating write
	// must present the version it read; the store rejects stale writes.
	Version uint64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Bid is one accepted offer amount against an auction listing. Bid records
// are append-only: once written they are never mutated or deleted.
type Bid struct {
	BidID     string    `json:"bid_id"`
	ListingID string    `json:"listing_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	Accepted  bool      `json:"accepted"`
}

// Settlement is the fee/payout split computed when a listing sells
type Settlement struct {
	ListingID    string          `json:"listing_id"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	FeeRate      decimal.Decimal `json:"platform_fee_rate"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	SellerPayout decimal.Decimal `json:"seller_payout"`
	BuyerID      string          `json:"buyer_id"`
	Timestamp    time.Time       `json:"timestamp"`
}

// OutbidEvent is produced when a new high bid displaces the previous leader
type OutbidEvent struct {
	UserID    string `json:"user_id"`
	ListingID string `json:"listing_id"`
	Message   string `json:"message"`
}

// SoldEvent is produced when a listing transitions into Sold
type SoldEvent struct {
	SellerID   string          `json:"seller_id"`
	BuyerID    string          `json:"buyer_id"`
	ListingID  string          `json:"listing_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
}
