package helpers

// Request/Response DTOs
type CreateListingRequest struct {
	SellerID        string   `json:"seller_id" binding:"required"`
	Kind            string   `json:"kind" binding:"required,oneof=sale auction trade"`
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Condition       string   `json:"condition"`
	ShippingOptions string   `json:"shipping_options"`
	Price           float64  `json:"price"`
	StartingBid     float64  `json:"starting_bid"`
	ReservePrice    *float64 `json:"reserve_price"`
	TradeFor        string   `json:"trade_for"`
}

type UpdateListingRequest struct {
	RequesterID     string   `json:"requester_id" binding:"required"`
	Price           *float64 `json:"price"`
	Description     *string  `json:"description"`
	ShippingOptions *string  `json:"shipping_options"`
}

type DeleteListingRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

type PlaceBidRequest struct {
	BidderID string  `json:"bidder_id" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

type CloseListingRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
}

type MarkSoldRequest struct {
	RequesterID string `json:"requester_id" binding:"required"`
	BuyerID     string `json:"buyer_id"`
}

type ToggleSaveRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	ListingID string  `json:"listing_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	PlacedAt  string  `json:"placed_at"`
}

type SettlementResponse struct {
	ListingID    string `json:"listing_id"`
	FinalPrice   string `json:"final_price"`
	PlatformFee  string `json:"platform_fee"`
	SellerPayout string `json:"seller_payout"`
	BuyerID      string `json:"buyer_id"`
	SoldAt       string `json:"sold_at"`
}

type ToggleSaveResponse struct {
	ListingID string `json:"listing_id"`
	Saved     bool   `json:"saved"`
}
