package integrationtests

import (
	"net/http"
	"testing"
	"time"

	model "spirit-market/internal/models"
	"spirit-market/internal/notifier"
	"spirit-market/services/market/helpers"

	"github.com/stretchr/testify/require"
)

// Full auction lifecycle over HTTP: create, compete, settle
func TestAuctionLifecycle(t *testing.T) {
	router, repo, queue := SetupTestRouter()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/listings", helpers.CreateListingRequest{
		SellerID:    "seller1",
		Kind:        "auction",
		Title:       "Weller 12yr",
		Category:    "bourbon",
		StartingBid: 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	listingID := resp["data"].(map[string]any)["listing_id"].(string)

	// first bid leads
	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/bids",
		helpers.PlaceBidRequest{BidderID: "bidderA", Amount: 20})
	require.Equal(t, http.StatusCreated, w.Code)

	// under the current bid: rejected, leader unchanged
	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/bids",
		helpers.PlaceBidRequest{BidderID: "bidderB", Amount: 15})
	require.Equal(t, http.StatusConflict, w.Code)

	// bidderB comes back over the top
	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/bids",
		helpers.PlaceBidRequest{BidderID: "bidderB", Amount: 25})
	require.Equal(t, http.StatusCreated, w.Code)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/listings/"+listingID+"/bids/winning", nil)
	require.Equal(t, http.StatusOK, w.Code)
	winning := resp["data"].(map[string]any)
	require.Equal(t, "bidderB", winning["bidder_id"])
	require.Equal(t, 25.0, winning["amount"])

	// the rejected bid never reaches the ledger
	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/listings/"+listingID+"/bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 2)

	// settle on the high bid
	resp, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/sold",
		helpers.MarkSoldRequest{RequesterID: "seller1"})
	require.Equal(t, http.StatusOK, w.Code)
	settlement := resp["data"].(map[string]any)
	require.Equal(t, "25.00", settlement["final_price"])
	require.Equal(t, "1.25", settlement["platform_fee"])
	require.Equal(t, "23.75", settlement["seller_payout"])
	require.Equal(t, "bidderB", settlement["buyer_id"])

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/listings/"+listingID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, "sold", data["status"])
	require.Equal(t, "bidderB", data["buyer_id"])

	// no further bids on a sold listing
	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/bids",
		helpers.PlaceBidRequest{BidderID: "bidderC", Amount: 30})
	require.Equal(t, http.StatusConflict, w.Code)

	// bidderA was outbid once; the seller got one sale event
	var outbids, solds int
	for _, ev := range DrainEvents(queue) {
		switch ev.Kind {
		case notifier.EventOutbid:
			outbids++
			require.Equal(t, "bidderA", ev.Outbid.UserID)
		case notifier.EventSold:
			solds++
			require.Equal(t, "seller1", ev.Sold.SellerID)
		}
	}
	require.Equal(t, 1, outbids)
	require.Equal(t, 1, solds)

	// bid ledger survives settlement
	bids, err := repo.GetBidsByListing(listingID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
}

// Scenario: simple sale settles with exact fee arithmetic
func TestSimpleSale(t *testing.T) {
	router, _, queue := SetupTestRouter()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/listings", helpers.CreateListingRequest{
		SellerID: "seller1",
		Kind:     "sale",
		Title:    "Eagle Rare 10yr",
		Price:    50,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	listingID := resp["data"].(map[string]any)["listing_id"].(string)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/sold",
		helpers.MarkSoldRequest{RequesterID: "seller1", BuyerID: "buyerB"})
	require.Equal(t, http.StatusOK, w.Code)
	settlement := resp["data"].(map[string]any)
	require.Equal(t, "50.00", settlement["final_price"])
	require.Equal(t, "2.50", settlement["platform_fee"])
	require.Equal(t, "47.50", settlement["seller_payout"])

	events := DrainEvents(queue)
	require.Len(t, events, 1)
	require.Equal(t, notifier.EventSold, events[0].Kind)
	require.Equal(t, "buyerB", events[0].Sold.BuyerID)
}

// An auction past its end time rejects bids even while still marked active
func TestExpiredAuctionRejectsBids(t *testing.T) {
	end := time.Now().UTC().Add(-1 * time.Hour)
	router, _, _ := SetupTestRouterWithListings(model.Listing{
		ListingID:   "expired1",
		SellerID:    "seller1",
		Kind:        model.KindAuction,
		Title:       "stale lot",
		StartingBid: 10,
		Status:      model.StatusActive,
		AuctionEnd:  &end,
		CreatedAt:   time.Now().UTC().Add(-8 * 24 * time.Hour),
	})

	_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/expired1/bids",
		helpers.PlaceBidRequest{BidderID: "bidderA", Amount: 20})
	require.Equal(t, http.StatusConflict, w.Code)
}

// Closing a listing stops bidding but keeps it readable
func TestCloseListing(t *testing.T) {
	router, _, _ := SetupTestRouter()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/listings", helpers.CreateListingRequest{
		SellerID:    "seller1",
		Kind:        "auction",
		Title:       "lot",
		StartingBid: 10,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	listingID := resp["data"].(map[string]any)["listing_id"].(string)

	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/close",
		helpers.CloseListingRequest{RequesterID: "seller1"})
	require.Equal(t, http.StatusOK, w.Code)

	_, w = ExecuteRequestAndParse(t, router, http.MethodPost, "/listings/"+listingID+"/bids",
		helpers.PlaceBidRequest{BidderID: "bidderA", Amount: 20})
	require.Equal(t, http.StatusConflict, w.Code)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodGet, "/listings/"+listingID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "closed", resp["data"].(map[string]any)["status"])
}

// Listing search and detail flow
func TestBrowseListings(t *testing.T) {
	router, _, _ := SetupTestRouter()

	seed := []helpers.CreateListingRequest{
		{SellerID: "sellerA", Kind: "sale", Title: "Buffalo Trace", Category: "bourbon", Price: 35},
		{SellerID: "sellerA", Kind: "sale", Title: "Ardbeg 10", Category: "scotch", Price: 55},
		{SellerID: "sellerB", Kind: "auction", Title: "George T Stagg", Category: "bourbon", StartingBid: 400},
	}
	for _, req := range seed {
		_, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/listings", req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	tests := []struct {
		name      string
		url       string
		wantCount int
	}{
		{name: "all", url: "/listings", wantCount: 3},
		{name: "by_category", url: "/listings?category=bourbon", wantCount: 2},
		{name: "by_kind", url: "/listings?kind=auction", wantCount: 1},
		{name: "by_seller", url: "/listings?seller_id=sellerA", wantCount: 2},
		{name: "price_window", url: "/listings?min_price=30&max_price=60", wantCount: 2},
		{name: "text_search", url: "/listings?q=ardbeg", wantCount: 1},
		{name: "paged", url: "/listings?limit=2", wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, w := ExecuteRequestAndParse(t, router, http.MethodGet, tt.url, nil)
			require.Equal(t, http.StatusOK, w.Code)
			require.Len(t, resp["data"].([]any), tt.wantCount)
		})
	}
}

// Malformed JSON is rejected at the binding layer
func TestInvalidJSON(t *testing.T) {
	router, _, _ := SetupTestRouter()

	w := ExecuteRequest(t, router, http.MethodPost, "/listings", []byte("{seller_id: 'missing quotes'}"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ExecuteRequest(t, router, http.MethodPost, "/listings/whatever/bids", []byte("not json"))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
