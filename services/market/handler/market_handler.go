package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	listing "spirit-market/internal/listingService"
	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"
	"spirit-market/internal/repository"
	"spirit-market/services/market/helpers"
	"spirit-market/utils"

	"github.com/gin-gonic/gin"
)

type ListingServiceInterface interface {
	CreateListing(input listing.CreateListingInput) (model.Listing, error)
	GetListing(listingID string) (model.Listing, error)
	ListListings(q repository.ListingQuery) ([]model.Listing, error)
	UpdateListing(listingID, requesterID string, input listing.UpdateListingInput) (model.Listing, error)
	DeleteListing(listingID, requesterID string) error
	IncrementViews(listingID string) error
	ToggleSave(userID, listingID string) (bool, error)
	GetSavedListings(userID string) ([]model.Listing, error)
}

type AuctionServiceInterface interface {
	PlaceBid(listingID, bidderID string, amount float64) (model.Bid, error)
	GetBidsForListing(listingID string) ([]model.Bid, error)
	GetWinningBid(listingID string) (model.Bid, error)
}

type LifecycleServiceInterface interface {
	CloseListing(listingID, requesterID string) error
	MarkSold(listingID, requesterID, buyerID string) (model.Settlement, error)
}

type MarketHandler struct {
	listings  ListingServiceInterface
	auctions  AuctionServiceInterface
	lifecycle LifecycleServiceInterface
}

func NewMarketHandler(listings ListingServiceInterface, auctions AuctionServiceInterface, lifecycle LifecycleServiceInterface) *MarketHandler {
	return &MarketHandler{listings: listings, auctions: auctions, lifecycle: lifecycle}
}

// CreateListingHandler handles POST /listings
func (h *MarketHandler) CreateListingHandler(c *gin.Context) {
	var req helpers.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	created, err := h.listings.CreateListing(listing.CreateListingInput{
		SellerID:        req.SellerID,
		Kind:            model.ListingKind(req.Kind),
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Condition:       req.Condition,
		ShippingOptions: req.ShippingOptions,
		Price:           req.Price,
		StartingBid:     req.StartingBid,
		ReservePrice:    req.ReservePrice,
		TradeFor:        req.TradeFor,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateListingHandler: failed to create listing", map[string]any{
			"seller_id": req.SellerID,
			"kind":      req.Kind,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, created, "listing created successfully")
	helpers.LogSuccess("CreateListingHandler", "listing created successfully", map[string]any{
		"listing_id": created.ListingID,
		"seller_id":  created.SellerID,
		"kind":       string(created.Kind),
	})
}

// GetListingHandler handles GET /listings/:listing_id
func (h *MarketHandler) GetListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	l, err := h.listings.GetListing(listingID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetListingHandler: failed to get listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, l, "listing retrieved successfully")
}

// ListListingsHandler handles GET /listings
func (h *MarketHandler) ListListingsHandler(c *gin.Context) {
	q := repository.ListingQuery{
		Kind:      model.ListingKind(c.Query("kind")),
		Category:  c.Query("category"),
		Condition: c.Query("condition"),
		SellerID:  c.Query("seller_id"),
		Text:      c.Query("q"),
		Sort:      repository.SortOrder(c.DefaultQuery("sort", string(repository.SortNewest))),
	}
	if v := c.Query("min_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			helpers.HandleBindError(c, "ListListingsHandler", fmt.Errorf("invalid min_price %q", v))
			return
		}
		q.MinPrice = &p
	}
	if v := c.Query("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			helpers.HandleBindError(c, "ListListingsHandler", fmt.Errorf("invalid max_price %q", v))
			return
		}
		q.MaxPrice = &p
	}
	q.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	listings, err := h.listings.ListListings(q)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ListListingsHandler: failed to list listings", map[string]any{"error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, listings, "listings retrieved successfully")
}

// UpdateListingHandler handles PATCH /listings/:listing_id
func (h *MarketHandler) UpdateListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateListingHandler", err)
		return
	}

	updated, err := h.listings.UpdateListing(listingID, req.RequesterID, listing.UpdateListingInput{
		Price:           req.Price,
		Description:     req.Description,
		ShippingOptions: req.ShippingOptions,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("UpdateListingHandler: failed to update listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, updated, "listing updated successfully")
	helpers.LogSuccess("UpdateListingHandler", "listing updated successfully", map[string]any{"listing_id": listingID})
}

// DeleteListingHandler handles DELETE /listings/:listing_id
func (h *MarketHandler) DeleteListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.DeleteListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "DeleteListingHandler", err)
		return
	}

	if err := h.listings.DeleteListing(listingID, req.RequesterID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("DeleteListingHandler: failed to delete listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "listing deleted successfully")
	helpers.LogSuccess("DeleteListingHandler", "listing deleted successfully", map[string]any{"listing_id": listingID})
}

// PlaceBidHandler handles POST /listings/:listing_id/bids
func (h *MarketHandler) PlaceBidHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.auctions.PlaceBid(listingID, req.BidderID, req.Amount)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("PlaceBidHandler: failed to place bid", map[string]any{
			"listing_id": listingID,
			"bidder_id":  req.BidderID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.BidResponse{
		BidID:     bid.BidID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		PlacedAt:  bid.PlacedAt.UTC().Format(time.RFC3339),
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"listing_id": listingID,
		"bidder_id":  req.BidderID,
		"amount":     bid.Amount,
	})
}

// GetBidsHandler handles GET /listings/:listing_id/bids
func (h *MarketHandler) GetBidsHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	bids, err := h.auctions.GetBidsForListing(listingID)
	if err != nil && !errors.Is(err, marketerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsHandler: error retrieving bids", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// GetWinningBidHandler handles GET /listings/:listing_id/bids/winning
func (h *MarketHandler) GetWinningBidHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	bid, err := h.auctions.GetWinningBid(listingID)
	if err != nil {
		if errors.Is(err, marketerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			return
		}
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	resp := helpers.BidResponse{
		BidID:     bid.BidID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		PlacedAt:  bid.PlacedAt.UTC().Format(time.RFC3339),
	}

	utils.JSONResponse(c, http.StatusOK, resp, "winning bid retrieved successfully")
}

// CloseListingHandler handles POST /listings/:listing_id/close
func (h *MarketHandler) CloseListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.CloseListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CloseListingHandler", err)
		return
	}

	if err := h.lifecycle.CloseListing(listingID, req.RequesterID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CloseListingHandler: failed to close listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "listing closed successfully")
	helpers.LogSuccess("CloseListingHandler", "listing closed successfully", map[string]any{"listing_id": listingID})
}

// MarkSoldHandler handles POST /listings/:listing_id/sold
func (h *MarketHandler) MarkSoldHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.MarkSoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "MarkSoldHandler", err)
		return
	}

	settlement, err := h.lifecycle.MarkSold(listingID, req.RequesterID, req.BuyerID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("MarkSoldHandler: failed to mark listing sold", map[string]any{
			"listing_id": listingID,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.SettlementResponse{
		ListingID:    settlement.ListingID,
		FinalPrice:   settlement.FinalPrice.StringFixed(2),
		PlatformFee:  settlement.PlatformFee.StringFixed(2),
		SellerPayout: settlement.SellerPayout.StringFixed(2),
		BuyerID:      settlement.BuyerID,
		SoldAt:       settlement.Timestamp.UTC().Format(time.RFC3339),
	}

	utils.JSONResponse(c, http.StatusOK, resp, "listing sold successfully")
	helpers.LogSuccess("MarkSoldHandler", "listing sold successfully", map[string]any{
		"listing_id":    listingID,
		"buyer_id":      settlement.BuyerID,
		"final_price":   resp.FinalPrice,
		"seller_payout": resp.SellerPayout,
	})
}

// IncrementViewHandler handles POST /listings/:listing_id/views
func (h *MarketHandler) IncrementViewHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	if err := h.listings.IncrementViews(listingID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}
	utils.JSONResponse(c, http.StatusOK, nil, "view recorded")
}

// ToggleSaveHandler handles POST /listings/:listing_id/saves
func (h *MarketHandler) ToggleSaveHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	var req helpers.ToggleSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ToggleSaveHandler", err)
		return
	}

	saved, err := h.listings.ToggleSave(req.UserID, listingID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToggleSaveResponse{ListingID: listingID, Saved: saved}, "save toggled")
}

// GetSavedListingsHandler handles GET /users/:user_id/saves
func (h *MarketHandler) GetSavedListingsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	listings, err := h.listings.GetSavedListings(userID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetSavedListingsHandler: error retrieving saved listings", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	if listings == nil {
		listings = []model.Listing{}
	}

	utils.JSONResponse(c, http.StatusOK, listings, "saved listings retrieved successfully")
}
