package listing

import (
	"errors"
	"fmt"
	"time"

	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"
	"spirit-market/internal/repository"
	"spirit-market/utils"
)

// ListingService owns listing CRUD: creation with kind-specific validation,
// reads, seller-only updates and deletion, and the best-effort counters.
type ListingService struct {
	repo            repository.ListingStore
	auctionDuration time.Duration
	retryLimit      int
}

// NewListingService creates a new ListingService instance. A non-positive
// duration falls back to the default auction window.
func NewListingService(repo repository.ListingStore, auctionDuration time.Duration, retryLimit int) *ListingService {
	if auctionDuration <= 0 {
		auctionDuration = 7 * 24 * time.Hour
	}
	if retryLimit < 1 {
		retryLimit = 3
	}
	return &ListingService{
		repo:            repo,
		auctionDuration: auctionDuration,
		retryLimit:      retryLimit,
	}
}

// CreateListingInput carries the seller-supplied fields for a new listing
type CreateListingInput struct {
	SellerID        string
	Kind            model.ListingKind
	Title           string
	Description     string
	Category        string
	Condition       string
	ShippingOptions string
	Price           float64
	StartingBid     float64
	ReservePrice    *float64
	TradeFor        string
}

// UpdateListingInput carries the mutable display fields. Nil means "leave
// unchanged". Status, bid state and settlement fields are not reachable
// through updates.
type UpdateListingInput struct {
	Price           *float64
	Description     *string
	ShippingOptions *string
}

// CreateListing validates kind-specific required fields and stores a new
// active listing.
func (s *ListingService) CreateListing(input CreateListingInput) (model.Listing, error) {
	if input.SellerID == "" {
		return model.Listing{}, fmt.Errorf("service: %w - missing seller ID", marketerrors.ErrValidation)
	}
	if input.Title == "" {
		return model.Listing{}, fmt.Errorf("service: %w - missing title", marketerrors.ErrValidation)
	}

	now := time.Now().UTC()
	l := model.Listing{
		ListingID:       utils.GenerateID(),
		SellerID:        input.SellerID,
		Kind:            input.Kind,
		Title:           input.Title,
		Description:     input.Description,
		Category:        input.Category,
		Condition:       input.Condition,
		ShippingOptions: input.ShippingOptions,
		Status:          model.StatusActive,
		CreatedAt:       now,
	}

	switch input.Kind {
	case model.KindSale:
		if input.Price <= 0 {
			return model.Listing{}, fmt.Errorf("service: %w - sale listing requires a positive price", marketerrors.ErrValidation)
		}
		l.Price = input.Price
	case model.KindAuction:
		if input.StartingBid <= 0 {
			return model.Listing{}, fmt.Errorf("service: %w - auction listing requires a positive starting bid", marketerrors.ErrValidation)
		}
		if input.ReservePrice != nil && *input.ReservePrice < input.StartingBid {
			return model.Listing{}, fmt.Errorf("service: %w - reserve price below starting bid", marketerrors.ErrValidation)
		}
		l.StartingBid = input.StartingBid
		l.ReservePrice = input.ReservePrice
		end := now.Add(s.auctionDuration)
		l.AuctionEnd = &end
	case model.KindTrade:
		if input.TradeFor == "" {
			return model.Listing{}, fmt.Errorf("service: %w - trade listing requires trade_for", marketerrors.ErrValidation)
		}
		l.TradeFor = input.TradeFor
	default:
		return model.Listing{}, fmt.Errorf("service: %w - unknown listing kind %q", marketerrors.ErrValidation, input.Kind)
	}

	if err := s.repo.CreateListing(l); err != nil {
		return model.Listing{}, fmt.Errorf("service: failed to create listing for seller %s: %w", input.SellerID, err)
	}
	return l, nil
}

// GetListing returns one listing by id
func (s *ListingService) GetListing(listingID string) (model.Listing, error) {
	if listingID == "" {
		return model.Listing{}, fmt.Errorf("service: %w - empty listing ID", marketerrors.ErrValidation)
	}
	l, err := s.repo.GetListing(listingID)
	if err != nil {
		return model.Listing{}, fmt.Errorf("service: failed to get listing %s: %w", listingID, err)
	}
	return l, nil
}

// ListListings returns listings matching the query. The page size is capped
// by the repository.
func (s *ListingService) ListListings(q repository.ListingQuery) ([]model.Listing, error) {
	listings, err := s.repo.ListListings(q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list listings: %w", err)
	}
	return listings, nil
}

// UpdateListing applies seller-edited display fields, retrying on write
// conflicts with fresh state.
func (s *ListingService) UpdateListing(listingID, requesterID string, input UpdateListingInput) (model.Listing, error) {
	if listingID == "" || requesterID == "" {
		return model.Listing{}, fmt.Errorf("service: %w - missing listing or requester ID", marketerrors.ErrValidation)
	}

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		l, err := s.repo.GetListing(listingID)
		if err != nil {
			return model.Listing{}, fmt.Errorf("service: failed to update listing %s: %w", listingID, err)
		}
		if l.SellerID != requesterID {
			return model.Listing{}, fmt.Errorf("service: %w - listing %s belongs to another seller", marketerrors.ErrAuthorization, listingID)
		}

		if input.Price != nil {
			if l.Kind != model.KindSale {
				return model.Listing{}, fmt.Errorf("service: %w - price is editable on sale listings only", marketerrors.ErrInvalidKind)
			}
			if *input.Price <= 0 {
				return model.Listing{}, fmt.Errorf("service: %w - price must be positive", marketerrors.ErrValidation)
			}
			l.Price = *input.Price
		}
		if input.Description != nil {
			l.Description = *input.Description
		}
		if input.ShippingOptions != nil {
			l.ShippingOptions = *input.ShippingOptions
		}

		err = s.repo.UpdateListing(l, l.Version)
		if errors.Is(err, marketerrors.ErrConflict) {
			continue
		}
		if err != nil {
			return model.Listing{}, fmt.Errorf("service: failed to update listing %s: %w", listingID, err)
		}
		l.Version++
		return l, nil
	}
	return model.Listing{}, fmt.Errorf("service: update of listing %s kept conflicting, try again: %w", listingID, marketerrors.ErrConflict)
}

// DeleteListing removes a listing. Only the seller may delete; accumulated
// bid records survive as audit.
func (s *ListingService) DeleteListing(listingID, requesterID string) error {
	if listingID == "" || requesterID == "" {
		return fmt.Errorf("service: %w - missing listing or requester ID", marketerrors.ErrValidation)
	}

	l, err := s.repo.GetListing(listingID)
	if err != nil {
		return fmt.Errorf("service: failed to delete listing %s: %w", listingID, err)
	}
	if l.SellerID != requesterID {
		return fmt.Errorf("service: %w - listing %s belongs to another seller", marketerrors.ErrAuthorization, listingID)
	}

	if err := s.repo.DeleteListing(listingID); err != nil {
		return fmt.Errorf("service: failed to delete listing %s: %w", listingID, err)
	}
	return nil
}

// IncrementViews bumps a listing's view counter, best-effort
func (s *ListingService) IncrementViews(listingID string) error {
	if listingID == "" {
		return fmt.Errorf("service: %w - empty listing ID", marketerrors.ErrValidation)
	}
	if err := s.repo.IncrementViews(listingID); err != nil {
		return fmt.Errorf("service: failed to increment views for listing %s: %w", listingID, err)
	}
	return nil
}

// ToggleSave flips a user's saved state for a listing and returns the new
// state.
func (s *ListingService) ToggleSave(userID, listingID string) (bool, error) {
	if userID == "" || listingID == "" {
		return false, fmt.Errorf("service: %w - missing user or listing ID", marketerrors.ErrValidation)
	}
	saved, err := s.repo.ToggleSave(userID, listingID)
	if err != nil {
		return false, fmt.Errorf("service: failed to toggle save for listing %s: %w", listingID, err)
	}
	return saved, nil
}

// GetSavedListings returns the listings a user has saved
func (s *ListingService) GetSavedListings(userID string) ([]model.Listing, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", marketerrors.ErrValidation)
	}
	listings, err := s.repo.GetSavedListings(userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get saved listings for user %s: %w", userID, err)
	}
	return listings, nil
}
