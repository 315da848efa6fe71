package auction

import (
	"errors"
	"fmt"
	"time"

	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"
	"spirit-market/internal/notifier"
	"spirit-market/internal/repository"
	"spirit-market/utils"
)

// AuctionService validates and serializes bid placement against auction
// listings. The read-validate-write sequence for one listing is serialized
// through the store's version check: a bid that validated against a stale
// snapshot fails the conditional write and is re-validated against fresh
// state, up to the retry limit.
type AuctionService struct {
	repo       repository.MarketDB
	notifier   notifier.Notifier
	retryLimit int
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.MarketDB, n notifier.Notifier, retryLimit int) *AuctionService {
	if retryLimit < 1 {
		retryLimit = 3
	}
	return &AuctionService{
		repo:       repo,
		notifier:   n,
		retryLimit: retryLimit,
	}
}

// PlaceBid validates and records a user's bid on an auction listing. On
// acceptance the bid is appended to the ledger and the listing's cached
// winner fields advance in the same write; the displaced leader, if any,
// receives an outbid event.
func (s *AuctionService) PlaceBid(listingID, bidderID string, amount float64) (model.Bid, error) {
	if listingID == "" || bidderID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing listingID or bidderID", marketerrors.ErrValidation)
	}
	if amount <= 0 {
		return model.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", marketerrors.ErrValidation)
	}

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		l, err := s.repo.GetListing(listingID)
		if err != nil {
			return model.Bid{}, fmt.Errorf("service: failed to place bid on listing %s: %w", listingID, err)
		}

		if err := validateBidAgainst(l, bidderID, amount); err != nil {
			return model.Bid{}, err
		}

		bid := model.Bid{
			BidID:     utils.GenerateID(),
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  time.Now().UTC(),
			Accepted:  true,
		}

		previousLeader := l.HighestBidderID
		l.CurrentBid = &bid.Amount
		l.HighestBidderID = bidderID
		l.BidCount++

		err = s.repo.ApplyBid(l, bid, l.Version)
		if errors.Is(err, marketerrors.ErrConflict) {
			utils.Info("bid lost the write race, retrying with fresh state", map[string]any{
				"listing_id": listingID,
				"bidder_id":  bidderID,
				"attempt":    attempt + 1,
			})
			continue
		}
		if err != nil {
			return model.Bid{}, fmt.Errorf("service: failed to record bid on listing %s by user %s: %w", listingID, bidderID, err)
		}

		if previousLeader != "" && previousLeader != bidderID {
			s.notifier.NotifyOutbid(model.OutbidEvent{
				UserID:    previousLeader,
				ListingID: listingID,
				Message:   fmt.Sprintf("You have been outbid on listing %s", listingID),
			})
		}
		return bid, nil
	}

	return model.Bid{}, fmt.Errorf("service: bid on listing %s kept conflicting, try again: %w", listingID, marketerrors.ErrConflict)
}

// validateBidAgainst applies the bid acceptance rules in order, each with a
// distinct rejection reason.
func validateBidAgainst(l model.Listing, bidderID string, amount float64) error {
	if l.Kind != model.KindAuction {
		return fmt.Errorf("service: %w - listing %s is not an auction", marketerrors.ErrInvalidKind, l.ListingID)
	}
	if l.Status != model.StatusActive {
		return fmt.Errorf("service: %w - listing %s has status %s", marketerrors.ErrListingClosed, l.ListingID, l.Status)
	}
	if l.AuctionEnd != nil && !time.Now().UTC().Before(*l.AuctionEnd) {
		return fmt.Errorf("service: %w - auction for listing %s ended at %s", marketerrors.ErrAuctionEnded, l.ListingID, l.AuctionEnd.Format(time.RFC3339))
	}
	floor := l.StartingBid
	if l.CurrentBid != nil && *l.CurrentBid > floor {
		floor = *l.CurrentBid
	}
	if amount <= floor {
		return fmt.Errorf("service: %w - bid must exceed %.2f", marketerrors.ErrBidTooLow, floor)
	}
	if bidderID == l.SellerID {
		return fmt.Errorf("service: %w - listing %s", marketerrors.ErrSelfBid, l.ListingID)
	}
	return nil
}

// GetBidsForListing returns all bids recorded against a listing
func (s *AuctionService) GetBidsForListing(listingID string) ([]model.Bid, error) {
	if listingID == "" {
		return nil, fmt.Errorf("service: %w - empty listing ID", marketerrors.ErrValidation)
	}
	bids, err := s.repo.GetBidsByListing(listingID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for listing %s: %w", listingID, err)
	}
	return bids, nil
}

// GetWinningBid returns the current leading bid for a listing
func (s *AuctionService) GetWinningBid(listingID string) (model.Bid, error) {
	if listingID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - empty listing ID", marketerrors.ErrValidation)
	}
	bid, err := s.repo.GetWinningBid(listingID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get winning bid for listing %s: %w", listingID, err)
	}
	return bid, nil
}
