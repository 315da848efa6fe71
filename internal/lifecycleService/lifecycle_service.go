package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"
	"spirit-market/internal/notifier"
	"spirit-market/internal/repository"
	"spirit-market/utils"

	"github.com/shopspring/decimal"
)

// PlatformFeeRate is the fixed cut retained on every completed sale
var PlatformFeeRate = decimal.RequireFromString("0.05")

// TradeCounter records completed trades per seller. Incrementing is
// best-effort: a failure here must never roll back a sale.
type TradeCounter interface {
	IncrementTradeCount(sellerID string) error
}

// MemoryTradeCounter is a concurrency-safe in-memory TradeCounter
type MemoryTradeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryTradeCounter creates a new in-memory trade counter
func NewMemoryTradeCounter() *MemoryTradeCounter {
	return &MemoryTradeCounter{counts: make(map[string]int)}
}

// IncrementTradeCount bumps a seller's completed-trade count
func (c *MemoryTradeCounter) IncrementTradeCount(sellerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[sellerID]++
	return nil
}

// TradeCount returns a seller's completed-trade count
func (c *MemoryTradeCounter) TradeCount(sellerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[sellerID]
}

// LifecycleService owns the listing state machine. Active listings may move
// to Closed or Sold; both are terminal. The Sold transition computes the
// settlement split and writes it with the status change as one conditional
// write, so a concurrent close or second sale loses the version race
// instead of clobbering the result.
type LifecycleService struct {
	repo       repository.ListingStore
	notifier   notifier.Notifier
	trades     TradeCounter
	retryLimit int
}

// NewLifecycleService creates a new LifecycleService instance
func NewLifecycleService(repo repository.ListingStore, n notifier.Notifier, trades TradeCounter, retryLimit int) *LifecycleService {
	if retryLimit < 1 {
		retryLimit = 3
	}
	return &LifecycleService{
		repo:       repo,
		notifier:   n,
		trades:     trades,
		retryLimit: retryLimit,
	}
}

// CloseListing transitions an active listing to Closed. Only the seller may
// close; closing a listing that is not active is rejected.
func (s *LifecycleService) CloseListing(listingID, requesterID string) error {
	if listingID == "" || requesterID == "" {
		return fmt.Errorf("service: %w - missing listing or requester ID", marketerrors.ErrValidation)
	}

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		l, err := s.repo.GetListing(listingID)
		if err != nil {
			return fmt.Errorf("service: failed to close listing %s: %w", listingID, err)
		}
		if l.SellerID != requesterID {
			return fmt.Errorf("service: %w - listing %s belongs to another seller", marketerrors.ErrAuthorization, listingID)
		}
		if l.Status != model.StatusActive {
			return fmt.Errorf("service: %w - listing %s has status %s", marketerrors.ErrInvalidState, listingID, l.Status)
		}

		l.Status = model.StatusClosed
		err = s.repo.UpdateListing(l, l.Version)
		if errors.Is(err, marketerrors.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("service: failed to close listing %s: %w", listingID, err)
		}
		return nil
	}
	return fmt.Errorf("service: close of listing %s kept conflicting, try again: %w", listingID, marketerrors.ErrConflict)
}

// MarkSold transitions an active listing to Sold and computes the
// settlement. The buyer defaults to the current high bidder when no
// explicit buyer is given.
func (s *LifecycleService) MarkSold(listingID, requesterID, buyerID string) (model.Settlement, error) {
	if listingID == "" || requesterID == "" {
		return model.Settlement{}, fmt.Errorf("service: %w - missing listing or requester ID", marketerrors.ErrValidation)
	}

	for attempt := 0; attempt < s.retryLimit; attempt++ {
		l, err := s.repo.GetListing(listingID)
		if err != nil {
			return model.Settlement{}, fmt.Errorf("service: failed to mark listing %s sold: %w", listingID, err)
		}
		if l.SellerID != requesterID {
			return model.Settlement{}, fmt.Errorf("service: %w - listing %s belongs to another seller", marketerrors.ErrAuthorization, listingID)
		}
		if l.Status != model.StatusActive {
			return model.Settlement{}, fmt.Errorf("service: %w - listing %s has status %s", marketerrors.ErrInvalidState, listingID, l.Status)
		}

		var price float64
		if l.Kind == model.KindSale {
			price = l.Price
		} else {
			if l.CurrentBid == nil {
				return model.Settlement{}, fmt.Errorf("service: %w - listing %s has no bids to settle", marketerrors.ErrInvalidState, listingID)
			}
			price = *l.CurrentBid
		}

		buyer := buyerID
		if buyer == "" {
			buyer = l.HighestBidderID
		}
		if buyer == "" {
			return model.Settlement{}, fmt.Errorf("service: %w - no buyer for listing %s", marketerrors.ErrValidation, listingID)
		}

		settlement := Settle(listingID, buyer, price)

		l.Status = model.StatusSold
		l.FinalPrice = &settlement.FinalPrice
		l.PlatformFee = &settlement.PlatformFee
		l.SellerPayout = &settlement.SellerPayout
		l.BuyerID = buyer
		soldAt := settlement.Timestamp
		l.SoldAt = &soldAt

		err = s.repo.UpdateListing(l, l.Version)
		if errors.Is(err, marketerrors.ErrConflict) {
			continue
		}
		if err != nil {
			return model.Settlement{}, fmt.Errorf("service: failed to mark listing %s sold: %w", listingID, err)
		}

		if err := s.trades.IncrementTradeCount(l.SellerID); err != nil {
			// best-effort: the sale already happened
			utils.Warn("failed to record seller trade count", map[string]any{
				"seller_id":  l.SellerID,
				"listing_id": listingID,
				"error":      err.Error(),
			})
		}

		s.notifier.NotifySold(model.SoldEvent{
			SellerID:   l.SellerID,
			BuyerID:    buyer,
			ListingID:  listingID,
			FinalPrice: settlement.FinalPrice,
		})
		return settlement, nil
	}
	return model.Settlement{}, fmt.Errorf("service: sale of listing %s kept conflicting, try again: %w", listingID, marketerrors.ErrConflict)
}

// Settle computes the fee/payout split for a final price. The fee is
// rounded half-up to 2 decimal places and the payout is the remainder, so
// fee + payout always reconstructs the final price exactly.
func Settle(listingID, buyerID string, price float64) model.Settlement {
	finalPrice := decimal.NewFromFloat(price).Round(2)
	fee := finalPrice.Mul(PlatformFeeRate).Round(2)
	payout := finalPrice.Sub(fee)

	return model.Settlement{
		ListingID:    listingID,
		FinalPrice:   finalPrice,
		FeeRate:      PlatformFeeRate,
		PlatformFee:  fee,
		SellerPayout: payout,
		BuyerID:      buyerID,
		Timestamp:    time.Now().UTC(),
	}
}
