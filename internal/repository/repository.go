package repository

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"
)

// SortOrder selects the ordering of list results
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortPriceAsc   SortOrder = "price_asc"
	SortPriceDesc  SortOrder = "price_desc"
	SortEndingSoon SortOrder = "ending_soon"
	SortMostViewed SortOrder = "most_viewed"
)

// MaxPageSize caps the number of listings returned per page
const MaxPageSize = 100

// ListingQuery describes a filtered, sorted, paginated listing read
type ListingQuery struct {
	Kind      model.ListingKind
	Category  string
	Condition string
	SellerID  string
	MinPrice  *float64
	MaxPrice  *float64
	Text      string // matched against title and description
	Sort      SortOrder
	Offset    int
	Limit     int
}

// ListingStore defines durable storage for listing records. All mutating
// writes except the best-effort counters present the row version they read
// and fail with ErrConflict when it has moved.
type ListingStore interface {
	CreateListing(listing model.Listing) error
	GetListing(listingID string) (model.Listing, error)
	ListListings(q ListingQuery) ([]model.Listing, error)
	UpdateListing(listing model.Listing, expectedVersion uint64) error
	DeleteListing(listingID string) error
	IncrementViews(listingID string) error
	ToggleSave(userID, listingID string) (bool, error)
	GetSavedListings(userID string) ([]model.Listing, error)
}

// BidLedger defines the append-only bid log. ApplyBid appends the bid and
// writes the listing's cached winner fields as one atomic unit so the
// ledger and the cache can never diverge.
type BidLedger interface {
	ApplyBid(updated model.Listing, bid model.Bid, expectedVersion uint64) error
	GetBidsByListing(listingID string) ([]model.Bid, error)
	GetWinningBid(listingID string) (model.Bid, error)
}

// MarketDB combines listing storage and the bid ledger
type MarketDB interface {
	ListingStore
	BidLedger
}

// MemoryRepo is a concurrency-safe in-memory implementation of MarketDB
type MemoryRepo struct {
	mu        sync.RWMutex
	listings  map[string]model.Listing
	bids      map[string][]model.Bid      // key: listingID -> accepted bids in placement order
	userSaves map[string]map[string]bool  // key: userID -> set of saved listingIDs
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		listings:  make(map[string]model.Listing),
		bids:      make(map[string][]model.Bid),
		userSaves: make(map[string]map[string]bool),
	}
}

// CreateListing stores a new listing row
func (r *MemoryRepo) CreateListing(listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listing.ListingID]; ok {
		return fmt.Errorf("create listing %s: %w - id already exists", listing.ListingID, marketerrors.ErrValidation)
	}
	r.listings[listing.ListingID] = listing
	return nil
}

// GetListing returns a snapshot of one listing row
func (r *MemoryRepo) GetListing(listingID string) (model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	return listing, nil
}

// ListListings returns listings matching the query, sorted and paginated
func (r *MemoryRepo) ListListings(q ListingQuery) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]model.Listing, 0)
	for _, l := range r.listings {
		if matchesQuery(l, q) {
			matched = append(matched, l)
		}
	}

	sortListings(matched, q.Sort)

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []model.Listing{}, nil
	}
	limit := q.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// UpdateListing overwrites a listing row if its version has not moved since
// the caller read it. The stored version is advanced by one.
func (r *MemoryRepo) UpdateListing(listing model.Listing, expectedVersion uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.listings[listing.ListingID]
	if !ok {
		return fmt.Errorf("update listing %s: %w", listing.ListingID, marketerrors.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("update listing %s: %w", listing.ListingID, marketerrors.ErrConflict)
	}

	listing.Version = expectedVersion + 1
	r.listings[listing.ListingID] = listing
	return nil
}

// DeleteListing removes the listing row and its counters. Bid records are
// left intact as an audit trail.
func (r *MemoryRepo) DeleteListing(listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listingID]; !ok {
		return fmt.Errorf("delete listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	delete(r.listings, listingID)
	return nil
}

// IncrementViews bumps the view counter. Counter writes are best-effort and
// do not advance the row version, so they never fail a concurrent bid.
func (r *MemoryRepo) IncrementViews(listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return fmt.Errorf("increment views for listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	listing.Views++
	r.listings[listingID] = listing
	return nil
}

// ToggleSave flips a user's saved state for a listing and returns the new
// state. The save counter saturates at zero.
func (r *MemoryRepo) ToggleSave(userID, listingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, marketerrors.ErrNotFound)
	}

	saves := r.userSaves[userID]
	if saves == nil {
		saves = make(map[string]bool)
		r.userSaves[userID] = saves
	}

	if saves[listingID] {
		delete(saves, listingID)
		if listing.Saves > 0 {
			listing.Saves--
		}
		r.listings[listingID] = listing
		return false, nil
	}

	saves[listingID] = true
	listing.Saves++
	r.listings[listingID] = listing
	return true, nil
}

// GetSavedListings returns the listings a user has saved, skipping any that
// have since been deleted.
func (r *MemoryRepo) GetSavedListings(userID string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	saved := make([]model.Listing, 0, len(r.userSaves[userID]))
	for listingID := range r.userSaves[userID] {
		if listing, ok := r.listings[listingID]; ok {
			saved = append(saved, listing)
		}
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].CreatedAt.After(saved[j].CreatedAt) })
	return saved, nil
}

// ApplyBid appends an accepted bid and writes the listing's cached winner
// fields in one step, conditioned on the listing version.
func (r *MemoryRepo) ApplyBid(updated model.Listing, bid model.Bid, expectedVersion uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.listings[updated.ListingID]
	if !ok {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, marketerrors.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, marketerrors.ErrConflict)
	}

	updated.Version = expectedVersion + 1
	r.listings[updated.ListingID] = updated
	r.bids[bid.ListingID] = append(r.bids[bid.ListingID], bid)
	return nil
}

// GetBidsByListing returns all bids for a listing in placement order
func (r *MemoryRepo) GetBidsByListing(listingID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[listingID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, marketerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetWinningBid returns the highest bid for a listing, preferring the
// earliest on equal amounts.
func (r *MemoryRepo) GetWinningBid(listingID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[listingID]
	if !ok || len(bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, marketerrors.ErrNoBids)
	}

	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Amount > winning.Amount || (b.Amount == winning.Amount && b.PlacedAt.Before(winning.PlacedAt)) {
			winning = b
		}
	}
	return winning, nil
}

// matchesQuery reports whether a listing satisfies every set filter
func matchesQuery(l model.Listing, q ListingQuery) bool {
	if q.Kind != "" && l.Kind != q.Kind {
		return false
	}
	if q.Category != "" && !strings.EqualFold(l.Category, q.Category) {
		return false
	}
	if q.Condition != "" && !strings.EqualFold(l.Condition, q.Condition) {
		return false
	}
	if q.SellerID != "" && l.SellerID != q.SellerID {
		return false
	}
	if q.MinPrice != nil && effectivePrice(l) < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && effectivePrice(l) > *q.MaxPrice {
		return false
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(l.Title), needle) &&
			!strings.Contains(strings.ToLower(l.Description), needle) {
			return false
		}
	}
	return true
}

// effectivePrice is the amount a buyer would currently pay: the asking
// price for sales, the leading (or starting) bid for auctions.
func effectivePrice(l model.Listing) float64 {
	switch l.Kind {
	case model.KindSale:
		return l.Price
	case model.KindAuction:
		if l.CurrentBid != nil {
			return *l.CurrentBid
		}
		return l.StartingBid
	default:
		return 0
	}
}

func sortListings(listings []model.Listing, order SortOrder) {
	switch order {
	case SortPriceAsc:
		sort.Slice(listings, func(i, j int) bool { return effectivePrice(listings[i]) < effectivePrice(listings[j]) })
	case SortPriceDesc:
		sort.Slice(listings, func(i, j int) bool { return effectivePrice(listings[i]) > effectivePrice(listings[j]) })
	case SortEndingSoon:
		sort.Slice(listings, func(i, j int) bool {
			// listings without an end time sort last
			a, b := listings[i].AuctionEnd, listings[j].AuctionEnd
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.Before(*b)
			}
		})
	case SortMostViewed:
		sort.Slice(listings, func(i, j int) bool { return listings[i].Views > listings[j].Views })
	default: // SortNewest
		sort.Slice(listings, func(i, j int) bool { return listings[i].CreatedAt.After(listings[j].CreatedAt) })
	}
}

// PutListing replaces a stored listing without a version check. This method
// is intended for tests only, e.g. to craft an already-expired auction.
func (r *MemoryRepo) PutListing(listing model.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ListingID] = listing
}
