package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"spirit-market/internal/marketerrors"
	model "spirit-market/internal/models"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresRepo implements MarketDB on top of Postgres. Optimistic writes use
// a conditional UPDATE on the version column; a zero-row result means the
// caller lost the race.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo wraps an open database handle
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ConnectDB opens and verifies a Postgres connection with pool limits
func ConnectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// RunMigrations applies every .sql file in the migrations directory in
// lexical order.
func RunMigrations(db *sql.DB, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool
func (r *PostgresRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const listingColumns = `listing_id, seller_id, kind, title, description, category, condition,
	shipping_options, price, starting_bid, reserve_price, trade_for, current_bid,
	highest_bidder_id, bid_count, auction_end, status, final_price, platform_fee,
	seller_payout, buyer_id, sold_at, views, saves, version, created_at`

// CreateListing inserts a new listing row
func (r *PostgresRepo) CreateListing(listing model.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`

	_, err := r.db.Exec(query,
		listing.ListingID, listing.SellerID, string(listing.Kind), listing.Title,
		listing.Description, listing.Category, listing.Condition, listing.ShippingOptions,
		listing.Price, listing.StartingBid, listing.ReservePrice, listing.TradeFor,
		listing.CurrentBid, listing.HighestBidderID, listing.BidCount, listing.AuctionEnd,
		string(listing.Status), decimalOrNull(listing.FinalPrice), decimalOrNull(listing.PlatformFee),
		decimalOrNull(listing.SellerPayout), listing.BuyerID, listing.SoldAt,
		listing.Views, listing.Saves, listing.Version, listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, err)
	}
	return nil
}

// GetListing reads one listing row
func (r *PostgresRepo) GetListing(listingID string) (model.Listing, error) {
	row := r.db.QueryRow(`SELECT `+listingColumns+` FROM listings WHERE listing_id = $1`, listingID)
	listing, err := scanListing(row)
	if err == sql.ErrNoRows {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return listing, nil
}

// ListListings builds and runs a filtered, sorted, paginated query
func (r *PostgresRepo) ListListings(q ListingQuery) ([]model.Listing, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// A buyer pays the asking price on a sale and the leading (or starting)
	// bid on an auction.
	const priceExpr = `CASE WHEN kind = 'sale' THEN price ELSE COALESCE(current_bid, starting_bid) END`

	if q.Kind != "" {
		conds = append(conds, "kind = "+arg(string(q.Kind)))
	}
	if q.Category != "" {
		conds = append(conds, "LOWER(category) = LOWER("+arg(q.Category)+")")
	}
	if q.Condition != "" {
		conds = append(conds, "LOWER(condition) = LOWER("+arg(q.Condition)+")")
	}
	if q.SellerID != "" {
		conds = append(conds, "seller_id = "+arg(q.SellerID))
	}
	if q.MinPrice != nil {
		conds = append(conds, priceExpr+" >= "+arg(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		conds = append(conds, priceExpr+" <= "+arg(*q.MaxPrice))
	}
	if q.Text != "" {
		p := arg("%" + strings.ToLower(q.Text) + "%")
		conds = append(conds, "(LOWER(title) LIKE "+p+" OR LOWER(description) LIKE "+p+")")
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch q.Sort {
	case SortPriceAsc:
		query += " ORDER BY " + priceExpr + " ASC"
	case SortPriceDesc:
		query += " ORDER BY " + priceExpr + " DESC"
	case SortEndingSoon:
		query += " ORDER BY auction_end ASC NULLS LAST"
	case SortMostViewed:
		query += " ORDER BY views DESC"
	default:
		query += " ORDER BY created_at DESC"
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("list listings: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

// UpdateListing overwrites a listing row conditioned on its version
func (r *PostgresRepo) UpdateListing(listing model.Listing, expectedVersion uint64) error {
	query := `
		UPDATE listings SET
			title = $1, description = $2, category = $3, condition = $4,
			shipping_options = $5, price = $6, current_bid = $7,
			highest_bidder_id = $8, bid_count = $9, status = $10,
			final_price = $11, platform_fee = $12, seller_payout = $13,
			buyer_id = $14, sold_at = $15, version = version + 1
		WHERE listing_id = $16 AND version = $17`

	res, err := r.db.Exec(query,
		listing.Title, listing.Description, listing.Category, listing.Condition,
		listing.ShippingOptions, listing.Price, listing.CurrentBid,
		listing.HighestBidderID, listing.BidCount, string(listing.Status),
		decimalOrNull(listing.FinalPrice), decimalOrNull(listing.PlatformFee),
		decimalOrNull(listing.SellerPayout), listing.BuyerID, listing.SoldAt,
		listing.ListingID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update listing %s: %w", listing.ListingID, err)
	}
	return checkVersionedWrite(res, listing.ListingID, r, "update listing")
}

// DeleteListing removes the listing row. Bid rows are retained as audit.
func (r *PostgresRepo) DeleteListing(listingID string) error {
	res, err := r.db.Exec(`DELETE FROM listings WHERE listing_id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", listingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", listingID, err)
	}
	if n == 0 {
		return fmt.Errorf("delete listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	return nil
}

// IncrementViews bumps the view counter without touching the row version
func (r *PostgresRepo) IncrementViews(listingID string) error {
	res, err := r.db.Exec(`UPDATE listings SET views = views + 1 WHERE listing_id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("increment views for listing %s: %w", listingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment views for listing %s: %w", listingID, err)
	}
	if n == 0 {
		return fmt.Errorf("increment views for listing %s: %w", listingID, marketerrors.ErrNotFound)
	}
	return nil
}

// ToggleSave flips a user's saved state and adjusts the save counter,
// saturating at zero.
func (r *PostgresRepo) ToggleSave(userID, listingID string) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM listings WHERE listing_id = $1)`, listingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}
	if !exists {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, marketerrors.ErrNotFound)
	}

	res, err := tx.Exec(`DELETE FROM listing_saves WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}

	saved := removed == 0
	if saved {
		_, err = tx.Exec(`INSERT INTO listing_saves (user_id, listing_id) VALUES ($1, $2)`, userID, listingID)
		if err == nil {
			_, err = tx.Exec(`UPDATE listings SET saves = saves + 1 WHERE listing_id = $1`, listingID)
		}
	} else {
		_, err = tx.Exec(`UPDATE listings SET saves = GREATEST(saves - 1, 0) WHERE listing_id = $1`, listingID)
	}
	if err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("toggle save for listing %s: %w", listingID, err)
	}
	return saved, nil
}

// GetSavedListings returns the listings a user has saved
func (r *PostgresRepo) GetSavedListings(userID string) ([]model.Listing, error) {
	query := `
		SELECT ` + listingColumns + ` FROM listings
		WHERE listing_id IN (SELECT listing_id FROM listing_saves WHERE user_id = $1)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("get saved listings for user %s: %w", userID, err)
	}
	defer rows.Close()

	listings := make([]model.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("get saved listings for user %s: %w", userID, err)
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// ApplyBid writes the listing's cached winner fields and appends the bid
// row inside one transaction, conditioned on the listing version.
func (r *PostgresRepo) ApplyBid(updated model.Listing, bid model.Bid, expectedVersion uint64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE listings SET current_bid = $1, highest_bidder_id = $2, bid_count = $3, version = version + 1
		WHERE listing_id = $4 AND version = $5`,
		updated.CurrentBid, updated.HighestBidderID, updated.BidCount,
		updated.ListingID, expectedVersion)
	if err != nil {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM listings WHERE listing_id = $1)`, updated.ListingID).Scan(&exists); err == nil && !exists {
			return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, marketerrors.ErrNotFound)
		}
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, marketerrors.ErrConflict)
	}

	_, err = tx.Exec(`
		INSERT INTO bids (bid_id, listing_id, bidder_id, amount, placed_at, accepted)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		bid.BidID, bid.ListingID, bid.BidderID, bid.Amount, bid.PlacedAt, bid.Accepted)
	if err != nil {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply bid to listing %s: %w", updated.ListingID, err)
	}
	return nil
}

// GetBidsByListing returns all bids for a listing in placement order
func (r *PostgresRepo) GetBidsByListing(listingID string) ([]model.Bid, error) {
	rows, err := r.db.Query(`
		SELECT bid_id, listing_id, bidder_id, amount, placed_at, accepted
		FROM bids WHERE listing_id = $1 ORDER BY placed_at ASC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.ListingID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.Accepted); err != nil {
			return nil, fmt.Errorf("get bids for listing %s: %w", listingID, err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for listing %s: %w", listingID, marketerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for a listing
func (r *PostgresRepo) GetWinningBid(listingID string) (model.Bid, error) {
	row := r.db.QueryRow(`
		SELECT bid_id, listing_id, bidder_id, amount, placed_at, accepted
		FROM bids WHERE listing_id = $1 ORDER BY amount DESC, placed_at ASC LIMIT 1`, listingID)

	var b model.Bid
	err := row.Scan(&b.BidID, &b.ListingID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.Accepted)
	if err == sql.ErrNoRows {
		return model.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, marketerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for listing %s: %w", listingID, err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (model.Listing, error) {
	var (
		l            model.Listing
		kind, status string
		reserve      sql.NullFloat64
		currentBid   sql.NullFloat64
		auctionEnd   sql.NullTime
		soldAt       sql.NullTime
		finalPrice   decimal.NullDecimal
		platformFee  decimal.NullDecimal
		sellerPayout decimal.NullDecimal
	)

	err := row.Scan(&l.ListingID, &l.SellerID, &kind, &l.Title, &l.Description,
		&l.Category, &l.Condition, &l.ShippingOptions, &l.Price, &l.StartingBid,
		&reserve, &l.TradeFor, &currentBid, &l.HighestBidderID, &l.BidCount,
		&auctionEnd, &status, &finalPrice, &platformFee, &sellerPayout,
		&l.BuyerID, &soldAt, &l.Views, &l.Saves, &l.Version, &l.CreatedAt)
	if err != nil {
		return model.Listing{}, err
	}

	l.Kind = model.ListingKind(kind)
	l.Status = model.ListingStatus(status)
	if reserve.Valid {
		l.ReservePrice = &reserve.Float64
	}
	if currentBid.Valid {
		l.CurrentBid = &currentBid.Float64
	}
	if auctionEnd.Valid {
		l.AuctionEnd = &auctionEnd.Time
	}
	if soldAt.Valid {
		l.SoldAt = &soldAt.Time
	}
	if finalPrice.Valid {
		l.FinalPrice = &finalPrice.Decimal
	}
	if platformFee.Valid {
		l.PlatformFee = &platformFee.Decimal
	}
	if sellerPayout.Valid {
		l.SellerPayout = &sellerPayout.Decimal
	}
	return l, nil
}

func decimalOrNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func checkVersionedWrite(res sql.Result, listingID string, r *PostgresRepo, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, listingID, err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM listings WHERE listing_id = $1)`, listingID).Scan(&exists); err == nil && !exists {
			return fmt.Errorf("%s %s: %w", op, listingID, marketerrors.ErrNotFound)
		}
		return fmt.Errorf("%s %s: %w", op, listingID, marketerrors.ErrConflict)
	}
	return nil
}
