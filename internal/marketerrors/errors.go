package marketerrors

import "errors"

// Repository-level errors
var (
	ErrNotFound = errors.New("listing not found")
	ErrNoBids   = errors.New("no bids found for listing")
	ErrConflict = errors.New("listing was modified concurrently")
)

// Business logic errors
var (
	ErrValidation    = errors.New("invalid input")
	ErrAuthorization = errors.New("requester is not the seller")
	ErrInvalidState  = errors.New("operation not allowed for listing status")
	ErrInvalidKind   = errors.New("operation not applicable to listing kind")
	ErrListingClosed = errors.New("listing is no longer active")
	ErrAuctionEnded  = errors.New("auction has ended")
	ErrBidTooLow     = errors.New("bid amount too low")
	ErrSelfBid       = errors.New("seller cannot bid on own listing")
)
