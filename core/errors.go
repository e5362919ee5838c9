package core

import "errors"

var (
	// ErrInvalidSchedule is returned by Open when the end time is not
	// strictly in the future.
	ErrInvalidSchedule = errors.New("auction end time is not in the future")

	// ErrUnknownAuction is returned when an auction id does not
	// reference an existing registry entry.
	ErrUnknownAuction = errors.New("unknown auction id")

	// ErrAuctionClosed is returned by Bid at or after the end time.
	ErrAuctionClosed = errors.New("auction is closed for bidding")

	// ErrAuctionStillOpen is returned by Settle before the end time.
	ErrAuctionStillOpen = errors.New("auction has not reached its end time")

	// ErrBidTooLow is returned when a bid does not strictly exceed the
	// current best, or a first bid does not meet the minimum.
	ErrBidTooLow = errors.New("bid does not beat the current best")

	// ErrAlreadySettled is returned by Settle on an already settled
	// auction.
	ErrAlreadySettled = errors.New("auction already settled")

	// ErrTransferFailed wraps any failure reported by the Custody
	// collaborator. The operation that observed it committed nothing.
	ErrTransferFailed = errors.New("custody transfer failed")
)
