package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountID identifies an external party (seller or bidder). Account
// representation and identity are owned by the surrounding system; the
// ledger only compares and records these values.
type AccountID string

// AssetID identifies a fungible asset type.
type AssetID string

// AuctionID is the permanent registry index assigned by Open. It is the
// sole handle by which an auction is referenced.
type AuctionID int

// Auction is the immutable record of one item for sale. Once appended
// to the registry its fields never change.
type Auction struct {
	Seller     AccountID
	ItemAsset  AssetID
	ItemAmount decimal.Decimal
	BidAsset   AssetID
	MinBid     decimal.Decimal
	EndTime    time.Time
}

// BidPhase tags the lifecycle state of an auction's bid record.
type BidPhase int

const (
	// PhaseNoBid means no real bid has been placed yet.
	PhaseNoBid BidPhase = iota

	// PhaseBidding means a real bid is held in escrow for Bidder.
	PhaseBidding

	// PhaseSettled is terminal: both escrows have been released.
	// Bidder and Amount remain as the historical winning bid.
	PhaseSettled
)

// BidState is the mutable half of an auction record. Exactly one exists
// per Auction, at the same registry index. Bidder and Amount are only
// meaningful in PhaseBidding and PhaseSettled.
type BidState struct {
	Phase  BidPhase
	Bidder AccountID
	Amount decimal.Decimal
}

// BestBid is the read view of a BidState. An auction with no real bid
// reads as the seller holding a zero bid, so that callers never see an
// empty bidder field on an open auction.
type BestBid struct {
	Bidder  AccountID
	Amount  decimal.Decimal
	Settled bool
}

// Custody is the asset-transfer collaborator. The ledger never moves
// value itself; it instructs Custody to shift quantities between
// external accounts and ledger-held escrow.
type Custody interface {
	// TransferIn moves amount of asset from the external owner into
	// ledger custody.
	TransferIn(asset AssetID, from AccountID, amount decimal.Decimal) error

	// TransferOut moves amount of asset out of ledger custody to the
	// external owner.
	TransferOut(asset AssetID, to AccountID, amount decimal.Decimal) error

	// Balance reports the quantity of asset currently in ledger
	// custody. Used for solvency verification, not by the operations
	// themselves.
	Balance(asset AssetID) decimal.Decimal
}

// Clock supplies the logical time used for open/close gating.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Events receives fire-and-forget notifications after each committed
// transition. Delivery is not required for ledger correctness.
type Events interface {
	AuctionOpened(id AuctionID)
	BestBidChanged(id AuctionID)
	AuctionSettled(id AuctionID, winner AccountID)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) AuctionOpened(AuctionID)             {}
func (NopEvents) BestBidChanged(AuctionID)            {}
func (NopEvents) AuctionSettled(AuctionID, AccountID) {}
