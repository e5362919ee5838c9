package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the custodial auction state machine. It owns two parallel
// append-only registries: immutable Auction records and their mutable
// BidState records, paired by index. Every unit of value the ledger
// custodies is attributable to exactly one open auction, and every
// operation either commits all of its state changes and transfers or
// none of them.
//
// Operations are serialized by an internal mutex; callers may share a
// Ledger across goroutines.
type Ledger struct {
	mu     sync.Mutex
	clock  Clock
	bank   Custody
	events Events

	auctions []Auction
	bids     []BidState
}

// NewLedger creates an empty ledger. A nil events sink is replaced with
// NopEvents.
func NewLedger(clock Clock, bank Custody, events Events) *Ledger {
	if events == nil {
		events = NopEvents{}
	}
	return &Ledger{
		clock:  clock,
		bank:   bank,
		events: events,
	}
}

// Restore rebuilds a ledger from previously exported registries, e.g. a
// decoded snapshot. The registries must have matching lengths and every
// bid record past PhaseNoBid must name a bidder.
func Restore(clock Clock, bank Custody, events Events, auctions []Auction, bids []BidState) (*Ledger, error) {
	if len(auctions) != len(bids) {
		return nil, fmt.Errorf("registry length mismatch: %d auctions, %d bid records", len(auctions), len(bids))
	}
	for i, st := range bids {
		if st.Phase != PhaseNoBid && st.Bidder == "" {
			return nil, fmt.Errorf("bid record %d: phase %d with empty bidder", i, st.Phase)
		}
	}

	l := NewLedger(clock, bank, events)
	l.auctions = append(l.auctions, auctions...)
	l.bids = append(l.bids, bids...)
	return l, nil
}

// Open escrows itemAmount of itemAsset from the seller and appends a
// new auction accepting bids in bidAsset until endTime. It returns the
// permanent auction id, equal to the registry length before the append.
func (l *Ledger) Open(seller AccountID, itemAsset AssetID, itemAmount decimal.Decimal, bidAsset AssetID, minBid decimal.Decimal, endTime time.Time) (AuctionID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !endTime.After(l.clock.Now()) {
		return 0, ErrInvalidSchedule
	}

	// Escrow the item before recording anything, so a failed pull
	// leaves no trace in the registries.
	if err := l.bank.TransferIn(itemAsset, seller, itemAmount); err != nil {
		return 0, fmt.Errorf("%w: escrow %s %s from %s: %v", ErrTransferFailed, itemAmount, itemAsset, seller, err)
	}

	id := AuctionID(len(l.auctions))
	l.auctions = append(l.auctions, Auction{
		Seller:     seller,
		ItemAsset:  itemAsset,
		ItemAmount: itemAmount,
		BidAsset:   bidAsset,
		MinBid:     minBid,
		EndTime:    endTime,
	})
	l.bids = append(l.bids, BidState{Phase: PhaseNoBid})

	l.events.AuctionOpened(id)
	return id, nil
}

// Bid places amount of the auction's bid asset in escrow on behalf of
// bidder and records it as the new best bid, refunding the previous
// best bidder. A first bid must meet the auction minimum; every bid
// must strictly exceed the current best.
//
// When the current best bidder raises their own bid, only the
// difference is pulled: the bidder's net debit is newAmount minus
// previousAmount.
func (l *Ledger) Bid(id AuctionID, bidder AccountID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, st, err := l.lookup(id)
	if err != nil {
		return err
	}
	if !l.clock.Now().Before(a.EndTime) {
		return ErrAuctionClosed
	}
	if !amount.GreaterThan(st.Amount) {
		return ErrBidTooLow
	}
	if st.Phase == PhaseNoBid && amount.LessThan(a.MinBid) {
		return ErrBidTooLow
	}

	if st.Phase == PhaseBidding && st.Bidder == bidder {
		// Self-outbid: the refund and the larger pull net to a single
		// debit of the difference, so issue one net transfer instead
		// of asking Custody to compose two calls atomically.
		raise := amount.Sub(st.Amount)
		if err := l.bank.TransferIn(a.BidAsset, bidder, raise); err != nil {
			return fmt.Errorf("%w: raise bid by %s %s from %s: %v", ErrTransferFailed, raise, a.BidAsset, bidder, err)
		}
	} else {
		if err := l.bank.TransferIn(a.BidAsset, bidder, amount); err != nil {
			return fmt.Errorf("%w: pull bid %s %s from %s: %v", ErrTransferFailed, amount, a.BidAsset, bidder, err)
		}
		if st.Phase == PhaseBidding {
			if err := l.bank.TransferOut(a.BidAsset, st.Bidder, st.Amount); err != nil {
				// Return the freshly pulled bid so the failed
				// operation commits nothing.
				if undoErr := l.bank.TransferOut(a.BidAsset, bidder, amount); undoErr != nil {
					return fmt.Errorf("%w: refund %s to %s failed (%v); returning %s's bid also failed: %v", ErrTransferFailed, st.Amount, st.Bidder, err, bidder, undoErr)
				}
				return fmt.Errorf("%w: refund %s %s to %s: %v", ErrTransferFailed, st.Amount, a.BidAsset, st.Bidder, err)
			}
		}
	}

	l.bids[id] = BidState{Phase: PhaseBidding, Bidder: bidder, Amount: amount}
	l.events.BestBidChanged(id)
	return nil
}

// Settle closes an auction at or after its end time: the item moves to
// the winning bidder, the winning bid moves to the seller, and the bid
// record is terminally marked settled with the winner and amount kept
// as history. With no real bid the item returns to the seller and the
// proceeds transfer moves zero.
func (l *Ledger) Settle(id AuctionID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, st, err := l.lookup(id)
	if err != nil {
		return err
	}
	if l.clock.Now().Before(a.EndTime) {
		return ErrAuctionStillOpen
	}
	if st.Phase == PhaseSettled {
		return ErrAlreadySettled
	}

	winner := a.Seller
	proceeds := decimal.Zero
	if st.Phase == PhaseBidding {
		winner = st.Bidder
		proceeds = st.Amount
	}

	if err := l.bank.TransferOut(a.ItemAsset, winner, a.ItemAmount); err != nil {
		return fmt.Errorf("%w: release item %s %s to %s: %v", ErrTransferFailed, a.ItemAmount, a.ItemAsset, winner, err)
	}
	if err := l.bank.TransferOut(a.BidAsset, a.Seller, proceeds); err != nil {
		// Pull the item back so the auction is never half-settled.
		if undoErr := l.bank.TransferIn(a.ItemAsset, winner, a.ItemAmount); undoErr != nil {
			return fmt.Errorf("%w: pay proceeds %s to %s failed (%v); re-escrowing item from %s also failed: %v", ErrTransferFailed, proceeds, a.Seller, err, winner, undoErr)
		}
		return fmt.Errorf("%w: pay proceeds %s %s to %s: %v", ErrTransferFailed, proceeds, a.BidAsset, a.Seller, err)
	}

	l.bids[id] = BidState{Phase: PhaseSettled, Bidder: winner, Amount: proceeds}
	l.events.AuctionSettled(id, winner)
	return nil
}

// Count returns the number of auctions ever opened. Ids range over
// [0, Count).
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.auctions)
}

// Auction returns the immutable record for id.
func (l *Ledger) Auction(id AuctionID) (Auction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, _, err := l.lookup(id)
	return a, err
}

// BestBid returns the current best bid for id. Before any real bid the
// seller reads as the holder of a zero bid; after settlement Settled is
// true and the winning bid is kept as history.
func (l *Ledger) BestBid(id AuctionID) (BestBid, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, st, err := l.lookup(id)
	if err != nil {
		return BestBid{}, err
	}

	switch st.Phase {
	case PhaseNoBid:
		return BestBid{Bidder: a.Seller, Amount: decimal.Zero}, nil
	case PhaseSettled:
		return BestBid{Bidder: st.Bidder, Amount: st.Amount, Settled: true}, nil
	default:
		return BestBid{Bidder: st.Bidder, Amount: st.Amount}, nil
	}
}

// Snapshot returns copies of both registries for export.
func (l *Ledger) Snapshot() ([]Auction, []BidState) {
	l.mu.Lock()
	defer l.mu.Unlock()

	auctions := make([]Auction, len(l.auctions))
	copy(auctions, l.auctions)
	bids := make([]BidState, len(l.bids))
	copy(bids, l.bids)
	return auctions, bids
}

// lookup must be called with the mutex held.
func (l *Ledger) lookup(id AuctionID) (Auction, BidState, error) {
	if id < 0 || int(id) >= len(l.auctions) {
		return Auction{}, BidState{}, ErrUnknownAuction
	}
	return l.auctions[id], l.bids[id], nil
}
