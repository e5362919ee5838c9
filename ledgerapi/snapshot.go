package ledgerapi

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
)

// SnapshotAuction is the CBOR form of one immutable auction record.
// Amounts travel as decimal strings so no precision is lost, and times
// as Unix nanoseconds.
type SnapshotAuction struct {
	Seller     string `cbor:"seller"`
	ItemAsset  string `cbor:"item_asset"`
	ItemAmount string `cbor:"item_amount"`
	BidAsset   string `cbor:"bid_asset"`
	MinBid     string `cbor:"min_bid"`
	EndTimeNs  int64  `cbor:"end_time_ns"`
}

// SnapshotBid is the CBOR form of one bid record.
type SnapshotBid struct {
	Phase  int    `cbor:"phase"`
	Bidder string `cbor:"bidder"`
	Amount string `cbor:"amount"`
}

// Snapshot is a point-in-time export of both registries.
type Snapshot struct {
	TakenAtNs int64             `cbor:"taken_at_ns"`
	Auctions  []SnapshotAuction `cbor:"auctions"`
	Bids      []SnapshotBid     `cbor:"bids"`
}

// EncodeSnapshot serializes the registries exported by core.Ledger.Snapshot.
func EncodeSnapshot(takenAt time.Time, auctions []core.Auction, bids []core.BidState) ([]byte, error) {
	if len(auctions) != len(bids) {
		return nil, fmt.Errorf("encode snapshot: %d auctions, %d bid records", len(auctions), len(bids))
	}

	snap := Snapshot{
		TakenAtNs: takenAt.UnixNano(),
		Auctions:  make([]SnapshotAuction, len(auctions)),
		Bids:      make([]SnapshotBid, len(bids)),
	}
	for i, a := range auctions {
		snap.Auctions[i] = SnapshotAuction{
			Seller:     string(a.Seller),
			ItemAsset:  string(a.ItemAsset),
			ItemAmount: a.ItemAmount.String(),
			BidAsset:   string(a.BidAsset),
			MinBid:     a.MinBid.String(),
			EndTimeNs:  a.EndTime.UnixNano(),
		}
	}
	for i, st := range bids {
		snap.Bids[i] = SnapshotBid{
			Phase:  int(st.Phase),
			Bidder: string(st.Bidder),
			Amount: st.Amount.String(),
		}
	}

	data, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(snap.Auctions) != len(snap.Bids) {
		return nil, fmt.Errorf("decode snapshot: %d auctions, %d bid records", len(snap.Auctions), len(snap.Bids))
	}
	return &snap, nil
}

// Registries converts a decoded snapshot back into core registry form,
// suitable for core.Restore.
func (s *Snapshot) Registries() ([]core.Auction, []core.BidState, error) {
	auctions := make([]core.Auction, len(s.Auctions))
	for i, a := range s.Auctions {
		itemAmount, err := decimal.NewFromString(a.ItemAmount)
		if err != nil {
			return nil, nil, fmt.Errorf("auction %d: parse item amount: %w", i, err)
		}
		minBid, err := decimal.NewFromString(a.MinBid)
		if err != nil {
			return nil, nil, fmt.Errorf("auction %d: parse minimum bid: %w", i, err)
		}
		auctions[i] = core.Auction{
			Seller:     core.AccountID(a.Seller),
			ItemAsset:  core.AssetID(a.ItemAsset),
			ItemAmount: itemAmount,
			BidAsset:   core.AssetID(a.BidAsset),
			MinBid:     minBid,
			EndTime:    time.Unix(0, a.EndTimeNs).UTC(),
		}
	}

	bids := make([]core.BidState, len(s.Bids))
	for i, st := range s.Bids {
		amount, err := decimal.NewFromString(st.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("bid record %d: parse amount: %w", i, err)
		}
		phase := core.BidPhase(st.Phase)
		if phase != core.PhaseNoBid && phase != core.PhaseBidding && phase != core.PhaseSettled {
			return nil, nil, fmt.Errorf("bid record %d: unknown phase %d", i, st.Phase)
		}
		bids[i] = core.BidState{
			Phase:  phase,
			Bidder: core.AccountID(st.Bidder),
			Amount: amount,
		}
	}
	return auctions, bids, nil
}
