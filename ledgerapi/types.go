// Package ledgerapi defines the wire protocol between the auction
// ledger service and its callers: JSON request/response messages, the
// request validation rules, and the CBOR snapshot codec.
package ledgerapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Request type discriminators. Every message carries a "type" field so
// the server can dispatch before fully decoding.
const (
	TypePing     = "ping"
	TypeOpen     = "open_request"
	TypeBid      = "bid_request"
	TypeSettle   = "settle_request"
	TypeList     = "list_request"
	TypeSolvency = "solvency_request"
)

// OpenRequest asks the ledger to escrow an item and open an auction.
type OpenRequest struct {
	Type       string          `json:"type"`
	Seller     string          `json:"seller"`
	ItemAsset  string          `json:"item_asset"`
	ItemAmount decimal.Decimal `json:"item_amount"`
	BidAsset   string          `json:"bid_asset"`
	MinBid     decimal.Decimal `json:"min_bid"`
	EndTime    time.Time       `json:"end_time"`
}

// Validate checks the request is structurally sound. Time gating is the
// ledger's decision, not the wire layer's.
func (r *OpenRequest) Validate() error {
	if r.Seller == "" {
		return fmt.Errorf("open request: missing seller")
	}
	if r.ItemAsset == "" || r.BidAsset == "" {
		return fmt.Errorf("open request: missing asset")
	}
	if r.ItemAmount.IsNegative() {
		return fmt.Errorf("open request: negative item amount %s", r.ItemAmount)
	}
	if r.MinBid.IsNegative() {
		return fmt.Errorf("open request: negative minimum bid %s", r.MinBid)
	}
	if r.EndTime.IsZero() {
		return fmt.Errorf("open request: missing end time")
	}
	return nil
}

// BidRequest places a bid on an open auction.
type BidRequest struct {
	Type      string          `json:"type"`
	AuctionID int             `json:"auction_id"`
	Bidder    string          `json:"bidder"`
	Amount    decimal.Decimal `json:"amount"`
}

func (r *BidRequest) Validate() error {
	if r.AuctionID < 0 {
		return fmt.Errorf("bid request: negative auction id %d", r.AuctionID)
	}
	if r.Bidder == "" {
		return fmt.Errorf("bid request: missing bidder")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("bid request: amount %s must be positive", r.Amount)
	}
	return nil
}

// SettleRequest closes an auction past its end time.
type SettleRequest struct {
	Type      string `json:"type"`
	AuctionID int    `json:"auction_id"`
}

func (r *SettleRequest) Validate() error {
	if r.AuctionID < 0 {
		return fmt.Errorf("settle request: negative auction id %d", r.AuctionID)
	}
	return nil
}

// OpenResponse reports the id assigned by a successful open.
type OpenResponse struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AuctionID int    `json:"auction_id"`
}

// BidResponse reports the outcome of a bid.
type BidResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SettleResponse reports the outcome of a settlement, including the
// winner and the final bid amount on success.
type SettleResponse struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Winner  string          `json:"winner,omitempty"`
	Amount  decimal.Decimal `json:"amount"`
}

// AuctionSummary is one registry entry in a ListResponse.
type AuctionSummary struct {
	AuctionID  int             `json:"auction_id"`
	Seller     string          `json:"seller"`
	ItemAsset  string          `json:"item_asset"`
	ItemAmount decimal.Decimal `json:"item_amount"`
	BidAsset   string          `json:"bid_asset"`
	MinBid     decimal.Decimal `json:"min_bid"`
	EndTime    time.Time       `json:"end_time"`
	BestBidder string          `json:"best_bidder"`
	BestAmount decimal.Decimal `json:"best_amount"`
	Settled    bool            `json:"settled"`
}

// ListResponse enumerates the full registry by index.
type ListResponse struct {
	Type     string           `json:"type"`
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Auctions []AuctionSummary `json:"auctions"`
}

// SolvencyResponse reports per-asset obligations and whether custody
// balances match them.
type SolvencyResponse struct {
	Type        string                     `json:"type"`
	Success     bool                       `json:"success"`
	Message     string                     `json:"message"`
	Solvent     bool                       `json:"solvent"`
	Obligations map[string]decimal.Decimal `json:"obligations"`
}

// ErrorResponse is returned for malformed or unknown requests.
type ErrorResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
