package ledgerapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestOpenRequest_Validate(t *testing.T) {
	endTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := OpenRequest{
		Type:       TypeOpen,
		Seller:     "seller-s",
		ItemAsset:  "asset-x",
		ItemAmount: dec("100"),
		BidAsset:   "asset-y",
		MinBid:     dec("10"),
		EndTime:    endTime,
	}

	tests := []struct {
		name   string
		mutate func(r *OpenRequest)
		wantOK bool
	}{
		{"valid", func(r *OpenRequest) {}, true},
		{"zero item amount allowed", func(r *OpenRequest) { r.ItemAmount = decimal.Zero }, true},
		{"zero minimum allowed", func(r *OpenRequest) { r.MinBid = decimal.Zero }, true},
		{"missing seller", func(r *OpenRequest) { r.Seller = "" }, false},
		{"missing item asset", func(r *OpenRequest) { r.ItemAsset = "" }, false},
		{"missing bid asset", func(r *OpenRequest) { r.BidAsset = "" }, false},
		{"negative item amount", func(r *OpenRequest) { r.ItemAmount = dec("-1") }, false},
		{"negative minimum", func(r *OpenRequest) { r.MinBid = dec("-0.01") }, false},
		{"missing end time", func(r *OpenRequest) { r.EndTime = time.Time{} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantOK {
				check.Nil(t, err)
			} else {
				check.NotNil(t, err)
			}
		})
	}
}

func TestBidRequest_Validate(t *testing.T) {
	valid := BidRequest{Type: TypeBid, AuctionID: 0, Bidder: "bidder-b1", Amount: dec("10")}

	tests := []struct {
		name   string
		mutate func(r *BidRequest)
		wantOK bool
	}{
		{"valid", func(r *BidRequest) {}, true},
		{"negative auction id", func(r *BidRequest) { r.AuctionID = -1 }, false},
		{"missing bidder", func(r *BidRequest) { r.Bidder = "" }, false},
		{"zero amount", func(r *BidRequest) { r.Amount = decimal.Zero }, false},
		{"negative amount", func(r *BidRequest) { r.Amount = dec("-5") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantOK {
				check.Nil(t, err)
			} else {
				check.NotNil(t, err)
			}
		})
	}
}

func TestSettleRequest_Validate(t *testing.T) {
	check.Nil(t, (&SettleRequest{Type: TypeSettle, AuctionID: 0}).Validate())
	check.NotNil(t, (&SettleRequest{Type: TypeSettle, AuctionID: -3}).Validate())
}

func TestOpenRequest_DecodesExactAmounts(t *testing.T) {
	raw := `{
		"type": "open_request",
		"seller": "seller-s",
		"item_asset": "asset-x",
		"item_amount": 100.07,
		"bid_asset": "asset-y",
		"min_bid": 10,
		"end_time": "2026-03-01T12:00:00Z"
	}`

	var req OpenRequest
	assert.Nil(t, json.Unmarshal([]byte(raw), &req))
	check.Equal(t, TypeOpen, req.Type)

	// Decimal fields keep the wire value exactly.
	check.True(t, req.ItemAmount.Equal(dec("100.07")))
	check.True(t, req.MinBid.Equal(dec("10")))
}
