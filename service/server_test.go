package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/custody"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

type serverFixture struct {
	server *Server
	bank   *custody.Bank
	clock  *manualClock
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	bank := custody.NewBank()
	clock := &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := core.NewLedger(clock, bank, nil)
	return &serverFixture{
		server: NewServer(DefaultConfig(), ledger),
		bank:   bank,
		clock:  clock,
	}
}

// dispatchJSON marshals a request, routes it, and decodes the response
// into out, mirroring what one connection round-trip does.
func (f *serverFixture) dispatchJSON(t *testing.T, req any, out any) {
	t.Helper()

	payload, err := json.Marshal(req)
	assert.Nil(t, err)

	resp := f.server.dispatch("test-req", payload)
	data, err := json.Marshal(resp)
	assert.Nil(t, err)
	assert.Nil(t, json.Unmarshal(data, out))
}

func (f *serverFixture) openStandard(t *testing.T) int {
	t.Helper()

	assert.Nil(t, f.bank.Mint("asset-x", "seller-s", decimal.RequireFromString("100")))
	var resp ledgerapi.OpenResponse
	f.dispatchJSON(t, ledgerapi.OpenRequest{
		Type:       ledgerapi.TypeOpen,
		Seller:     "seller-s",
		ItemAsset:  "asset-x",
		ItemAmount: decimal.RequireFromString("100"),
		BidAsset:   "asset-y",
		MinBid:     decimal.RequireFromString("10"),
		EndTime:    f.clock.now.Add(100 * time.Second),
	}, &resp)
	assert.True(t, resp.Success)
	return resp.AuctionID
}

func TestDispatch_Ping(t *testing.T) {
	f := newServerFixture(t)

	var resp map[string]any
	f.dispatchJSON(t, map[string]string{"type": ledgerapi.TypePing}, &resp)
	check.Equal(t, "pong", resp["type"])
}

func TestDispatch_UnknownType(t *testing.T) {
	f := newServerFixture(t)

	var resp ledgerapi.ErrorResponse
	f.dispatchJSON(t, map[string]string{"type": "mystery"}, &resp)
	check.Equal(t, "error", resp.Type)
	check.False(t, resp.Success)
}

func TestDispatch_MalformedPayload(t *testing.T) {
	f := newServerFixture(t)

	resp := f.server.dispatch("test-req", []byte("{not json"))
	errResp, ok := resp.(ledgerapi.ErrorResponse)
	assert.True(t, ok)
	check.False(t, errResp.Success)
}

func TestDispatch_OpenBidSettle(t *testing.T) {
	f := newServerFixture(t)
	id := f.openStandard(t)
	check.Equal(t, 0, id)

	assert.Nil(t, f.bank.Mint("asset-y", "bidder-b1", decimal.RequireFromString("15")))
	var bidResp ledgerapi.BidResponse
	f.dispatchJSON(t, ledgerapi.BidRequest{
		Type:      ledgerapi.TypeBid,
		AuctionID: id,
		Bidder:    "bidder-b1",
		Amount:    decimal.RequireFromString("15"),
	}, &bidResp)
	check.True(t, bidResp.Success)

	// Settling before the close time is refused.
	var settleResp ledgerapi.SettleResponse
	f.dispatchJSON(t, ledgerapi.SettleRequest{Type: ledgerapi.TypeSettle, AuctionID: id}, &settleResp)
	check.False(t, settleResp.Success)

	f.clock.now = f.clock.now.Add(101 * time.Second)
	f.dispatchJSON(t, ledgerapi.SettleRequest{Type: ledgerapi.TypeSettle, AuctionID: id}, &settleResp)
	check.True(t, settleResp.Success)
	check.Equal(t, "bidder-b1", settleResp.Winner)
	check.True(t, settleResp.Amount.Equal(decimal.RequireFromString("15")))

	check.True(t, f.bank.AccountBalance("asset-x", "bidder-b1").Equal(decimal.RequireFromString("100")))
	check.True(t, f.bank.AccountBalance("asset-y", "seller-s").Equal(decimal.RequireFromString("15")))
}

func TestDispatch_BidValidation(t *testing.T) {
	f := newServerFixture(t)
	id := f.openStandard(t)

	tests := []struct {
		name string
		req  ledgerapi.BidRequest
	}{
		{"missing bidder", ledgerapi.BidRequest{Type: ledgerapi.TypeBid, AuctionID: id, Amount: decimal.RequireFromString("15")}},
		{"zero amount", ledgerapi.BidRequest{Type: ledgerapi.TypeBid, AuctionID: id, Bidder: "bidder-b1"}},
		{"negative auction id", ledgerapi.BidRequest{Type: ledgerapi.TypeBid, AuctionID: -1, Bidder: "bidder-b1", Amount: decimal.RequireFromString("15")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ledgerapi.BidResponse
			f.dispatchJSON(t, tt.req, &resp)
			check.False(t, resp.Success)
		})
	}
}

func TestDispatch_List(t *testing.T) {
	f := newServerFixture(t)
	id := f.openStandard(t)

	var resp ledgerapi.ListResponse
	f.dispatchJSON(t, map[string]string{"type": ledgerapi.TypeList}, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, len(resp.Auctions))

	got := resp.Auctions[0]
	check.Equal(t, id, got.AuctionID)
	check.Equal(t, "seller-s", got.Seller)
	// No real bid yet: the seller reads as the zero-amount holder.
	check.Equal(t, "seller-s", got.BestBidder)
	check.True(t, got.BestAmount.IsZero())
	check.False(t, got.Settled)
}

func TestDispatch_Solvency(t *testing.T) {
	f := newServerFixture(t)
	f.openStandard(t)

	var resp ledgerapi.SolvencyResponse
	f.dispatchJSON(t, map[string]string{"type": ledgerapi.TypeSolvency}, &resp)
	assert.True(t, resp.Success)
	check.True(t, resp.Solvent)
	check.True(t, resp.Obligations["asset-x"].Equal(decimal.RequireFromString("100")))
}

func TestDispatch_OpenRejectionsReachCaller(t *testing.T) {
	f := newServerFixture(t)

	// End time in the past surfaces the ledger's schedule error.
	var resp ledgerapi.OpenResponse
	f.dispatchJSON(t, ledgerapi.OpenRequest{
		Type:       ledgerapi.TypeOpen,
		Seller:     "seller-s",
		ItemAsset:  "asset-x",
		ItemAmount: decimal.RequireFromString("100"),
		BidAsset:   "asset-y",
		MinBid:     decimal.RequireFromString("10"),
		EndTime:    f.clock.now.Add(-time.Minute),
	}, &resp)
	check.False(t, resp.Success)
	check.Equal(t, core.ErrInvalidSchedule.Error(), resp.Message)
}

func TestDispatch_ResponsesAreEncodable(t *testing.T) {
	f := newServerFixture(t)
	f.openStandard(t)

	for _, req := range []string{
		fmt.Sprintf(`{"type":%q}`, ledgerapi.TypePing),
		fmt.Sprintf(`{"type":%q}`, ledgerapi.TypeList),
		fmt.Sprintf(`{"type":%q}`, ledgerapi.TypeSolvency),
	} {
		resp := f.server.dispatch("test-req", []byte(req))
		_, err := json.Marshal(resp)
		check.Nil(t, err)
	}
}
