// Package service is the network front end of the auction ledger: a
// one-request-per-connection JSON protocol served over TCP or vsock.
// All requests are applied to a single shared core.Ledger, which
// serializes the state transitions.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/vsock"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/ledgerapi"
)

// Server accepts connections, decodes one request per connection, and
// writes back a single JSON response.
type Server struct {
	cfg    Config
	ledger *core.Ledger
}

// NewServer creates a server for the given ledger. The config must have
// been validated.
func NewServer(cfg Config, ledger *core.Ledger) *Server {
	return &Server{cfg: cfg, ledger: ledger}
}

func (s *Server) listen() (net.Listener, error) {
	switch s.cfg.Listen.Transport {
	case TransportVsock:
		return vsock.Listen(s.cfg.Listen.Port, nil)
	default:
		return net.Listen("tcp", s.cfg.Listen.Addr)
	}
}

// Start runs the accept loop until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := s.listen()
	if err != nil {
		return fmt.Errorf("create %s listener: %w", s.cfg.Listen.Transport, err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Printf("INFO: Auction ledger listening on %s (%s)", listener.Addr(), s.cfg.Listen.Transport)

	semaphore := make(chan struct{}, s.cfg.MaxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.cfg.MaxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	reqID := uuid.NewString()
	response := s.dispatch(reqID, buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Printf("ERROR: [%s] Failed to encode response: %v", reqID, err)
	}
}

// dispatch routes one raw request payload and returns the response
// value to encode. It never returns nil.
func (s *Server) dispatch(reqID string, payload []byte) any {
	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &baseReq); err != nil {
		log.Printf("ERROR: [%s] Failed to decode base request: %v", reqID, err)
		return errorResponse(fmt.Sprintf("malformed request: %v", err))
	}

	log.Printf("INFO: [%s] Received request type: %s", reqID, baseReq.Type)

	switch baseReq.Type {
	case ledgerapi.TypePing:
		return map[string]any{
			"type":      "pong",
			"message":   "auction ledger is healthy",
			"timestamp": time.Now().Unix(),
		}
	case ledgerapi.TypeOpen:
		return s.handleOpen(reqID, payload)
	case ledgerapi.TypeBid:
		return s.handleBid(reqID, payload)
	case ledgerapi.TypeSettle:
		return s.handleSettle(reqID, payload)
	case ledgerapi.TypeList:
		return s.handleList()
	case ledgerapi.TypeSolvency:
		return s.handleSolvency()
	default:
		return errorResponse(fmt.Sprintf("unknown request type: %s", baseReq.Type))
	}
}

func (s *Server) handleOpen(reqID string, payload []byte) ledgerapi.OpenResponse {
	var req ledgerapi.OpenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return ledgerapi.OpenResponse{Type: "open_response", Message: fmt.Sprintf("malformed open request: %v", err)}
	}
	if err := req.Validate(); err != nil {
		return ledgerapi.OpenResponse{Type: "open_response", Message: err.Error()}
	}

	id, err := s.ledger.Open(
		core.AccountID(req.Seller),
		core.AssetID(req.ItemAsset),
		req.ItemAmount,
		core.AssetID(req.BidAsset),
		req.MinBid,
		req.EndTime,
	)
	if err != nil {
		log.Printf("INFO: [%s] Open rejected: %v", reqID, err)
		return ledgerapi.OpenResponse{Type: "open_response", Message: err.Error()}
	}

	log.Printf("INFO: [%s] Opened auction %d for seller %s", reqID, id, req.Seller)
	return ledgerapi.OpenResponse{
		Type:      "open_response",
		Success:   true,
		Message:   fmt.Sprintf("auction %d opened", id),
		AuctionID: int(id),
	}
}

func (s *Server) handleBid(reqID string, payload []byte) ledgerapi.BidResponse {
	var req ledgerapi.BidRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return ledgerapi.BidResponse{Type: "bid_response", Message: fmt.Sprintf("malformed bid request: %v", err)}
	}
	if err := req.Validate(); err != nil {
		return ledgerapi.BidResponse{Type: "bid_response", Message: err.Error()}
	}

	if err := s.ledger.Bid(core.AuctionID(req.AuctionID), core.AccountID(req.Bidder), req.Amount); err != nil {
		log.Printf("INFO: [%s] Bid rejected on auction %d: %v", reqID, req.AuctionID, err)
		return ledgerapi.BidResponse{Type: "bid_response", Message: err.Error()}
	}

	log.Printf("INFO: [%s] New best bid on auction %d: %s by %s", reqID, req.AuctionID, req.Amount, req.Bidder)
	return ledgerapi.BidResponse{
		Type:    "bid_response",
		Success: true,
		Message: fmt.Sprintf("best bid on auction %d is now %s", req.AuctionID, req.Amount),
	}
}

func (s *Server) handleSettle(reqID string, payload []byte) ledgerapi.SettleResponse {
	var req ledgerapi.SettleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return ledgerapi.SettleResponse{Type: "settle_response", Message: fmt.Sprintf("malformed settle request: %v", err)}
	}
	if err := req.Validate(); err != nil {
		return ledgerapi.SettleResponse{Type: "settle_response", Message: err.Error()}
	}

	id := core.AuctionID(req.AuctionID)
	if err := s.ledger.Settle(id); err != nil {
		log.Printf("INFO: [%s] Settle rejected on auction %d: %v", reqID, req.AuctionID, err)
		return ledgerapi.SettleResponse{Type: "settle_response", Message: err.Error()}
	}

	// The settled record keeps the winner and final amount as history.
	bb, err := s.ledger.BestBid(id)
	if err != nil {
		return ledgerapi.SettleResponse{Type: "settle_response", Message: err.Error()}
	}

	log.Printf("INFO: [%s] Settled auction %d: winner %s at %s", reqID, req.AuctionID, bb.Bidder, bb.Amount)
	return ledgerapi.SettleResponse{
		Type:    "settle_response",
		Success: true,
		Message: fmt.Sprintf("auction %d settled", req.AuctionID),
		Winner:  string(bb.Bidder),
		Amount:  bb.Amount,
	}
}

func (s *Server) handleList() ledgerapi.ListResponse {
	count := s.ledger.Count()
	summaries := make([]ledgerapi.AuctionSummary, 0, count)
	for id := 0; id < count; id++ {
		a, err := s.ledger.Auction(core.AuctionID(id))
		if err != nil {
			return ledgerapi.ListResponse{Type: "list_response", Message: err.Error()}
		}
		bb, err := s.ledger.BestBid(core.AuctionID(id))
		if err != nil {
			return ledgerapi.ListResponse{Type: "list_response", Message: err.Error()}
		}
		summaries = append(summaries, ledgerapi.AuctionSummary{
			AuctionID:  id,
			Seller:     string(a.Seller),
			ItemAsset:  string(a.ItemAsset),
			ItemAmount: a.ItemAmount,
			BidAsset:   string(a.BidAsset),
			MinBid:     a.MinBid,
			EndTime:    a.EndTime,
			BestBidder: string(bb.Bidder),
			BestAmount: bb.Amount,
			Settled:    bb.Settled,
		})
	}

	return ledgerapi.ListResponse{
		Type:     "list_response",
		Success:  true,
		Message:  fmt.Sprintf("%d auctions", count),
		Auctions: summaries,
	}
}

func (s *Server) handleSolvency() ledgerapi.SolvencyResponse {
	owed := s.ledger.Obligations()
	wire := make(map[string]decimal.Decimal, len(owed))
	for asset, amount := range owed {
		wire[string(asset)] = amount
	}

	resp := ledgerapi.SolvencyResponse{
		Type:        "solvency_response",
		Success:     true,
		Solvent:     true,
		Message:     "custody balances match obligations",
		Obligations: wire,
	}
	if err := s.ledger.VerifySolvency(); err != nil {
		resp.Solvent = false
		resp.Message = err.Error()
	}
	return resp
}

func errorResponse(msg string) ledgerapi.ErrorResponse {
	return ledgerapi.ErrorResponse{Type: "error", Message: msg}
}
