// Package journal persists ledger notifications as rows in Postgres.
// It implements core.Events as a pure observer: entries are buffered
// in memory and batch-inserted in the background, and the ledger's
// correctness never depends on a row reaching the database.
package journal

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloudx-io/auctionledger/core"
)

// Event kinds recorded in the ledger_events table.
const (
	KindAuctionOpened  = "auction_opened"
	KindBestBidChanged = "best_bid_changed"
	KindAuctionSettled = "auction_settled"
)

// Config holds journal batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// eventRow is one row of the ledger_events table.
type eventRow struct {
	EventID    string
	Kind       string
	AuctionID  int64
	Winner     string
	OccurredAt int64 // unix micros
}

// Journal buffers ledger events and batch-inserts them into Postgres.
type Journal struct {
	cfg Config
	db  *pgxpool.Pool

	// Batching
	batchMu sync.Mutex
	batch   []eventRow
	metrics Metrics

	// A size-triggered flush runs on the background goroutine, so
	// ledger operations never wait on the database.
	kick chan struct{}

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a journal writing through the given pool.
func New(cfg Config, db *pgxpool.Pool) *Journal {
	return &Journal{
		cfg:   cfg,
		db:    db,
		batch: make([]eventRow, 0, cfg.BatchSize),
		kick:  make(chan struct{}, 1),
	}
}

// Start begins the background flush loop.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.flushLoop()

	log.Printf("INFO: Event journal started (batch_size=%d, flush_interval=%s)", j.cfg.BatchSize, j.cfg.FlushInterval)
	return nil
}

// Stop shuts the journal down and flushes whatever is buffered.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("INFO: Event journal stopped")
	case <-ctx.Done():
		log.Printf("ERROR: Event journal stop timed out")
	}

	// Final flush
	j.flush(context.Background())
	return nil
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// AuctionOpened implements core.Events.
func (j *Journal) AuctionOpened(id core.AuctionID) {
	j.record(KindAuctionOpened, id, "")
}

// BestBidChanged implements core.Events.
func (j *Journal) BestBidChanged(id core.AuctionID) {
	j.record(KindBestBidChanged, id, "")
}

// AuctionSettled implements core.Events.
func (j *Journal) AuctionSettled(id core.AuctionID, winner core.AccountID) {
	j.record(KindAuctionSettled, id, winner)
}

// record buffers one event and wakes the flush loop when the batch is
// full.
func (j *Journal) record(kind string, id core.AuctionID, winner core.AccountID) {
	row := eventRow{
		EventID:    uuid.NewString(),
		Kind:       kind,
		AuctionID:  int64(id),
		Winner:     string(winner),
		OccurredAt: time.Now().UnixMicro(),
	}

	j.batchMu.Lock()
	j.batch = append(j.batch, row)
	full := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if full {
		select {
		case j.kick <- struct{}{}:
		default:
		}
	}
}

// flushLoop flushes on the ticker and on size triggers.
func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		case <-j.kick:
			j.flush(j.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}

	// Take ownership of the current batch
	batch := j.batch
	j.batch = make([]eventRow, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	start := time.Now()

	conflicts, err := j.batchInsert(ctx, batch)
	if err != nil {
		log.Printf("ERROR: Journal batch insert failed: %v (count=%d)", err, len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch) - conflicts)
	j.metrics.Conflicts += int64(conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	log.Printf("INFO: Journal flushed %d events (conflicts=%d, duration=%s)", len(batch), conflicts, time.Since(start))
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (j *Journal) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ledger_events (event_id, kind, auction_id, winner, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, r.EventID, r.Kind, r.AuctionID, r.Winner, r.OccurredAt)
	}

	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
