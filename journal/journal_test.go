package journal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionledger/core"
)

func TestJournal_RecordsEvents(t *testing.T) {
	j := New(DefaultConfig(), nil)

	j.AuctionOpened(0)
	j.BestBidChanged(0)
	j.AuctionSettled(0, "bidder-b2")

	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	assert.Equal(t, 3, len(j.batch))

	check.Equal(t, KindAuctionOpened, j.batch[0].Kind)
	check.Equal(t, KindBestBidChanged, j.batch[1].Kind)
	check.Equal(t, KindAuctionSettled, j.batch[2].Kind)

	check.Equal(t, int64(0), j.batch[0].AuctionID)
	check.Equal(t, "", j.batch[0].Winner)
	check.Equal(t, "bidder-b2", j.batch[2].Winner)
	check.True(t, j.batch[0].OccurredAt > 0)
}

func TestJournal_EventIDsAreUnique(t *testing.T) {
	j := New(DefaultConfig(), nil)

	for id := core.AuctionID(0); id < 10; id++ {
		j.AuctionOpened(id)
	}

	j.batchMu.Lock()
	defer j.batchMu.Unlock()

	seen := make(map[string]bool)
	for _, row := range j.batch {
		// Every row carries a parseable, distinct event id.
		_, err := uuid.Parse(row.EventID)
		check.Nil(t, err)
		check.False(t, seen[row.EventID])
		seen[row.EventID] = true
	}
}

func TestJournal_SizeTriggerSignalsFlush(t *testing.T) {
	cfg := Config{BatchSize: 2, FlushInterval: DefaultConfig().FlushInterval}
	j := New(cfg, nil)

	j.AuctionOpened(0)
	select {
	case <-j.kick:
		t.Fatal("flush signalled before the batch filled")
	default:
	}

	j.BestBidChanged(0)
	select {
	case <-j.kick:
	default:
		t.Fatal("full batch did not signal a flush")
	}
}

func TestJournal_StatsStartEmpty(t *testing.T) {
	j := New(DefaultConfig(), nil)
	check.Equal(t, Metrics{}, j.Stats())
}
