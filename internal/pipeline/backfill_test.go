package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okravets/baraholka/internal/database"
	"github.com/okravets/baraholka/internal/pipeline"
)

func TestBackfillInsertsEligibleOnce(t *testing.T) {
	t.Parallel()

	history := []*database.RawMessage{
		saleMessage(10, "Продам куртку, 900 грн"),
		saleMessage(11, "Привіт, як справи?"),
		saleMessage(12, "Продам сукню, 350 грн"),
		saleMessage(13, "Кросівки продано"),
		saleMessage(14, "Продам черевики, 1200 грн"),
	}

	source := &fakeSource{admin: true, history: history}
	store := newFakeStore()

	// One of the three eligible listings already exists in the store.
	store.listings[storeKey("Продам черевики, 1200 грн", "Baraholka")] = &database.Listing{
		Title:    "Продам черевики, 1200 грн",
		ShopName: "Baraholka",
	}

	p := newTestPipeline(t, source, store, nil)

	summary, err := p.Backfill(context.Background(), -100)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}

	if summary.Scanned != 5 {
		t.Errorf("Scanned = %d, want 5", summary.Scanned)
	}
	if summary.Ingested != 2 {
		t.Errorf("Ingested = %d, want 2", summary.Ingested)
	}
	// 1 non-sale + 1 sold-out + 1 duplicate.
	if summary.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", summary.Skipped)
	}
	if summary.Failed != 0 {
		t.Errorf("Failed = %d, want 0", summary.Failed)
	}
	if store.inserts != 2 {
		t.Errorf("inserts = %d, want 2", store.inserts)
	}
}

func TestBackfillRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	history := []*database.RawMessage{
		saleMessage(10, "Продам куртку, 900 грн"),
		saleMessage(12, "Продам сукню, 350 грн"),
	}

	source := &fakeSource{admin: true, history: history}
	store := newFakeStore()
	p := newTestPipeline(t, source, store, nil)

	first, err := p.Backfill(context.Background(), -100)
	if err != nil {
		t.Fatalf("first Backfill failed: %v", err)
	}
	if first.Ingested != 2 {
		t.Fatalf("first run Ingested = %d, want 2", first.Ingested)
	}

	second, err := p.Backfill(context.Background(), -100)
	if err != nil {
		t.Fatalf("second Backfill failed: %v", err)
	}
	if second.Ingested != 0 {
		t.Errorf("second run Ingested = %d, want 0", second.Ingested)
	}
	if second.Skipped != 2 {
		t.Errorf("second run Skipped = %d, want 2", second.Skipped)
	}
	if store.inserts != 2 {
		t.Errorf("total inserts = %d, want 2", store.inserts)
	}
}

func TestBackfillPassesConfiguredLimit(t *testing.T) {
	t.Parallel()

	source := &fakeSource{admin: true}
	store := newFakeStore()
	p := newTestPipeline(t, source, store, nil)

	if _, err := p.Backfill(context.Background(), -100); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if source.historyLimit != 1000 {
		t.Errorf("history limit = %d, want 1000", source.historyLimit)
	}
}

func TestBackfillNotAdminSkipsAll(t *testing.T) {
	t.Parallel()

	history := []*database.RawMessage{
		saleMessage(10, "Продам куртку, 900 грн"),
		saleMessage(11, "Продам сукню, 350 грн"),
	}

	source := &fakeSource{admin: false, history: history}
	store := newFakeStore()
	p := newTestPipeline(t, source, store, nil)

	summary, err := p.Backfill(context.Background(), -100)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if summary.Skipped != 2 || summary.Ingested != 0 {
		t.Errorf("summary = %+v, want all skipped", summary)
	}
	if store.inserts != 0 {
		t.Errorf("inserts = %d, want 0", store.inserts)
	}
}

func TestBackfillStoreFailuresAreTalliedNotFatal(t *testing.T) {
	t.Parallel()

	history := []*database.RawMessage{
		saleMessage(10, "Продам куртку, 900 грн"),
		saleMessage(12, "Продам сукню, 350 грн"),
	}

	source := &fakeSource{admin: true, history: history}
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	p := newTestPipeline(t, source, store, nil)

	summary, err := p.Backfill(context.Background(), -100)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if summary.Failed != 2 {
		t.Errorf("Failed = %d, want 2", summary.Failed)
	}
	if summary.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", summary.Scanned)
	}
}

// blockingSource parks IterateHistory until released, so a second scan can
// be attempted while the first is still inside the pipeline.
type blockingSource struct {
	fakeSource
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func (b *blockingSource) IterateHistory(ctx context.Context, chatID int64, limit int) ([]*database.RawMessage, error) {
	b.enterOnce.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.fakeSource.IterateHistory(ctx, chatID, limit)
}

func TestBackfillRejectsConcurrentScan(t *testing.T) {
	t.Parallel()

	source := &blockingSource{
		fakeSource: fakeSource{admin: true},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	store := newFakeStore()

	p := newTestPipeline(t, source, store, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Backfill(context.Background(), -100); err != nil {
			t.Errorf("first Backfill failed: %v", err)
		}
	}()

	<-source.entered

	if !p.BackfillRunning() {
		t.Error("BackfillRunning = false while a scan is in flight")
	}

	_, err := p.Backfill(context.Background(), -100)
	if !errors.Is(err, pipeline.ErrBackfillRunning) {
		t.Errorf("second Backfill err = %v, want ErrBackfillRunning", err)
	}

	close(source.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("first Backfill did not finish")
	}

	if p.BackfillRunning() {
		t.Error("BackfillRunning = true after scan finished")
	}
}
