package pipeline

import (
	"context"
	"fmt"

	"github.com/okravets/baraholka/internal/database"
)

// Summary tallies the terminal states of a backfill scan.
type Summary struct {
	Scanned  int
	Ingested int
	Skipped  int
	Failed   int
}

// Backfill scans the most recent historical messages of a chat and ingests
// the eligible listings that the live path missed. Duplicate suppression is
// store-backed: a listing whose (title, shop) pair already exists is skipped,
// independent of message identifiers, so re-running the scan over an
// unchanged history inserts nothing new.
//
// Only one scan may run at a time; a second invocation returns
// ErrBackfillRunning. Store failures are tallied per message and never abort
// the remaining scan.
func (p *Pipeline) Backfill(ctx context.Context, chatID int64) (Summary, error) {
	if !p.backfillRunning.CompareAndSwap(false, true) {
		return Summary{}, ErrBackfillRunning
	}
	defer p.backfillRunning.Store(false)

	log := p.logger.With("path", "backfill", "chat_id", chatID)
	log.InfoContext(ctx, "Starting backfill scan", "limit", p.limit)

	var history []*database.RawMessage
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var histErr error
		history, histErr = p.source.IterateHistory(callCtx, chatID, p.limit)
		return histErr
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to fetch chat history: %w", err)
	}

	// The whole scan targets a single chat, so one membership lookup covers
	// every message.
	admin, outcome := p.checkAdmin(ctx, chatID, log)
	if outcome.Status == StatusFailed {
		return Summary{}, fmt.Errorf("failed to resolve bot membership for chat %d", chatID)
	}

	summary := Summary{}
	for _, msg := range history {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Scanned++

		if !admin {
			summary.Skipped++
			continue
		}

		out := p.classifyExtractPersist(ctx, msg, p.listingExists, log.With("message_id", msg.MessageID))
		switch out.Status {
		case StatusIngested:
			summary.Ingested++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			summary.Failed++
		}
	}

	log.InfoContext(ctx, "Backfill scan finished",
		"scanned", summary.Scanned, "ingested", summary.Ingested,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// listingExists is the backfill duplicate check: the store is queried for an
// existing record with equal title and shop.
func (p *Pipeline) listingExists(ctx context.Context, listing *database.Listing) (bool, error) {
	var existing *database.Listing
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var findErr error
		existing, findErr = p.store.FindListingByTitleAndShop(callCtx, listing.Title, listing.ShopName)
		return findErr
	})
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}
