// Package pipeline orchestrates listing ingestion: receive a message,
// classify it, extract structured fields, suppress duplicates, and persist
// the result. It covers both the live update path and the historical
// backfill path, which share classification and extraction but use
// independent duplicate-prevention strategies.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okravets/baraholka/internal/classify"
	"github.com/okravets/baraholka/internal/config"
	"github.com/okravets/baraholka/internal/database"
	"github.com/okravets/baraholka/internal/extract"
)

// ErrBackfillRunning is returned when a backfill scan is requested while one
// is already in progress. Scans are not re-entrant: concurrent scans would
// race on the duplicate-detection queries against the store.
var ErrBackfillRunning = errors.New("backfill scan already running")

// Status is the terminal state of processing one message.
type Status string

const (
	StatusIngested Status = "ingested"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Reason explains a Skipped or Failed status.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNotAdmin    Reason = "not-admin"
	ReasonNotSale     Reason = "not-sale"
	ReasonSoldOut     Reason = "sold-out"
	ReasonDuplicate   Reason = "duplicate"
	ReasonStoreError  Reason = "store-error"
	ReasonSourceError Reason = "source-error"
	ReasonTimeout     Reason = "timeout"
)

// Outcome is the result of processing a single message. Degraded marks an
// ingested listing whose image could not be uploaded.
type Outcome struct {
	Status   Status
	Reason   Reason
	Degraded bool
}

// MessageSource abstracts the messaging transport the pipeline consumes.
type MessageSource interface {
	// IsBotAdmin resolves whether the bot is an administrator of the chat.
	IsBotAdmin(ctx context.Context, chatID int64) (bool, error)

	// DownloadPhoto fetches photo bytes for a transport file reference.
	DownloadPhoto(ctx context.Context, fileID string) (data []byte, mimeType string, err error)

	// IterateHistory returns up to limit historical messages for a chat,
	// newest first. The sequence is finite and not restartable mid-scan.
	IterateHistory(ctx context.Context, chatID int64, limit int) ([]*database.RawMessage, error)

	// SendMessage sends a status reply to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ListingStore is the subset of the persistence layer the pipeline needs.
type ListingStore interface {
	InsertListing(ctx context.Context, listing *database.Listing) error
	FindListingByTitleAndShop(ctx context.Context, title, shop string) (*database.Listing, error)
}

// Extractor derives a listing draft from a raw message.
type Extractor interface {
	Extract(ctx context.Context, msg *database.RawMessage) (*database.Listing, error)
}

// Pipeline processes one message at a time to completion; the mutex enforces
// that even when the transport dispatches updates concurrently, so the seen
// set and counters need no further locking.
type Pipeline struct {
	source     MessageSource
	store      ListingStore
	classifier *classify.Classifier
	extractor  Extractor
	seen       *SeenSet
	timeout    time.Duration
	limit      int
	logger     *slog.Logger

	mu              sync.Mutex
	backfillRunning atomic.Bool
}

// New creates an ingestion pipeline. The seen set is owned by this instance;
// construct separate pipelines to get isolated duplicate suppression.
func New(
	cfg config.PipelineConfig,
	source MessageSource,
	store ListingStore,
	classifier *classify.Classifier,
	extractor Extractor,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     source,
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		seen:       NewSeenSet(cfg.SeenCacheSize),
		timeout:    cfg.ExternalTimeout,
		limit:      cfg.BackfillLimit,
		logger:     logger.With("component", "pipeline"),
	}
}

// SeenCount returns the current size of the live-path seen set.
func (p *Pipeline) SeenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen.Len()
}

// BackfillRunning reports whether a backfill scan is in progress.
func (p *Pipeline) BackfillRunning() bool {
	return p.backfillRunning.Load()
}

// ProcessLive runs the live ingestion path for one incoming message.
// Duplicate suppression is keyed by message identity: a message already in
// the seen set is skipped outright, with no re-classification or
// re-extraction. The identity is recorded only after successful ingestion.
func (p *Pipeline) ProcessLive(ctx context.Context, msg *database.RawMessage) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.logger.With("path", "live", "chat_id", msg.ChatID, "message_id", msg.MessageID)

	key := seenKey(msg.ChatID, msg.MessageID)
	if p.seen.Contains(key) {
		log.DebugContext(ctx, "Message already processed, skipping")
		return Outcome{Status: StatusSkipped, Reason: ReasonDuplicate}
	}

	admin, outcome := p.checkAdmin(ctx, msg.ChatID, log)
	if !admin {
		return outcome
	}

	outcome = p.classifyExtractPersist(ctx, msg, nil, log)
	if outcome.Status == StatusIngested {
		p.seen.Add(key)
	}
	return outcome
}

// checkAdmin resolves the bot's membership in the chat. The returned bool is
// true only when processing should continue.
func (p *Pipeline) checkAdmin(ctx context.Context, chatID int64, log *slog.Logger) (bool, Outcome) {
	var admin bool
	err := p.withRetry(ctx, func(callCtx context.Context) error {
		var checkErr error
		admin, checkErr = p.source.IsBotAdmin(callCtx, chatID)
		return checkErr
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to resolve bot membership", "error", err)
		return false, Outcome{Status: StatusFailed, Reason: failReason(err, ReasonSourceError)}
	}
	if !admin {
		log.DebugContext(ctx, "Bot is not an administrator in this chat, skipping")
		return false, Outcome{Status: StatusSkipped, Reason: ReasonNotAdmin}
	}
	return true, Outcome{}
}

// classifyExtractPersist runs the shared tail of both ingestion paths.
// checkDuplicate, when non-nil, is consulted after extraction with the
// derived draft (the backfill strategy); a nil check means identity-based
// dedup already happened (the live strategy).
func (p *Pipeline) classifyExtractPersist(
	ctx context.Context,
	msg *database.RawMessage,
	checkDuplicate func(context.Context, *database.Listing) (bool, error),
	log *slog.Logger,
) Outcome {
	result := p.classifier.Classify(msg.Text)
	if !result.IsSale {
		log.DebugContext(ctx, "Not a sale post, skipping")
		return Outcome{Status: StatusSkipped, Reason: ReasonNotSale}
	}
	if result.IsSoldOut {
		log.DebugContext(ctx, "Sold-out post, skipping")
		return Outcome{Status: StatusSkipped, Reason: ReasonSoldOut}
	}

	listing, err := p.extractor.Extract(ctx, msg)
	degraded := false
	switch {
	case errors.Is(err, extract.ErrImageUpload):
		// The draft is still usable; persist it without the image.
		log.WarnContext(ctx, "Image upload failed, ingesting without image", "error", err)
		degraded = true
	case err != nil:
		log.ErrorContext(ctx, "Extraction failed", "error", err)
		return Outcome{Status: StatusFailed, Reason: failReason(err, ReasonSourceError)}
	}

	if checkDuplicate != nil {
		dup, err := checkDuplicate(ctx, listing)
		if err != nil {
			log.ErrorContext(ctx, "Duplicate check failed", "error", err)
			return Outcome{Status: StatusFailed, Reason: failReason(err, ReasonStoreError)}
		}
		if dup {
			log.DebugContext(ctx, "Listing already persisted, skipping",
				"title", listing.Title, "shop", listing.ShopName)
			return Outcome{Status: StatusSkipped, Reason: ReasonDuplicate}
		}
	}

	err = p.withRetry(ctx, func(callCtx context.Context) error {
		return p.store.InsertListing(callCtx, listing)
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to persist listing", "title", listing.Title, "error", err)
		return Outcome{Status: StatusFailed, Reason: failReason(err, ReasonStoreError)}
	}

	log.InfoContext(ctx, "Listing ingested",
		"title", listing.Title, "price", listing.Price,
		"category", listing.Category, "shop", listing.ShopName, "degraded", degraded)
	return Outcome{Status: StatusIngested, Degraded: degraded}
}

// withRetry runs fn under the pipeline's external-call timeout and retries
// once on failure.
func (p *Pipeline) withRetry(ctx context.Context, fn func(context.Context) error) error {
	run := func() error {
		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return fn(callCtx)
	}

	err := run()
	if err == nil || ctx.Err() != nil {
		return err
	}
	return run()
}

func failReason(err error, fallback Reason) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return fallback
}

func seenKey(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}
