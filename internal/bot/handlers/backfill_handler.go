package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okravets/baraholka/internal/pipeline"
)

// NewBackfillHandler returns a handler for the /backfill command. It scans the
// recorded history of the current chat and reports ingested/skipped/failed
// counts when the scan finishes.
func NewBackfillHandler(deps HandlerDeps) bot.HandlerFunc {
	return backfillHandler{deps}.Handle
}

type backfillHandler struct {
	deps HandlerDeps
}

func (h backfillHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "backfill")

	if update.Message == nil {
		log.WarnContext(ctx, "Backfill handler received update with nil message", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /backfill command", "chat_id", chatID)

	summary, err := h.deps.Pipeline.Backfill(ctx, chatID)
	if err != nil {
		text := h.deps.Config.Messages.GeneralError
		if errors.Is(err, pipeline.ErrBackfillRunning) {
			text = h.deps.Config.Messages.BackfillBusy
			log.InfoContext(ctx, "Backfill already running, rejecting request", "chat_id", chatID)
		} else {
			log.ErrorContext(ctx, "Backfill failed", "error", err, "chat_id", chatID)
		}

		if _, sendErr := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); sendErr != nil {
			log.ErrorContext(ctx, "Failed to send backfill reply", "error", sendErr, "chat_id", chatID)
		}
		return
	}

	log.InfoContext(ctx, "Backfill finished",
		"chat_id", chatID,
		"scanned", summary.Scanned,
		"ingested", summary.Ingested,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	text := fmt.Sprintf(h.deps.Config.Messages.BackfillDone, summary.Ingested, summary.Skipped, summary.Failed)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send backfill completion notice", "error", err, "chat_id", chatID)
	}
}
