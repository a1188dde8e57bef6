package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okravets/baraholka/internal/database"
	"github.com/okravets/baraholka/internal/pipeline"
)

// NewIngestHandler creates the default handler that feeds every non-command
// message and channel post into the ingestion pipeline. The message is first
// recorded to the raw message journal so that backfill can replay it later.
func NewIngestHandler(deps HandlerDeps) bot.HandlerFunc {
	return ingestHandler{deps}.Handle
}

type ingestHandler struct {
	deps HandlerDeps
}

func (h ingestHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "ingest")

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		log.DebugContext(ctx, "Ignoring update without message or channel post", "update_id", update.ID)
		return
	}

	raw := rawMessageFromTelegram(msg)
	if raw.Text == "" && raw.PhotoFileID == "" {
		log.DebugContext(ctx, "Ignoring message without text or photo",
			"chat_id", raw.ChatID, "message_id", raw.MessageID)
		return
	}

	// Journal first so the message survives for backfill even if live
	// processing fails. A journal failure must not block ingestion.
	if err := h.deps.Store.SaveRawMessage(ctx, raw); err != nil {
		log.ErrorContext(ctx, "Failed to journal message",
			"error", err, "chat_id", raw.ChatID, "message_id", raw.MessageID)
	}

	outcome := h.deps.Pipeline.ProcessLive(ctx, raw)

	switch outcome.Status {
	case pipeline.StatusIngested:
		log.InfoContext(ctx, "Message ingested",
			"chat_id", raw.ChatID, "message_id", raw.MessageID, "degraded", outcome.Degraded)
	case pipeline.StatusSkipped:
		log.DebugContext(ctx, "Message skipped",
			"chat_id", raw.ChatID, "message_id", raw.MessageID, "reason", outcome.Reason)
	case pipeline.StatusFailed:
		log.ErrorContext(ctx, "Message processing failed",
			"chat_id", raw.ChatID, "message_id", raw.MessageID, "reason", outcome.Reason)
	}
}

// rawMessageFromTelegram maps a Telegram message to a journal entry. For
// photo albums Telegram sends multiple sizes of the same photo; the largest
// rendition is kept.
func rawMessageFromTelegram(msg *models.Message) *database.RawMessage {
	raw := &database.RawMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
		ChatTitle: msg.Chat.Title,
		SentAt:    time.Unix(int64(msg.Date), 0).UTC(),
	}

	if raw.Text == "" {
		raw.Text = msg.Caption
	}

	if msg.From != nil {
		raw.SenderUsername = msg.From.Username
	}

	if best := largestPhoto(msg.Photo); best != nil {
		raw.PhotoFileID = best.FileID
		raw.PhotoUniqueID = best.FileUniqueID
		raw.PhotoWidth = best.Width
		raw.PhotoHeight = best.Height
	}

	return raw
}

func largestPhoto(sizes []models.PhotoSize) *models.PhotoSize {
	var best *models.PhotoSize
	for i := range sizes {
		if best == nil || sizes[i].Width*sizes[i].Height > best.Width*best.Height {
			best = &sizes[i]
		}
	}
	return best
}
