package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/okravets/baraholka/internal/database"
)

const maxPhotoBytes = 10 * 1024 * 1024

// Source adapts the Telegram Bot API and the raw message journal to the
// message source the ingestion pipeline consumes. History iteration reads from
// the journal because the Bot API offers no way to page through old chat
// messages.
type Source struct {
	api    *bot.Bot
	token  string
	botID  int64
	store  database.Store
	logger *slog.Logger
}

// NewSource creates a message source backed by the given bot instance and
// journal store. botID is the bot's own user ID as returned by GetMe.
func NewSource(api *bot.Bot, token string, botID int64, store database.Store, logger *slog.Logger) (*Source, error) {
	if api == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		api:    api,
		token:  token,
		botID:  botID,
		store:  store,
		logger: logger.With("component", "telegram_source"),
	}, nil
}

// IsBotAdmin reports whether the bot is an owner or administrator of the chat.
func (s *Source) IsBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	member, err := s.api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: s.botID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}

	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator:
		return true, nil
	default:
		return false, nil
	}
}

// DownloadPhoto retrieves file data and detects the MIME type.
func (s *Source) DownloadPhoto(ctx context.Context, fileID string) (data []byte, mimeType string, err error) {
	if fileID == "" {
		return nil, "", fmt.Errorf("empty fileID provided")
	}
	if ctx.Err() != nil {
		return nil, "", fmt.Errorf("context cancelled before file download: %w", ctx.Err())
	}

	fileObj, err := s.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file: %w", err)
	}
	if fileObj.FilePath == "" {
		return nil, "", fmt.Errorf("empty file path returned from Telegram")
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", s.token, fileObj.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("received empty file data")
	}

	mimeType = http.DetectContentType(data)

	return data, mimeType, nil
}

// IterateHistory returns up to limit of the most recent journaled messages
// for the chat, newest first.
func (s *Source) IterateHistory(ctx context.Context, chatID int64, limit int) ([]*database.RawMessage, error) {
	messages, err := s.store.RecentRawMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read message journal: %w", err)
	}

	s.logger.DebugContext(ctx, "Loaded journaled history", "chat_id", chatID, "count", len(messages))

	return messages, nil
}

// SendMessage sends a plain text message to the chat.
func (s *Source) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
