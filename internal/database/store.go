package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations. Methods accept a
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertListing inserts a new listing record.
	InsertListing(ctx context.Context, listing *Listing) error

	// FindListingByTitleAndShop retrieves a listing with matching title and
	// shop name. Returns nil, nil if no such listing exists.
	FindListingByTitleAndShop(ctx context.Context, title, shop string) (*Listing, error)

	// CountListings returns the total number of persisted listings.
	CountListings(ctx context.Context) (int64, error)

	// SaveRawMessage appends a message to the raw message journal.
	SaveRawMessage(ctx context.Context, msg *RawMessage) error

	// RecentRawMessages retrieves the most recent 'limit' journal entries for
	// a chat, newest first.
	RecentRawMessages(ctx context.Context, chatID int64, limit int) ([]*RawMessage, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertListing inserts a new listing record. The caller is responsible for
// the (title, shop) duplicate check; the table carries no unique constraint.
func (s *sqlxStore) InsertListing(ctx context.Context, listing *Listing) error {
	if listing == nil {
		return fmt.Errorf("cannot insert nil listing")
	}
	if listing.Category == "" {
		return fmt.Errorf("listing must have a category")
	}

	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now

	query := `
        INSERT INTO listings (title, description, price, category, image_url,
                              seller_username, shop_name, created_at, updated_at)
        VALUES (:title, :description, :price, :category, :image_url,
                :seller_username, :shop_name, :created_at, :updated_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, listing)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting listing",
			"title", listing.Title, "shop", listing.ShopName, "error", err)
		return fmt.Errorf("failed to insert listing %q: %w", listing.Title, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		listing.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Listing inserted",
		"listing_id", listing.ID, "title", listing.Title, "shop", listing.ShopName)
	return nil
}

// FindListingByTitleAndShop retrieves a listing with matching title and shop
// name. Returns nil, nil if no such listing exists.
func (s *sqlxStore) FindListingByTitleAndShop(ctx context.Context, title, shop string) (*Listing, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var listing Listing
	query := `SELECT id, created_at, updated_at, title, description, price, category,
	                 image_url, seller_username, shop_name
	          FROM listings WHERE title = ? AND shop_name = ? LIMIT 1`

	err := s.db.GetContext(ctx, &listing, query, title, shop)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error querying listing by title and shop",
			"title", title, "shop", shop, "error", err)
		return nil, fmt.Errorf("failed to query listing %q/%q: %w", title, shop, err)
	}

	return &listing, nil
}

func (s *sqlxStore) CountListings(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM listings`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting listings", "error", err)
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}

// SaveRawMessage appends a message to the raw message journal.
func (s *sqlxStore) SaveRawMessage(ctx context.Context, msg *RawMessage) error {
	if msg == nil {
		return fmt.Errorf("cannot save nil raw message")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("raw message must have a non-zero chat_id")
	}
	if msg.MessageID == 0 {
		return fmt.Errorf("raw message must have a non-zero message_id")
	}

	msg.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO raw_messages (chat_id, message_id, text, photo_file_id,
                                  photo_unique_id, photo_width, photo_height,
                                  sender_username, chat_title, sent_at, created_at)
        VALUES (:chat_id, :message_id, :text, :photo_file_id,
                :photo_unique_id, :photo_width, :photo_height,
                :sender_username, :chat_title, :sent_at, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving raw message",
			"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return fmt.Errorf("failed to save raw message (chat %d, msg %d): %w", msg.ChatID, msg.MessageID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		msg.ID = uint(id)
	}

	return nil
}

// RecentRawMessages retrieves the most recent 'limit' journal entries for a
// chat, newest first.
func (s *sqlxStore) RecentRawMessages(ctx context.Context, chatID int64, limit int) ([]*RawMessage, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if limit <= 0 {
		limit = 1000
		s.logger.DebugContext(ctx, "Invalid limit provided, using default",
			"chat_id", chatID, "default_limit", limit)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []*RawMessage
	query := `
        SELECT id, created_at, chat_id, message_id, text, photo_file_id,
               photo_unique_id, photo_width, photo_height, sender_username,
               chat_title, sent_at
        FROM raw_messages
        WHERE chat_id = ?
        ORDER BY sent_at DESC, message_id DESC
        LIMIT ?;
    `

	err := s.db.SelectContext(ctx, &messages, query, chatID, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching raw messages",
			"chat_id", chatID, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent raw messages",
			"chat_id", chatID, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get raw messages for chat %d: %w", chatID, err)
	}

	return messages, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	return nil
}
