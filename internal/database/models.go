package database

import "time"

// Listing is a persisted product-for-sale announcement derived from a chat
// message. Uniqueness is enforced at the application level by a
// (title, shop_name) equality check before insert, not by a storage-level
// constraint.
type Listing struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Title          string `db:"title"`
	Description    string `db:"description"`
	Price          string `db:"price"`
	Category       string `db:"category"`
	ImageURL       string `db:"image_url"`
	SellerUsername string `db:"seller_username"`
	ShopName       string `db:"shop_name"`
}

// RawMessage is a journal entry for a message the bot has seen in a chat.
// The journal backs the backfill history scan: the Bot API cannot fetch
// arbitrary chat history, so the bot replays its own record instead.
type RawMessage struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	ChatID         int64     `db:"chat_id"`
	MessageID      int       `db:"message_id"`
	Text           string    `db:"text"`
	PhotoFileID    string    `db:"photo_file_id"`
	PhotoUniqueID  string    `db:"photo_unique_id"`
	PhotoWidth     int       `db:"photo_width"`
	PhotoHeight    int       `db:"photo_height"`
	SenderUsername string    `db:"sender_username"`
	ChatTitle      string    `db:"chat_title"`
	SentAt         time.Time `db:"sent_at"`
}
