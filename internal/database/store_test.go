package database_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/okravets/baraholka/internal/database"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func sampleListing(title string) *database.Listing {
	return &database.Listing{
		Title:          title,
		Description:    title + "\nопис товару",
		Price:          "350 грн",
		Category:       "clothing",
		SellerUsername: "seller",
		ShopName:       "Baraholka",
	}
}

func TestInsertAndFindListing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	listing := sampleListing("Сукня - 350 грн")
	if err := store.InsertListing(ctx, listing); err != nil {
		t.Fatalf("InsertListing failed: %v", err)
	}
	if listing.ID == 0 {
		t.Error("InsertListing did not backfill the ID")
	}

	found, err := store.FindListingByTitleAndShop(ctx, "Сукня - 350 грн", "Baraholka")
	if err != nil {
		t.Fatalf("FindListingByTitleAndShop failed: %v", err)
	}
	if found == nil {
		t.Fatal("inserted listing not found")
	}
	if found.Price != "350 грн" || found.Category != "clothing" || found.SellerUsername != "seller" {
		t.Errorf("found listing fields = %q/%q/%q", found.Price, found.Category, found.SellerUsername)
	}
}

func TestFindListingAbsentReturnsNil(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	found, err := store.FindListingByTitleAndShop(context.Background(), "немає", "Baraholka")
	if err != nil {
		t.Fatalf("FindListingByTitleAndShop failed: %v", err)
	}
	if found != nil {
		t.Errorf("found = %+v, want nil for absent listing", found)
	}
}

func TestCountListings(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.InsertListing(ctx, sampleListing(fmt.Sprintf("Товар %d", i))); err != nil {
			t.Fatalf("InsertListing %d failed: %v", i, err)
		}
	}

	count, err := store.CountListings(ctx)
	if err != nil {
		t.Fatalf("CountListings failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountListings = %d, want 3", count)
	}
}

func TestInsertListingRejectsMissingCategory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	listing := sampleListing("Без категорії")
	listing.Category = ""

	if err := store.InsertListing(context.Background(), listing); err == nil {
		t.Fatal("InsertListing succeeded without a category")
	}
}

func TestRawMessageJournalRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		msg := &database.RawMessage{
			ChatID:         -100200300,
			MessageID:      i,
			Text:           fmt.Sprintf("Продам товар %d - %d грн", i, i*100),
			SenderUsername: "seller",
			ChatTitle:      "Baraholka",
			SentAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveRawMessage(ctx, msg); err != nil {
			t.Fatalf("SaveRawMessage %d failed: %v", i, err)
		}
	}

	messages, err := store.RecentRawMessages(ctx, -100200300, 3)
	if err != nil {
		t.Fatalf("RecentRawMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}

	// Newest first.
	for i, wantID := range []int{5, 4, 3} {
		if messages[i].MessageID != wantID {
			t.Errorf("messages[%d].MessageID = %d, want %d", i, messages[i].MessageID, wantID)
		}
	}
}

func TestRecentRawMessagesScopedToChat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, chatID := range []int64{-1, -2} {
		msg := &database.RawMessage{
			ChatID:    chatID,
			MessageID: 1,
			Text:      "Продам крісло - 500 грн",
			SentAt:    time.Now().UTC(),
		}
		if err := store.SaveRawMessage(ctx, msg); err != nil {
			t.Fatalf("SaveRawMessage failed: %v", err)
		}
	}

	messages, err := store.RecentRawMessages(ctx, -1, 10)
	if err != nil {
		t.Fatalf("RecentRawMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("got %d messages for chat -1, want 1", len(messages))
	}
	if messages[0].ChatID != -1 {
		t.Errorf("ChatID = %d, want -1", messages[0].ChatID)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance failed: %v", err)
	}
}
