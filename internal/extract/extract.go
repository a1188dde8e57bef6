// Package extract derives structured listing drafts from unstructured chat
// messages: title, price token, category, seller, shop, and an optional
// uploaded image.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/okravets/baraholka/internal/classify"
	"github.com/okravets/baraholka/internal/config"
	"github.com/okravets/baraholka/internal/database"
)

// PriceUnknown is the sentinel price token used when no price pattern
// matches the message text.
const PriceUnknown = "Unknown"

// SentinelUnknown is the sentinel for absent seller handles and chat titles.
const SentinelUnknown = "unknown"

// CategoryOther is the fallback category when no keyword rule matches.
const CategoryOther = "other"

// ErrImageUpload marks a draft whose photo could not be downloaded or
// uploaded. The draft itself is still valid; callers decide whether to
// persist it without an image.
var ErrImageUpload = errors.New("image upload failed")

// PhotoDownloader fetches photo bytes from the message transport.
type PhotoDownloader interface {
	DownloadPhoto(ctx context.Context, fileID string) (data []byte, mimeType string, err error)
}

// ImageUploader persists image bytes and returns a public URL.
type ImageUploader interface {
	StoreImage(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// Extractor turns raw messages into listing drafts. Category rules are
// evaluated in their configured order; the first keyword found in the text
// wins, so resolution is deterministic.
type Extractor struct {
	titleMaxLen int
	priceRe     *regexp.Regexp
	categories  []config.CategoryRule
	photos      PhotoDownloader
	images      ImageUploader
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates an Extractor from the configured extraction rules. The price
// pattern is one or more digits, optional whitespace, then one of the
// configured price units, matched case-insensitively anywhere in the text.
func New(cfg config.ExtractorConfig, timeout time.Duration, photos PhotoDownloader, images ImageUploader, logger *slog.Logger) (*Extractor, error) {
	if len(cfg.PriceUnits) == 0 {
		return nil, fmt.Errorf("extractor requires at least one price unit")
	}

	quoted := make([]string, 0, len(cfg.PriceUnits))
	for _, unit := range cfg.PriceUnits {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(unit)))
	}
	priceRe, err := regexp.Compile(`(?i)\d+\s*(?:` + strings.Join(quoted, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile price pattern: %w", err)
	}

	categories := make([]config.CategoryRule, 0, len(cfg.Categories))
	for _, rule := range cfg.Categories {
		categories = append(categories, config.CategoryRule{
			Keyword:  classify.Normalize(rule.Keyword),
			Category: rule.Category,
		})
	}

	titleMaxLen := cfg.TitleMaxLen
	if titleMaxLen <= 0 {
		titleMaxLen = 50
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		titleMaxLen: titleMaxLen,
		priceRe:     priceRe,
		categories:  categories,
		photos:      photos,
		images:      images,
		timeout:     timeout,
		logger:      logger.With("component", "extractor"),
	}, nil
}

// Extract derives a listing draft from a raw message. Missing optional
// fields degrade to sentinel values and never abort extraction. If the
// message carries a photo and the download or upload fails, Extract returns
// the draft with an empty image URL together with an error wrapping
// ErrImageUpload.
func (e *Extractor) Extract(ctx context.Context, msg *database.RawMessage) (*database.Listing, error) {
	if msg == nil {
		return nil, fmt.Errorf("cannot extract from nil message")
	}

	listing := &database.Listing{
		Title:          e.Title(msg.Text),
		Description:    msg.Text,
		Price:          e.PriceToken(msg.Text),
		Category:       e.Category(msg.Text),
		SellerUsername: orSentinel(msg.SenderUsername),
		ShopName:       orSentinel(msg.ChatTitle),
		CreatedAt:      msg.SentAt.UTC(),
	}

	if msg.PhotoFileID == "" {
		return listing, nil
	}

	url, err := e.uploadPhoto(ctx, listing.Title, msg)
	if err != nil {
		e.logger.WarnContext(ctx, "Proceeding without image",
			"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
		return listing, fmt.Errorf("%w: %v", ErrImageUpload, err)
	}
	listing.ImageURL = url

	return listing, nil
}

// Title returns the first newline-delimited line of text, truncated to the
// configured rune limit. Empty text yields an empty title.
func (e *Extractor) Title(text string) string {
	line := text
	if idx := strings.IndexByte(line, '\n'); idx != -1 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	runes := []rune(line)
	if len(runes) > e.titleMaxLen {
		return string(runes[:e.titleMaxLen])
	}
	return line
}

// PriceToken returns the first price match in text, or PriceUnknown.
func (e *Extractor) PriceToken(text string) string {
	if match := e.priceRe.FindString(text); match != "" {
		return match
	}
	return PriceUnknown
}

// Category resolves the listing category by scanning the ordered keyword
// rules; the first rule whose keyword occurs in the text wins.
func (e *Extractor) Category(text string) string {
	normalized := classify.Normalize(text)
	for _, rule := range e.categories {
		if rule.Keyword != "" && strings.Contains(normalized, rule.Keyword) {
			return rule.Category
		}
	}
	return CategoryOther
}

// uploadPhoto downloads the highest-resolution photo variant recorded for
// the message and hands it to the image store. Each external call runs under
// a timeout with a single retry.
func (e *Extractor) uploadPhoto(ctx context.Context, title string, msg *database.RawMessage) (string, error) {
	if e.photos == nil || e.images == nil {
		return "", fmt.Errorf("no photo transport configured")
	}

	var data []byte
	var mimeType string
	err := withRetry(ctx, e.timeout, func(callCtx context.Context) error {
		var dlErr error
		data, mimeType, dlErr = e.photos.DownloadPhoto(callCtx, msg.PhotoFileID)
		return dlErr
	})
	if err != nil {
		return "", fmt.Errorf("photo download: %w", err)
	}

	name := ObjectName(title, msg.PhotoUniqueID, mimeType)

	var url string
	err = withRetry(ctx, e.timeout, func(callCtx context.Context) error {
		var upErr error
		url, upErr = e.images.StoreImage(callCtx, data, name, mimeType)
		return upErr
	})
	if err != nil {
		return "", fmt.Errorf("image store: %w", err)
	}

	return url, nil
}

// ObjectName builds a collision-free object name from the listing title and
// the transport's unique file identifier.
func ObjectName(title, uniqueID, mimeType string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "listing"
	}

	ext := ".bin"
	switch mimeType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}

	return slug + "_" + uniqueID + ext
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

func orSentinel(s string) string {
	if strings.TrimSpace(s) == "" {
		return SentinelUnknown
	}
	return s
}

// withRetry runs fn under a timeout and retries once on failure.
func withRetry(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	run := func() error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
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
