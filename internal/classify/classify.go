// Package classify decides whether free-form chat text is a product-for-sale
// announcement and whether it advertises sold-out inventory. Classification
// is a pure function of the normalized text and the configured keyword
// lexicons; it holds no state between calls.
package classify

import (
	"strings"

	"github.com/okravets/baraholka/internal/config"
)

// Result is the outcome of classifying a single message text.
// Both flags may be true at once; sold-out sale posts are filtered
// downstream.
type Result struct {
	IsSale    bool
	IsSoldOut bool
}

// Classifier matches normalized text against configured keyword sets using
// case-insensitive substring containment.
type Classifier struct {
	saleKeywords    []string
	soldOutKeywords []string
}

// New creates a Classifier from the configured lexicons. Keywords are
// normalized once at construction.
func New(cfg config.ClassifierConfig) *Classifier {
	return &Classifier{
		saleKeywords:    normalizeAll(cfg.SaleKeywords),
		soldOutKeywords: normalizeAll(cfg.SoldOutKeywords),
	}
}

// Normalize lowercases text and trims leading and trailing whitespace.
// Empty input yields empty output.
func Normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(text))
}

// Classify normalizes text once and evaluates both keyword sets.
func (c *Classifier) Classify(text string) Result {
	normalized := Normalize(text)
	return Result{
		IsSale:    containsAny(normalized, c.saleKeywords),
		IsSoldOut: containsAny(normalized, c.soldOutKeywords),
	}
}

// IsSalePost reports whether text contains at least one sale keyword.
func (c *Classifier) IsSalePost(text string) bool {
	return containsAny(Normalize(text), c.saleKeywords)
}

// IsSoldOut reports whether text contains at least one unavailability
// keyword. Independent of IsSalePost.
func (c *Classifier) IsSoldOut(text string) bool {
	return containsAny(Normalize(text), c.soldOutKeywords)
}

func containsAny(normalized string, keywords []string) bool {
	if normalized == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, Normalize(kw))
	}
	return out
}
