package classify_test

import (
	"testing"

	"github.com/okravets/baraholka/internal/classify"
	"github.com/okravets/baraholka/internal/config"
)

func defaultClassifier() *classify.Classifier {
	return classify.New(config.ClassifierConfig{
		SaleKeywords:    []string{"продам", "продаж", "купити", "ціна", "грн", "$"},
		SoldOutKeywords: []string{"продано", "sold out", "немає в наявності", "закінчилось"},
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   \t\n", expected: ""},
		{name: "mixed case", input: "Продам КУРТКУ", expected: "продам куртку"},
		{name: "surrounding whitespace", input: "  Ціна 100 грн  ", expected: "ціна 100 грн"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classify.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	c := defaultClassifier()

	tests := []struct {
		name        string
		input       string
		wantSale    bool
		wantSoldOut bool
	}{
		{name: "empty string", input: "", wantSale: false, wantSoldOut: false},
		{name: "dress with price", input: "Сукня - 350 грн", wantSale: true, wantSoldOut: false},
		{name: "sold sneakers without sale keyword", input: "Кросівки продано", wantSale: false, wantSoldOut: true},
		{name: "greeting", input: "Привіт, як справи?", wantSale: false, wantSoldOut: false},
		{name: "dollar sign", input: "Jacket 20$", wantSale: true, wantSoldOut: false},
		{name: "uppercase keyword", input: "ПРОДАМ велосипед", wantSale: true, wantSoldOut: false},
		{name: "english sold out", input: "Nike Air, ціна 2000 грн, SOLD OUT", wantSale: true, wantSoldOut: true},
		{name: "sold out sale post", input: "Продам пальто, вже закінчилось", wantSale: true, wantSoldOut: true},
		{name: "out of stock phrase", input: "цього товару немає в наявності", wantSale: false, wantSoldOut: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := c.Classify(tt.input)
			if got.IsSale != tt.wantSale {
				t.Errorf("Classify(%q).IsSale = %v, want %v", tt.input, got.IsSale, tt.wantSale)
			}
			if got.IsSoldOut != tt.wantSoldOut {
				t.Errorf("Classify(%q).IsSoldOut = %v, want %v", tt.input, got.IsSoldOut, tt.wantSoldOut)
			}

			if c.IsSalePost(tt.input) != tt.wantSale {
				t.Errorf("IsSalePost(%q) disagrees with Classify", tt.input)
			}
			if c.IsSoldOut(tt.input) != tt.wantSoldOut {
				t.Errorf("IsSoldOut(%q) disagrees with Classify", tt.input)
			}
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	t.Parallel()

	c := defaultClassifier()
	input := "Продам кросівки, 1200 грн, немає в наявності"

	first := c.Classify(input)
	for i := 0; i < 10; i++ {
		if got := c.Classify(input); got != first {
			t.Fatalf("Classify not idempotent: run %d got %+v, want %+v", i, got, first)
		}
	}
}

func TestSoldOutOverridesSaleKeywords(t *testing.T) {
	t.Parallel()

	c := defaultClassifier()

	// Any text containing a sold-out keyword classifies as sold out no
	// matter what sale keywords are present.
	inputs := []string{
		"продано",
		"Продам сукню - продано",
		"ціна 500 грн, закінчилось",
		"купити вже не можна, sold out",
	}
	for _, input := range inputs {
		if !c.IsSoldOut(input) {
			t.Errorf("IsSoldOut(%q) = false, want true", input)
		}
	}
}
