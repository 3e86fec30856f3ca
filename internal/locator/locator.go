// Package locator finds the raw coffee price row and the report date in the
// plain text of the board's daily market report.
package locator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mspro-labs/coffee-prices/internal/models"
)

const (
	// DefaultMinTokens is how many price tokens the winning line must carry:
	// a low and a high for each of the four grades.
	DefaultMinTokens = 8

	// DefaultFirstTokenFloor separates the price row from page numbers, dates
	// and reference codes. Arabica Parchment leads the row and has been the
	// highest-priced grade, comfortably above this value.
	DefaultFirstTokenFloor = 20000
)

// Thresholds tunes the price-row heuristic.
type Thresholds struct {
	MinTokens       int
	FirstTokenFloor int
}

// DefaultThresholds returns the calibrated thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinTokens: DefaultMinTokens, FirstTokenFloor: DefaultFirstTokenFloor}
}

var (
	reToken       = regexp.MustCompile(`\d{4,5}`)
	reKarnataka   = regexp.MustCompile(`(?i)Raw\s*Coffee\s*Price\s*\(Karnataka\)\s*as\s*on\s*(\d{1,2}[./]\d{1,2}[./]\d{4})`)
	reAsOnAnyDate = regexp.MustCompile(`(?i)as\s*on\s*(\d{1,2}[./]\d{1,2}[./]\d{4})`)
)

// Locator applies Thresholds to extracted document text.
type Locator struct {
	t Thresholds
}

// New builds a Locator. Zero fields in t fall back to the defaults.
func New(t Thresholds) *Locator {
	if t.MinTokens <= 0 {
		t.MinTokens = DefaultMinTokens
	}
	if t.FirstTokenFloor <= 0 {
		t.FirstTokenFloor = DefaultFirstTokenFloor
	}
	return &Locator{t: t}
}

// Locate pulls the price tokens and the report date out of text.
// A miss on either is reported through empty tokens or models.UnknownDate.
func (l *Locator) Locate(text string) models.Extraction {
	return models.Extraction{
		Tokens: l.FindPriceTokens(text),
		Date:   FindDate(text),
	}
}

// FindPriceTokens returns the 4-5 digit runs of the first line that looks
// like the price row, or nil when no line qualifies.
func (l *Locator) FindPriceTokens(text string) []string {
	for _, line := range strings.Split(text, "\n") {
		tokens := reToken.FindAllString(line, -1)
		if len(tokens) < l.t.MinTokens {
			continue
		}
		first, err := strconv.Atoi(tokens[0])
		if err != nil || first <= l.t.FirstTokenFloor {
			continue
		}
		return tokens
	}
	return nil
}

// FindDate returns the report date as printed, preferring the Karnataka
// heading over any other "as on" phrase.
func FindDate(text string) string {
	if m := reKarnataka.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := reAsOnAnyDate.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return models.UnknownDate
}

// BuildQuotes pairs tokens in order onto the four grades. Fewer than eight
// tokens yields four "N/A" quotes; tokens past the eighth are ignored.
func BuildQuotes(tokens []string) []models.PriceQuote {
	quotes := make([]models.PriceQuote, 0, len(models.Grades))
	ok := len(tokens) >= 2*len(models.Grades)
	for i, g := range models.Grades {
		price := models.NotAvailable
		if ok {
			price = formatRange(tokens[2*i], tokens[2*i+1])
		}
		quotes = append(quotes, models.PriceQuote{ID: g.ID, Name: g.Name, Price: price})
	}
	return quotes
}

func formatRange(low, high string) string {
	return fmt.Sprintf("₹ %s - %s", low, high)
}
