package extract

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Similarity thresholds for vendor matching. They are empirical and tunable.
const (
	DefaultLineThreshold = 0.5
	DefaultWordThreshold = 0.6
	minFuzzyWordRunes    = 4
)

// KnownVendor is a canonical vendor name plus the spellings seen on receipts.
type KnownVendor struct {
	Name       string
	Variations []string
}

// DefaultVendors is the curated known-vendor table.
var DefaultVendors = []KnownVendor{
	{Name: "Walmart", Variations: []string{"walmart", "wal-mart", "wal mart", "walmart supercenter"}},
	{Name: "Target", Variations: []string{"target", "super target"}},
	{Name: "Costco", Variations: []string{"costco", "costco wholesale"}},
	{Name: "Kroger", Variations: []string{"kroger"}},
	{Name: "Safeway", Variations: []string{"safeway"}},
	{Name: "Whole Foods", Variations: []string{"whole foods", "whole foods market", "wholefoods"}},
	{Name: "Trader Joe's", Variations: []string{"trader joe's", "trader joes"}},
	{Name: "Aldi", Variations: []string{"aldi"}},
	{Name: "Publix", Variations: []string{"publix"}},
	{Name: "Starbucks", Variations: []string{"starbucks", "starbucks coffee"}},
	{Name: "McDonald's", Variations: []string{"mcdonald's", "mcdonalds", "mc donalds"}},
	{Name: "Subway", Variations: []string{"subway"}},
	{Name: "Chipotle", Variations: []string{"chipotle", "chipotle mexican grill"}},
	{Name: "Dunkin'", Variations: []string{"dunkin", "dunkin donuts"}},
	{Name: "CVS", Variations: []string{"cvs", "cvs pharmacy"}},
	{Name: "Walgreens", Variations: []string{"walgreens"}},
	{Name: "Home Depot", Variations: []string{"home depot", "the home depot"}},
	{Name: "Lowe's", Variations: []string{"lowe's", "lowes"}},
	{Name: "Best Buy", Variations: []string{"best buy", "bestbuy"}},
	{Name: "Amazon", Variations: []string{"amazon", "amazon.com"}},
	{Name: "Shell", Variations: []string{"shell", "shell oil"}},
	{Name: "Chevron", Variations: []string{"chevron"}},
	{Name: "ExxonMobil", Variations: []string{"exxon", "exxonmobil", "exxon mobil"}},
	{Name: "7-Eleven", Variations: []string{"7-eleven", "7 eleven", "seven eleven"}},
	{Name: "IKEA", Variations: []string{"ikea"}},
	{Name: "Uber Eats", Variations: []string{"uber eats", "ubereats"}},
	{Name: "DoorDash", Variations: []string{"doordash", "door dash"}},
}

// VendorMatch is the best table hit for a piece of text.
type VendorMatch struct {
	Name       string
	Variation  string
	Similarity float64
}

// VendorMatcher fuzzy-matches text against a known-vendor table.
type VendorMatcher struct {
	vendors       []KnownVendor
	lineThreshold float64
	wordThreshold float64
}

func NewVendorMatcher(vendors []KnownVendor, lineThreshold, wordThreshold float64) *VendorMatcher {
	if len(vendors) == 0 {
		vendors = DefaultVendors
	}
	if lineThreshold <= 0 {
		lineThreshold = DefaultLineThreshold
	}
	if wordThreshold <= 0 {
		wordThreshold = DefaultWordThreshold
	}
	return &VendorMatcher{vendors: vendors, lineThreshold: lineThreshold, wordThreshold: wordThreshold}
}

// Match returns the highest-similarity vendor for a single line. Whole-word
// containment of a variation scores 1. Otherwise the line is compared as a
// whole and then word by word against single-word variations.
func (m *VendorMatcher) Match(line string) (VendorMatch, bool) {
	norm := normalizeVendorText(line)
	if norm == "" {
		return VendorMatch{}, false
	}
	padded := " " + norm + " "
	words := strings.Fields(norm)

	var best VendorMatch
	for _, v := range m.vendors {
		for _, variation := range v.Variations {
			nv := normalizeVendorText(variation)
			if nv == "" {
				continue
			}
			if strings.Contains(padded, " "+nv+" ") {
				// longer containment wins ties, so "walmart supercenter" beats "walmart"
				if best.Similarity < 1 || len(nv) > len(normalizeVendorText(best.Variation)) {
					best = VendorMatch{Name: v.Name, Variation: variation, Similarity: 1}
				}
				continue
			}
			if s := similarity(norm, nv); s >= m.lineThreshold && s > best.Similarity {
				best = VendorMatch{Name: v.Name, Variation: variation, Similarity: s}
			}
			if strings.Contains(nv, " ") {
				continue
			}
			for _, w := range words {
				if len([]rune(w)) < minFuzzyWordRunes {
					continue
				}
				if s := similarity(w, nv); s >= m.wordThreshold && s > best.Similarity {
					best = VendorMatch{Name: v.Name, Variation: variation, Similarity: s}
				}
			}
		}
	}
	return best, best.Name != ""
}

// similarity is 1 - editDistance/maxLen, in [0,1].
func similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// normalizeVendorText lowercases and turns punctuation other than
// apostrophes and ampersands into spaces.
func normalizeVendorText(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '&':
			return r
		case r == '’':
			return '\''
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
