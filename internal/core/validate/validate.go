// Package validate cleans and bounds-checks extracted receipt fields and
// computes the confidence used downstream.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

const (
	MaxAmount      = 10000.0
	minVendorRunes = 2
	minYear        = 2000
	maxYear        = 2050
)

// Confidence weights applied after normalization.
const (
	BaseConfidence   = 0.5
	AmountConfidence = 0.3
	VendorConfidence = 0.2
	DateConfidence   = 0.1
)

var (
	vendorBlocklist = map[string]struct{}{
		"null":          {},
		"unknown":       {},
		"order details": {},
		"ship to":       {},
		"bill to":       {},
		"invoice":       {},
		"receipt":       {},
		"thank you":     {},
		"customer copy": {},
	}
	rePageN    = regexp.MustCompile(`(?i)^page\s*\d+$`)
	reISODate  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reAmountOK = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// Normalize applies the per-field rules and recomputes confidence. A rejected
// field becomes absent; the others are unaffected. Normalize is idempotent.
func Normalize(in entity.ExtractedFields) entity.ExtractedFields {
	out := in.Clone()

	out.Vendor = nil
	if in.Vendor != nil {
		if v, ok := Vendor(*in.Vendor); ok {
			out.Vendor = &v
		}
	}

	out.Date = nil
	if in.Date != nil {
		if d, ok := Date(*in.Date); ok {
			out.Date = &d
		}
	}

	out.Amount = nil
	if in.Amount != nil {
		if a, ok := Amount(*in.Amount); ok {
			out.Amount = &a
		}
	}

	if out.Items == nil {
		out.Items = []entity.LineItem{}
	}
	out.Confidence = Confidence(out)
	return out
}

// Confidence is 0.5 plus the presence bonuses, capped at 1.
func Confidence(f entity.ExtractedFields) float64 {
	c := BaseConfidence
	if f.Amount != nil {
		c += AmountConfidence
	}
	if f.Vendor != nil {
		c += VendorConfidence
	}
	if f.Date != nil {
		c += DateConfidence
	}
	return math.Round(min(c, 1)*100) / 100
}

// Vendor trims and collapses whitespace and rejects structural false positives.
func Vendor(s string) (string, bool) {
	v := strings.Join(strings.Fields(s), " ")
	if len([]rune(v)) < minVendorRunes {
		return "", false
	}
	lower := strings.ToLower(v)
	if _, blocked := vendorBlocklist[lower]; blocked {
		return "", false
	}
	if rePageN.MatchString(lower) {
		return "", false
	}
	return v, true
}

// Date accepts only an exact YYYY-MM-DD string naming a real calendar day.
func Date(s string) (string, bool) {
	if !reISODate.MatchString(s) {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// Amount rounds to cents and rejects NaN, non-positive and oversized values.
func Amount(a float64) (float64, bool) {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, false
	}
	r := decimal.NewFromFloat(a).Round(2)
	if !r.IsPositive() || r.GreaterThan(decimal.NewFromFloat(MaxAmount)) {
		return 0, false
	}
	return r.InexactFloat64(), true
}

// CoerceAmount turns a decoded value (number or numeric string, optionally
// with a currency sign and thousands separators) into a validated amount.
func CoerceAmount(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return Amount(x)
	case float32:
		return Amount(float64(x))
	case int:
		return Amount(float64(x))
	case int64:
		return Amount(float64(x))
	case decimal.Decimal:
		return Amount(x.InexactFloat64())
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimLeft(s, "$£€ ")
		s = strings.ReplaceAll(s, ",", "")
		if !reAmountOK.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return Amount(f)
	default:
		return 0, false
	}
}

// coercedLayouts are the non-canonical forms CoerceDate understands.
var coercedLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// CoerceDate derives a canonical date from a time value or a date string in a
// few common layouts. Because the value is inferred, only years in
// [2000, 2050] are accepted.
func CoerceDate(v any) (string, bool) {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		s := strings.TrimSpace(x)
		parsed := false
		for _, layout := range coercedLayouts {
			if p, err := time.Parse(layout, s); err == nil {
				t, parsed = p, true
				break
			}
		}
		if !parsed {
			return "", false
		}
	default:
		return "", false
	}
	if t.IsZero() || t.Year() < minYear || t.Year() > maxYear {
		return "", false
	}
	return Date(t.Format(time.DateOnly))
}

// Describe is a short human summary used in logs and CLI output.
func Describe(f entity.ExtractedFields) string {
	str := func(p *string) string {
		if p == nil {
			return "-"
		}
		return *p
	}
	amount := "-"
	if f.Amount != nil {
		amount = strconv.FormatFloat(*f.Amount, 'f', 2, 64)
	}
	return fmt.Sprintf("vendor=%s date=%s amount=%s items=%d confidence=%.2f",
		str(f.Vendor), str(f.Date), amount, len(f.Items), f.Confidence)
}
