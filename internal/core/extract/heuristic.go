package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

const (
	maxAmount         = 10000.0
	maxItemPrice      = 100.0
	minItemPrice      = 0.01
	maxItems          = 8
	vendorSearchLines = 20
)

var (
	// two decimal digits, optional thousands separators
	reMoney = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2}`)

	reBoilerplate = regexp.MustCompile(`(?i)(\btel\b|phone|\bfax\b|www\.|https?:|\.com\b|@|\bvisa\b|mastercard|\bamex\b|discover|\bdebit\b|\bcredit\b|card\s*#|\bacct\b|account|\bauth\b|approval|\bref\b|reference|trans(action)?\s*(id|#|no)|terminal|store\s*#|\bcashier\b|\bchange\b|\bcash\b|tender|you saved|savings|\bpoints\b|member|survey|return policy|thank you)`)

	reTotalKeyword   = regexp.MustCompile(`(?i)(total|amount\s+due|balance)`)
	reSubtotal       = regexp.MustCompile(`(?i)sub\s*-?\s*total`)
	reTotalQualifier = regexp.MustCompile(`(?i)total\s+(tax|savings|saved|items?|discount|qty|quantity)`)

	// explicit labels in priority order
	reTotalLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgrand\s+total\b`),
		regexp.MustCompile(`(?i)\b(amount|balance|total)\s+due\b`),
		regexp.MustCompile(`(?i)\btotal\b`),
	}

	reDateNumeric = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})\b`)
	reDateISO     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)

	reItem        = regexp.MustCompile(`^(?:(\d{1,2})\s*[xX@]\s+)?(.+?)\s+\$?(\d+\.\d{2})$`)
	reItemExclude = regexp.MustCompile(`(?i)(total|\btax\b|\bvat\b|\bgst\b|payment|\bpaid\b|\bcash\b|\bchange\b|tender|\bcard\b|\bvisa\b|mastercard|debit|credit|balance|discount|coupon|savings|\bdue\b|\btip\b)`)
	reRealWord    = regexp.MustCompile(`[A-Za-z]{3,}`)

	reContact   = regexp.MustCompile(`(?i)(\btel\b|phone|\bfax\b|https?:|@|\d{3}[-.\s]\d{3}[-.\s]\d{4})`)
	reNonVendor = regexp.MustCompile(`(?i)(order|ship|deliver|invoice|receipt|total|subtotal|\bdate\b|\btime\b|\bqty\b|price|page\s+\d|customer|bill\s+to|\bcopy\b)`)
	rePriceOnly = regexp.MustCompile(`^[\s$£€]*[\d.,]+\s*$`)
)

// Heuristic is the regex and fuzzy-match strategy. It always works offline.
type Heuristic struct {
	vendors *VendorMatcher
}

func NewHeuristic(vendors *VendorMatcher) *Heuristic {
	if vendors == nil {
		vendors = NewVendorMatcher(nil, 0, 0)
	}
	return &Heuristic{vendors: vendors}
}

// Extract parses raw receipt text. Confidence is left for the caller.
func (h *Heuristic) Extract(text string) entity.ExtractedFields {
	lines := splitLines(text)
	fields := entity.ExtractedFields{Items: h.items(lines)}
	if a, ok := h.amount(lines); ok {
		fields.Amount = &a
	}
	if d, ok := h.date(text); ok {
		fields.Date = &d
	}
	if v, ok := h.vendor(lines); ok {
		fields.Vendor = &v
	}
	return fields
}

// amount applies the priority ladder: explicit total label, then keyword
// lines, then the largest figure in the document.
func (h *Heuristic) amount(lines []string) (float64, bool) {
	type candidate struct {
		value   float64
		keyword bool
	}
	var all []candidate
	bestRank, bestValue, found := len(reTotalLabels), 0.0, false

	for i, ln := range lines {
		rank, labelled := totalLabelRank(ln)
		// payment words sit on total lines too ("TOTAL 12.00 VISA")
		if !labelled && reBoilerplate.MatchString(ln) {
			continue
		}
		values := moneyValues(ln)
		for _, v := range values {
			all = append(all, candidate{value: v, keyword: reTotalKeyword.MatchString(ln) && !reTotalQualifier.MatchString(ln)})
		}
		if !labelled || rank > bestRank {
			continue
		}
		v, ok := lastOf(values)
		if !ok && i+1 < len(lines) && !reBoilerplate.MatchString(lines[i+1]) {
			// label alone on its line; amount printed underneath
			v, ok = lastOf(moneyValues(lines[i+1]))
		}
		if ok {
			// same rank: a later line wins, totals sit at the bottom
			bestRank, bestValue, found = rank, v, true
		}
	}
	if found {
		return bestValue, true
	}

	var kwMax, allMax float64
	for _, c := range all {
		if c.keyword && c.value > kwMax {
			kwMax = c.value
		}
		if c.value > allMax {
			allMax = c.value
		}
	}
	if kwMax > 0 {
		return kwMax, true
	}
	return allMax, allMax > 0
}

// totalLabelRank reports the priority of the explicit total label on ln.
// Subtotals and qualified totals ("TOTAL TAX") are not labels.
func totalLabelRank(ln string) (int, bool) {
	if reSubtotal.MatchString(ln) || reTotalQualifier.MatchString(ln) {
		return 0, false
	}
	for rank, re := range reTotalLabels {
		if re.MatchString(ln) {
			return rank, true
		}
	}
	return 0, false
}

// moneyValues returns the in-range money tokens on a line, in order.
func moneyValues(line string) []float64 {
	var out []float64
	for _, loc := range reMoney.FindAllStringIndex(line, -1) {
		if loc[0] > 0 && strings.ContainsRune("0123456789.,", rune(line[loc[0]-1])) {
			continue
		}
		if loc[1] < len(line) && (isDigit(line[loc[1]]) ||
			(strings.IndexByte(".,", line[loc[1]]) >= 0 && loc[1]+1 < len(line) && isDigit(line[loc[1]+1]))) {
			// part of a longer number or a dotted date
			continue
		}
		v, err := decimal.NewFromString(strings.ReplaceAll(line[loc[0]:loc[1]], ",", ""))
		if err != nil {
			continue
		}
		f := v.Round(2).InexactFloat64()
		if f <= 0 || f > maxAmount {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func lastOf(vs []float64) (float64, bool) {
	if len(vs) == 0 {
		return 0, false
	}
	return vs[len(vs)-1], true
}

// date returns the first date-like token in document order that forms a real
// calendar date, as YYYY-MM-DD. Numeric dates are read month first unless the
// first part cannot be a month.
func (h *Heuristic) date(text string) (string, bool) {
	type hit struct {
		at      int
		y, m, d int
	}
	var hits []hit
	for _, sm := range reDateNumeric.FindAllStringSubmatchIndex(text, -1) {
		a, _ := strconv.Atoi(text[sm[2]:sm[3]])
		b, _ := strconv.Atoi(text[sm[4]:sm[5]])
		y, _ := strconv.Atoi(text[sm[6]:sm[7]])
		if sm[7]-sm[6] == 2 {
			y += 2000
		}
		m, d := a, b
		if a > 12 && b <= 12 {
			m, d = b, a
		}
		hits = append(hits, hit{at: sm[0], y: y, m: m, d: d})
	}
	for _, sm := range reDateISO.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[sm[2]:sm[3]])
		m, _ := strconv.Atoi(text[sm[4]:sm[5]])
		d, _ := strconv.Atoi(text[sm[6]:sm[7]])
		hits = append(hits, hit{at: sm[0], y: y, m: m, d: d})
	}

	best := -1
	for i, hh := range hits {
		if !validDate(hh.y, hh.m, hh.d) {
			continue
		}
		if best < 0 || hh.at < hits[best].at {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	b := hits[best]
	return fmt.Sprintf("%04d-%02d-%02d", b.y, b.m, b.d), true
}

func validDate(y, m, d int) bool {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && int(t.Month()) == m && t.Day() == d
}

// vendor matches the leading lines against the known-vendor table. Without a
// match above the thresholds the vendor stays absent.
func (h *Heuristic) vendor(lines []string) (string, bool) {
	var candidates []string
	for _, ln := range lines {
		if len(candidates) == vendorSearchLines {
			break
		}
		if isNonVendorLine(ln) {
			continue
		}
		candidates = append(candidates, ln)
	}

	var best VendorMatch
	for _, ln := range candidates {
		if m, ok := h.vendors.Match(ln); ok && m.Similarity > best.Similarity {
			best = m
		}
	}
	return best.Name, best.Name != ""
}

func isNonVendorLine(ln string) bool {
	if len(strings.TrimSpace(ln)) < 3 {
		return true
	}
	return reContact.MatchString(ln) || reNonVendor.MatchString(ln) || rePriceOnly.MatchString(ln)
}

// items picks "description price" lines, skipping totals and payments.
func (h *Heuristic) items(lines []string) []entity.LineItem {
	items := make([]entity.LineItem, 0, maxItems)
	for _, ln := range lines {
		if len(items) == maxItems {
			break
		}
		if reItemExclude.MatchString(ln) || reBoilerplate.MatchString(ln) {
			continue
		}
		sm := reItem.FindStringSubmatch(ln)
		if sm == nil {
			continue
		}
		desc := strings.TrimSpace(sm[2])
		if len(desc) < 3 || len(desc) > 40 || !reRealWord.MatchString(desc) {
			continue
		}
		p, err := decimal.NewFromString(sm[3])
		if err != nil {
			continue
		}
		price := p.Round(2).InexactFloat64()
		if price <= minItemPrice || price > maxItemPrice {
			continue
		}
		qty := 1
		if sm[1] != "" {
			if n, err := strconv.Atoi(sm[1]); err == nil && n > 0 {
				qty = n
			}
		}
		if duplicateItem(items, desc, price) {
			continue
		}
		items = append(items, entity.LineItem{Description: desc, Price: price, Quantity: qty})
	}
	return items
}

func duplicateItem(items []entity.LineItem, desc string, price float64) bool {
	for _, it := range items {
		if strings.EqualFold(it.Description, desc) && abs(it.Price-price) < 0.01 {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, ln := range raw {
		if ln = strings.TrimSpace(ln); ln != "" && ln != "\f" {
			out = append(out, ln)
		}
	}
	return out
}
