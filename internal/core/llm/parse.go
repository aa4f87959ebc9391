package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/expense-tracker/internal/core/validate"
	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

var (
	reVendorKV = regexp.MustCompile(`"vendor"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reDateKV   = regexp.MustCompile(`"date"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reAmountKV = regexp.MustCompile(`"amount"\s*:\s*"?\$?(-?\d+(?:,\d{3})*(?:\.\d+)?)"?`)
)

// ParseResponse reads a collaborator reply. The first balanced {...} span is
// decoded and checked against ReplySchema; when that fails the key/value
// pairs are pulled out of the raw text directly. ok is false when neither
// yields anything. Absent or null keys stay unset.
func ParseResponse(raw string) (fields entity.ExtractedFields, ok bool) {
	if span, found := FirstJSONObject(raw); found {
		if f, err := decodeObject(span); err == nil {
			return f, true
		}
	}
	return parseKeyValues(raw)
}

func decodeObject(span string) (entity.ExtractedFields, error) {
	if err := ValidateReply([]byte(span)); err != nil {
		return entity.ExtractedFields{}, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return entity.ExtractedFields{}, err
	}

	var f entity.ExtractedFields
	if s, ok := obj["vendor"].(string); ok {
		f.Vendor = &s
	}
	if s, ok := obj["date"].(string); ok {
		if d, ok := canonicalDate(s); ok {
			f.Date = &d
		}
	}
	if v, present := obj["amount"]; present {
		if a, ok := validate.CoerceAmount(v); ok {
			f.Amount = &a
		}
	}
	return f, nil
}

func parseKeyValues(raw string) (entity.ExtractedFields, bool) {
	var f entity.ExtractedFields
	found := false
	if m := reVendorKV.FindStringSubmatch(raw); m != nil {
		s := unescape(m[1])
		f.Vendor = &s
		found = true
	}
	if m := reDateKV.FindStringSubmatch(raw); m != nil {
		if d, ok := canonicalDate(unescape(m[1])); ok {
			f.Date = &d
			found = true
		}
	}
	if m := reAmountKV.FindStringSubmatch(raw); m != nil {
		if a, ok := validate.CoerceAmount(m[1]); ok {
			f.Amount = &a
			found = true
		}
	}
	return f, found
}

// canonicalDate keeps a YYYY-MM-DD reply as is and converts the other
// layouts the collaborator tends to emit.
func canonicalDate(s string) (string, bool) {
	if d, ok := validate.Date(strings.TrimSpace(s)); ok {
		return d, true
	}
	return validate.CoerceDate(s)
}

func unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

// FirstJSONObject returns the first balanced {...} span in s, skipping braces
// inside JSON strings.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth, inString, escaped := 0, false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		// unbalanced from here; try the next opening brace
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
