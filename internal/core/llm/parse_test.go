package llm

import (
	"strings"
	"testing"
)

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Sure! Here you go: {"a":{"b":2}} hope it helps {"c":3}`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"vendor":"a}b","x":"{"}`, `{"vendor":"a}b","x":"{"}`, true},
		{"escaped quote", `{"v":"say \"}\" ok"}`, `{"v":"say \"}\" ok"}`, true},
		{"unbalanced then good", `{ broken {"a":1}`, `{"a":1}`, true},
		{"never closed", `{"a": "b`, "", false},
		{"none", `no json here`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstJSONObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("FirstJSONObject(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("full object", func(t *testing.T) {
		f, ok := ParseResponse("Result:\n```json\n{\"vendor\": \"Costco\", \"date\": \"2024-02-10\", \"amount\": 87.34}\n```")
		if !ok {
			t.Fatal("expected ok")
		}
		if f.Vendor == nil || *f.Vendor != "Costco" {
			t.Fatalf("vendor = %v", f.Vendor)
		}
		if f.Date == nil || *f.Date != "2024-02-10" {
			t.Fatalf("date = %v", f.Date)
		}
		if f.Amount == nil || *f.Amount != 87.34 {
			t.Fatalf("amount = %v", f.Amount)
		}
	})

	t.Run("nulls stay absent", func(t *testing.T) {
		f, ok := ParseResponse(`{"vendor": null, "date": null, "amount": 4.5}`)
		if !ok {
			t.Fatal("expected ok")
		}
		if f.Vendor != nil || f.Date != nil {
			t.Fatalf("null fields should be nil: %+v", f)
		}
		if f.Amount == nil || *f.Amount != 4.5 {
			t.Fatalf("amount = %v", f.Amount)
		}
	})

	t.Run("amount as string", func(t *testing.T) {
		f, ok := ParseResponse(`{"amount": "$1,234.50"}`)
		if !ok || f.Amount == nil || *f.Amount != 1234.5 {
			t.Fatalf("got %+v ok=%v", f, ok)
		}
	})

	t.Run("schema mismatch falls back to key values", func(t *testing.T) {
		f, ok := ParseResponse(`{"vendor": ["a"], "date": "2024-01-01", "amount": 3.00}`)
		if !ok {
			t.Fatal("expected ok from key/value fallback")
		}
		if f.Vendor != nil {
			t.Fatalf("vendor should be absent, got %q", *f.Vendor)
		}
		if f.Date == nil || *f.Date != "2024-01-01" || f.Amount == nil || *f.Amount != 3 {
			t.Fatalf("got %+v", f)
		}
	})

	t.Run("truncated object uses key values", func(t *testing.T) {
		f, ok := ParseResponse(`{"vendor": "Shell", "amount": 40.12, "date": "2024-05`)
		if !ok || f.Vendor == nil || *f.Vendor != "Shell" || f.Amount == nil || *f.Amount != 40.12 {
			t.Fatalf("got %+v ok=%v", f, ok)
		}
		if f.Date != nil {
			t.Fatalf("unterminated date should be absent, got %q", *f.Date)
		}
	})

	t.Run("nothing usable", func(t *testing.T) {
		if _, ok := ParseResponse("I could not read this receipt."); ok {
			t.Fatal("expected not ok")
		}
	})
}

func TestValidateReply(t *testing.T) {
	if err := ValidateReply([]byte(`{"vendor":"x","extra":true}`)); err != nil {
		t.Fatalf("extra keys should pass: %v", err)
	}
	if err := ValidateReply([]byte(`{"amount":true}`)); err == nil {
		t.Fatal("boolean amount should fail")
	}
	if err := ValidateReply([]byte(`[1,2]`)); err == nil {
		t.Fatal("array should fail")
	}
}

func TestBuildPromptTruncates(t *testing.T) {
	text := strings.Repeat("é", 3000)
	p := BuildPrompt(text, 100)
	if n := strings.Count(p, "é"); n != 100 {
		t.Fatalf("prompt carries %d runes of receipt text, want 100", n)
	}
	if !strings.Contains(p, "YYYY-MM-DD") || !strings.Contains(p, `"amount"`) {
		t.Fatal("prompt is missing field instructions")
	}
	if BuildPrompt("short", 0) == "" {
		t.Fatal("empty prompt")
	}
}
