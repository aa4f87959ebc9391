package validate

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/joseph-ayodele/expense-tracker/internal/entity"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeWalmart(t *testing.T) {
	in := entity.ExtractedFields{
		Vendor:     ptr("Walmart"),
		Date:       ptr("2024-01-15"),
		Amount:     ptr(5.75),
		Items:      []entity.LineItem{{Description: "MILK", Price: 3.5, Quantity: 1}},
		Confidence: 0.3,
	}
	out := Normalize(in)
	if out.Confidence != 1 {
		t.Fatalf("confidence = %v, want 1", out.Confidence)
	}
	if len(out.Items) != 1 {
		t.Fatalf("items dropped: %+v", out.Items)
	}
	if in.Confidence != 0.3 {
		t.Fatal("input was mutated")
	}
}

func TestVendor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"  Target  ", "Target", true},
		{"Trader   Joe's", "Trader Joe's", true},
		{"X", "", false},
		{" ", "", false},
		{"NULL", "", false},
		{"Unknown", "", false},
		{"Order Details", "", false},
		{"ship to", "", false},
		{"BILL TO", "", false},
		{"Invoice", "", false},
		{"RECEIPT", "", false},
		{"Thank You", "", false},
		{"customer copy", "", false},
		{"Page 2", "", false},
		{"page12", "", false},
		{"Page Turner Books", "Page Turner Books", true},
	}
	for _, tt := range tests {
		got, ok := Vendor(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Vendor(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2024-01-15", true},
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-13-01", false},
		{"2024-1-15", false},
		{"01/15/2024", false},
		{"2024-01-15T00:00:00Z", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := Date(tt.in); ok != tt.ok {
			t.Errorf("Date(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
		ok   bool
	}{
		{5.75, 5.75, true},
		{12.345, 12.35, true},
		{10000, 10000, true},
		{10000.001, 10000, true},
		{10000.01, 0, false},
		{0, 0, false},
		{0.004, 0, false},
		{-3, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, tt := range tests {
		got, ok := Amount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Amount(%v) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"$1,234.50", 1234.5, true},
		{" 42 ", 42, true},
		{"€9.999", 10, true},
		{"abc", 0, false},
		{"12.5.3", 0, false},
		{42, 42, true},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := CoerceAmount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CoerceAmount(%v) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"2024/03/09", "2024-03-09", true},
		{"03/09/2024", "2024-03-09", true},
		{"Mar 9, 2024", "2024-03-09", true},
		{"2024-03-09T10:00:00Z", "2024-03-09", true},
		{time.Date(2031, 7, 1, 0, 0, 0, 0, time.UTC), "2031-07-01", true},
		{"1999-12-31", "", false},
		{"2051-01-01", "", false},
		{time.Time{}, "", false},
		{"yesterday", "", false},
		{12, "", false},
	}
	for _, tt := range tests {
		got, ok := CoerceDate(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("CoerceDate(%v) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeFieldsIndependent(t *testing.T) {
	in := entity.ExtractedFields{
		Vendor: ptr("receipt"),
		Date:   ptr("2024-02-30"),
		Amount: ptr(19.99),
	}
	out := Normalize(in)
	if out.Vendor != nil || out.Date != nil {
		t.Fatalf("invalid vendor/date should be dropped: %+v", out)
	}
	if out.Amount == nil || *out.Amount != 19.99 {
		t.Fatalf("amount = %v", out.Amount)
	}
	if math.Abs(out.Confidence-0.8) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.8", out.Confidence)
	}

	empty := Normalize(entity.ExtractedFields{Confidence: 0.9})
	if empty.Confidence != 0.5 {
		t.Fatalf("empty confidence = %v, want 0.5", empty.Confidence)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []entity.ExtractedFields{
		{},
		{Vendor: ptr("  Costco   Wholesale "), Date: ptr("2024-06-01"), Amount: ptr(87.346)},
		{Vendor: ptr("page 3"), Amount: ptr(-1.0)},
		{Vendor: ptr("Shell"), Date: ptr("06/01/2024"), Amount: ptr(9999.999)},
		{Amount: ptr(0.005), Items: []entity.LineItem{{Description: "GUM", Price: 1, Quantity: 1}}},
	}
	for i, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("input %d: Normalize not idempotent:\n once=%+v\ntwice=%+v", i, once, twice)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(entity.ExtractedFields{Vendor: ptr("Aldi"), Amount: ptr(3.0), Confidence: 0.8})
	want := "vendor=Aldi date=- amount=3.00 items=0 confidence=0.80"
	if got != want {
		t.Fatalf("Describe = %q, want %q", got, want)
	}
}
