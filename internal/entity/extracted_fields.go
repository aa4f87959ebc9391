package entity

// LineItem is one purchased line discovered on a receipt.
type LineItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// ExtractedFields is the value object passed between pipeline stages.
// Nil pointers mean the field is absent.
type ExtractedFields struct {
	Vendor     *string    `json:"vendor,omitempty"`
	Date       *string    `json:"date,omitempty"` // YYYY-MM-DD
	Amount     *float64   `json:"amount,omitempty"`
	Items      []LineItem `json:"items"`
	Confidence float64    `json:"confidence"`
}

// HasAmount reports whether a usable amount is present.
func (f ExtractedFields) HasAmount() bool { return f.Amount != nil }

// Clone returns a deep copy so stages never share pointers.
func (f ExtractedFields) Clone() ExtractedFields {
	out := ExtractedFields{Confidence: f.Confidence}
	if f.Vendor != nil {
		v := *f.Vendor
		out.Vendor = &v
	}
	if f.Date != nil {
		d := *f.Date
		out.Date = &d
	}
	if f.Amount != nil {
		a := *f.Amount
		out.Amount = &a
	}
	if f.Items != nil {
		out.Items = make([]LineItem, len(f.Items))
		copy(out.Items, f.Items)
	}
	return out
}
