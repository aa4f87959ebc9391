package constants

// CategoryType distinguishes curated categories from ones derived from a vendor name.
type CategoryType string

const (
	CategoryTypeTraditional CategoryType = "traditional"
	CategoryTypeVendor      CategoryType = "vendor"
)

// OtherCategory is used when a receipt has no usable vendor.
const OtherCategory = "Other"

// Defaults for categories created on demand.
const (
	DefaultCategoryColor = "#9E9E9E"
	DefaultCategoryIcon  = "receipt"
)

// Tags attached to every expense created from a receipt.
const (
	TagReceiptImport = "receipt-import"
	TagAutoCreated   = "auto-created"
)

// AutoExpenseTags returns a fresh copy of the auto-created expense markers.
func AutoExpenseTags() []string {
	return []string{TagReceiptImport, TagAutoCreated}
}
