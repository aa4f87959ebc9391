package llm

import "strings"

// DefaultMaxPromptChars bounds how much receipt text goes into a prompt.
const DefaultMaxPromptChars = 1500

// BuildPrompt asks for a single JSON object with vendor, date and amount.
// The receipt text is cut to maxChars runes.
func BuildPrompt(receiptText string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	text := strings.TrimSpace(receiptText)
	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
	}
	parts := []string{
		"You are a receipt parser. Read the receipt text below and return ONLY one JSON object with these keys:",
		`"vendor": the store or merchant name as a string,`,
		`"date": the purchase date as YYYY-MM-DD,`,
		`"amount": the final grand total paid as a number (not the subtotal).`,
		"Use null for any value you cannot find. Do not add explanations.",
		"",
		"Receipt text:",
		text,
	}
	return strings.Join(parts, "\n")
}
