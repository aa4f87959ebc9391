package ocr

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RetryScore is the gate score below which the caller re-runs OCR once with
// the sparse-text segmentation mode.
const RetryScore = 5

const maxQualityScore = 10

// Quality issues reported by ScoreText.
const (
	IssueTooShort      = "too short"
	IssueSpecialChars  = "too many special characters"
	IssueLowValidWords = "low valid word ratio"
	IssueTooFewLines   = "too few lines"
	IssueRunOnTokens   = "run-on tokens"
)

const (
	minTextRunes        = 20
	maxSpecialRatio     = 0.3
	minValidWordRatio   = 0.6
	minLines            = 3
	maxAvgTokenRunes    = 25
	penaltyTooShort     = 3
	penaltySpecialChars = 4
	penaltyValidWords   = 2
	penaltyFewLines     = 1
	penaltyRunOn        = 3
)

// QualityReport is the outcome of ScoreText. Score is in [0,10].
type QualityReport struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// a token made of letters, digits and the punctuation seen in prices and dates
var reValidToken = regexp.MustCompile(`^[\p{L}\p{N}.,:;'"$£€%&@#()/*+!?-]{1,30}$`)

// ScoreText rates OCR output for structural plausibility. It starts at 10 and
// subtracts a fixed penalty per violated rule, never going below 0.
func ScoreText(text string) QualityReport {
	report := QualityReport{Score: maxQualityScore, Issues: []string{}}
	penalize := func(issue string, points int) {
		report.Issues = append(report.Issues, issue)
		report.Score -= points
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minTextRunes {
		penalize(IssueTooShort, penaltyTooShort)
	}

	if specialRatio(trimmed) > maxSpecialRatio {
		penalize(IssueSpecialChars, penaltySpecialChars)
	}

	tokens := strings.Fields(trimmed)
	valid, runes := 0, 0
	for _, tok := range tokens {
		runes += utf8.RuneCountInString(tok)
		if reValidToken.MatchString(tok) && strings.IndexFunc(tok, isAlnum) >= 0 {
			valid++
		}
	}
	if len(tokens) == 0 || float64(valid)/float64(len(tokens)) < minValidWordRatio {
		penalize(IssueLowValidWords, penaltyValidWords)
	}

	if countNonBlankLines(trimmed) < minLines {
		penalize(IssueTooFewLines, penaltyFewLines)
	}

	if len(tokens) > 0 && float64(runes)/float64(len(tokens)) > maxAvgTokenRunes {
		penalize(IssueRunOnTokens, penaltyRunOn)
	}

	if report.Score < 0 {
		report.Score = 0
	}
	return report
}

// specialRatio is the share of non-space runes that are neither alphanumeric,
// punctuation nor a currency sign.
func specialRatio(s string) float64 {
	var total, special int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isAlnum(r) || unicode.IsPunct(r) || unicode.Is(unicode.Sc, r) {
			continue
		}
		special++
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

func countNonBlankLines(s string) int {
	n := 0
	for _, ln := range strings.Split(s, "\n") {
		if strings.TrimSpace(ln) != "" {
			n++
		}
	}
	return n
}
