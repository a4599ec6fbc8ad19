package parsing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// numberToken matches a standalone decimal (comma or dot separator), optionally followed by %.
var numberToken = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_.,])(\d+(?:[.,]\d+)?)\s*(%)?`)

// parseCategory picks the declared label appearing earliest in text (longer label on a tie).
// Unmatched responses map to domain.UnclassifiedLabel.
func parseCategory(text string, labels []string) domain.CategoryResult {
	cleaned := strings.Trim(stripCodeFence(text), "\"'` \n\t")
	lower := strings.ToLower(cleaned)

	result := domain.CategoryResult{Label: domain.UnclassifiedLabel}
	bestPos := -1
	for _, label := range labels {
		needle := strings.ToLower(strings.TrimSpace(label))
		if needle == "" {
			continue
		}
		pos := strings.Index(lower, needle)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(label) > len(result.Label)) {
			bestPos = pos
			result.Label = label
			result.Matched = true
		}
	}

	confidence, ok := parseConfidence(cleaned, labels)
	if !ok {
		confidence = domain.DefaultConfidence
		result.ConfidenceDefaulted = true
	}
	result.Confidence = clamp(confidence, 0, 1)
	return result
}

// parseConfidence prefers the first number after the "|" separator. Otherwise it takes the first
// percentage or number in [0,1], ignoring digits that belong to category labels. Negative values
// count as absent.
func parseConfidence(text string, labels []string) (float64, bool) {
	if _, after, found := strings.Cut(text, "|"); found {
		if value, percent, ok := firstNumber(after); ok {
			if value < 0 {
				return 0, false
			}
			// 1 < value < 2 is an overshoot and is clamped by the caller.
			if percent || value >= 2 {
				value /= 100
			}
			return value, true
		}
	}

	scrubbed := text
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label))
		scrubbed = re.ReplaceAllString(scrubbed, " ")
	}
	for _, m := range numberToken.FindAllStringSubmatchIndex(scrubbed, -1) {
		if negativeAt(scrubbed, m[2]) {
			continue
		}
		value, err := parseDecimal(scrubbed[m[2]:m[3]])
		if err != nil {
			continue
		}
		if m[4] >= 0 {
			if value <= 100 {
				return value / 100, true
			}
			continue
		}
		if value <= 1 {
			return value, true
		}
	}
	return 0, false
}

// firstNumber returns the first decimal in s, negated when a minus sign directly precedes it.
func firstNumber(s string) (value float64, percent bool, ok bool) {
	m := numberToken.FindStringSubmatchIndex(s)
	if m == nil {
		return 0, false, false
	}
	value, err := parseDecimal(s[m[2]:m[3]])
	if err != nil {
		return 0, false, false
	}
	if negativeAt(s, m[2]) {
		value = -value
	}
	return value, m[4] >= 0, true
}

func negativeAt(s string, start int) bool {
	return start > 0 && s[start-1] == '-'
}

func parseDecimal(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, strconv.ErrRange
	}
	return value, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
