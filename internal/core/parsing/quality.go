package parsing

import (
	"encoding/json"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

type qualityResponse struct {
	OverallScore *float64         `json:"overall_score"`
	Criteria     []criterionEntry `json:"criteria"`
}

type criterionEntry struct {
	Criterion  string   `json:"criterion"`
	Score      *float64 `json:"score"`
	Assessment string   `json:"assessment"`
	Issues     []string `json:"issues"`
}

// parseQuality returns exactly one score per declared criterion, in declared order. Output that
// does not satisfy the response schema goes through the lenient repair path.
func (p *Parser) parseQuality(text string, criteria []string) domain.QualityResult {
	candidate := extractJSONObject(stripCodeFence(text))

	var (
		entries  []criterionEntry
		overall  *float64
		repaired bool
	)
	var raw any
	decoded := candidate != "" && json.Unmarshal([]byte(candidate), &raw) == nil
	if decoded && p.qualitySchema.Validate(raw) == nil {
		var resp qualityResponse
		if err := json.Unmarshal([]byte(candidate), &resp); err == nil {
			entries, overall = resp.Criteria, resp.OverallScore
		} else {
			decoded, repaired = false, true
		}
	} else {
		repaired = true
	}

	if repaired {
		if decoded {
			entries, overall = looseEntries(raw)
		}
		if missing := missingCriteria(entries, criteria); len(missing) > 0 {
			lineEntries, lineOverall := scanLines(text, missing)
			entries = append(entries, lineEntries...)
			if overall == nil {
				overall = lineOverall
			}
		}
	}

	return assemble(entries, overall, criteria, repaired)
}

func assemble(entries []criterionEntry, overall *float64, criteria []string, repaired bool) domain.QualityResult {
	byLabel := make(map[string]criterionEntry, len(entries))
	for _, e := range entries {
		key := domain.LabelKey(e.Criterion)
		if _, seen := byLabel[key]; key == "" || seen {
			continue
		}
		byLabel[key] = e
	}

	result := domain.QualityResult{Criteria: make([]domain.CriterionScore, 0, len(criteria)), Repaired: repaired}
	var (
		sum     float64
		present int
	)
	for _, label := range criteria {
		score := domain.CriterionScore{Label: label, Issues: []string{}}
		e, ok := byLabel[domain.LabelKey(label)]
		if ok {
			score.Assessment = strings.TrimSpace(e.Assessment)
			for _, issue := range e.Issues {
				if issue = strings.TrimSpace(issue); issue != "" {
					score.Issues = append(score.Issues, issue)
				}
			}
			if s := validScore(e.Score); s != nil {
				score.Score = s
				sum += *s
				present++
			}
		}
		if score.Score == nil && score.Assessment == "" {
			score.Assessment = domain.NotEvaluated
		}
		result.Criteria = append(result.Criteria, score)
	}

	if s := validScore(overall); s != nil {
		result.OverallScore = s
	} else if present > 0 {
		mean := math.Round(sum/float64(present)*100) / 100
		result.OverallScore = &mean
	}
	return result
}

func validScore(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	s := clamp(*v, 0, 10)
	return &s
}

func missingCriteria(entries []criterionEntry, criteria []string) []string {
	have := make(map[string]bool, len(entries))
	for _, e := range entries {
		have[domain.LabelKey(e.Criterion)] = true
	}
	var missing []string
	for _, label := range criteria {
		if !have[domain.LabelKey(label)] {
			missing = append(missing, label)
		}
	}
	return missing
}

// looseEntries salvages criterion records from JSON that failed schema validation. It accepts
// alternative key names, numeric strings such as "7/10", and maps keyed by criterion label.
func looseEntries(raw any) ([]criterionEntry, *float64) {
	obj, ok := raw.(map[string]any)
	if !ok {
		if list, ok := raw.([]any); ok {
			return entriesFromList(list), nil
		}
		return nil, nil
	}

	overall := firstScore(obj, "overall_score", "overall", "overallScore", "total_score")
	for _, key := range []string{"criteria", "scores", "evaluation", "results"} {
		switch v := obj[key].(type) {
		case []any:
			return entriesFromList(v), overall
		case map[string]any:
			return entriesFromMap(v), overall
		}
	}
	return entriesFromMap(obj), overall
}

func entriesFromList(list []any) []criterionEntry {
	var entries []criterionEntry
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		label := firstString(obj, "criterion", "name", "label", "title", "category")
		if label == "" {
			continue
		}
		entries = append(entries, entryFromObject(label, obj))
	}
	return entries
}

func entriesFromMap(obj map[string]any) []criterionEntry {
	var entries []criterionEntry
	for _, label := range slices.Sorted(maps.Keys(obj)) {
		switch value := obj[label].(type) {
		case map[string]any:
			entries = append(entries, entryFromObject(label, value))
		case float64, string:
			if s := toScore(value); s != nil {
				entries = append(entries, criterionEntry{Criterion: label, Score: s})
			}
		}
	}
	return entries
}

func entryFromObject(label string, obj map[string]any) criterionEntry {
	return criterionEntry{
		Criterion:  label,
		Score:      firstScore(obj, "score", "rating", "value", "points"),
		Assessment: firstString(obj, "assessment", "comment", "feedback", "summary", "explanation"),
		Issues:     toStrings(obj["issues"]),
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstScore(obj map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if s := toScore(obj[k]); s != nil {
			return s
		}
	}
	return nil
}

func toScore(v any) *float64 {
	switch value := v.(type) {
	case float64:
		return &value
	case string:
		if n, _, ok := firstNumber(value); ok {
			return &n
		}
	}
	return nil
}

func toStrings(v any) []string {
	switch value := v.(type) {
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(value) != "" {
			return []string{value}
		}
	}
	return nil
}

var (
	scoreSeparators = " \t:-–—=*#.)(|[]"
	outOfTen        = regexp.MustCompile(`^\s*/\s*10\b`)
	overallLine     = regexp.MustCompile(`(?i)\boverall(?:\s+score)?\b`)
)

// scanLines reads "Label: 7/10 - assessment" style lines for the given criteria.
func scanLines(text string, criteria []string) ([]criterionEntry, *float64) {
	var (
		entries []criterionEntry
		overall *float64
		found   = make(map[string]bool, len(criteria))
	)
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if len(lower) != len(line) {
			lower = line
		}
		matched := false
		for _, label := range criteria {
			key := strings.ToLower(label)
			if found[key] {
				continue
			}
			needle := key
			if len(key) != len(label) {
				needle = label
			}
			idx := strings.Index(lower, needle)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(needle):]
			score, assessment, ok := scoreAndAssessment(rest)
			if !ok {
				continue
			}
			found[key] = true
			matched = true
			entries = append(entries, criterionEntry{Criterion: label, Score: score, Assessment: assessment})
			break
		}
		if !matched && overall == nil {
			if loc := overallLine.FindStringIndex(line); loc != nil {
				if score, _, ok := scoreAndAssessment(line[loc[1]:]); ok {
					overall = score
				}
			}
		}
	}
	return entries, overall
}

func scoreAndAssessment(rest string) (*float64, string, bool) {
	trimmed := strings.TrimLeft(rest, scoreSeparators)
	m := numberToken.FindStringSubmatchIndex(trimmed)
	if m == nil || m[2] > 0 {
		return nil, "", false
	}
	value, err := parseDecimal(trimmed[m[2]:m[3]])
	if err != nil {
		return nil, "", false
	}
	after := trimmed[m[1]:]
	if loc := outOfTen.FindStringIndex(after); loc != nil {
		after = after[loc[1]:]
	}
	return &value, strings.Trim(after, scoreSeparators), true
}
