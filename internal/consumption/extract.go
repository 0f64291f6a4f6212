package consumption

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// ConsumptionMarker is the keyword that anchors a consumption notice
// inside arbitrary portal text. The case-sensitive form is the detection
// trigger; the fallback window search is case-insensitive.
const ConsumptionMarker = "Verbrauchswerte"

// categoryKeywords earn a candidate a scoring bonus when present.
var categoryKeywords = []string{SectionKaltwasser, SectionWarmwasser, SectionHeizung}

var (
	crlfRe      = regexp.MustCompile(`\r\n?`)
	hspaceRe    = regexp.MustCompile(`[ \t]+`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	wsRe        = regexp.MustCompile(`\s+`)
	// Capture from the marker up to a closing phrase that opens a new line,
	// or to the end of the text when no closer appears.
	consumptionRe = regexp.MustCompile(`(?is)(Verbrauchswerte.*?)(?:\n(?:Falls Sie Fragen|Mit freundlichen|Viele Grüße|Bitte beachten)|\z)`)
)

// ExtractorConfig holds the tunable extraction heuristics. The defaults
// were tuned against observed HomeCase output; treat them as starting
// points, not invariants.
type ExtractorConfig struct {
	// KeywordBonus is added to a candidate's score for each utility
	// category keyword found in its text.
	KeywordBonus int
	// MaxExtractLength bounds the window taken after the marker when the
	// closer-anchored pattern does not match.
	MaxExtractLength int
}

// DefaultExtractorConfig returns the tuned defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		KeywordBonus:     500,
		MaxExtractLength: 3500,
	}
}

// Extractor finds the consumption notice inside noisy portal text and
// ranks competing candidates.
type Extractor struct {
	cfg ExtractorConfig
}

func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.KeywordBonus == 0 {
		cfg.KeywordBonus = DefaultExtractorConfig().KeywordBonus
	}
	if cfg.MaxExtractLength == 0 {
		cfg.MaxExtractLength = DefaultExtractorConfig().MaxExtractLength
	}
	return &Extractor{cfg: cfg}
}

// Extract returns the substring of text plausibly containing a consumption
// notice, or false when the marker keyword is absent.
func (e *Extractor) Extract(text string) (string, bool) {
	if !strings.Contains(text, ConsumptionMarker) {
		return "", false
	}

	cleaned := crlfRe.ReplaceAllString(text, "\n")
	cleaned = hspaceRe.ReplaceAllString(cleaned, " ")
	cleaned = blankRunRe.ReplaceAllString(cleaned, "\n\n")

	if m := consumptionRe.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	return e.markerWindow(cleaned)
}

// markerWindow is the fallback for irregular formatting: a window of at
// most MaxExtractLength characters starting at the marker, found
// case-insensitively. Lengths count runes, not bytes, so umlauts and m³
// do not shrink the window.
func (e *Extractor) markerWindow(cleaned string) (string, bool) {
	idx := strings.Index(strings.ToLower(cleaned), strings.ToLower(ConsumptionMarker))
	if idx < 0 {
		return "", false
	}
	window := []rune(cleaned[idx:])
	if len(window) > e.cfg.MaxExtractLength {
		window = window[:e.cfg.MaxExtractLength]
	}
	return strings.TrimSpace(string(window)), true
}

// Score rates an extracted message: base score is its length in runes,
// plus a fixed bonus per utility category keyword present
// (case-insensitive).
func (e *Extractor) Score(message string) int {
	score := utf8.RuneCountInString(message)
	lower := strings.ToLower(message)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			score += e.cfg.KeywordBonus
		}
	}
	return score
}

// BestMessage extracts a notice from each raw candidate and returns the
// highest scoring one. On an exact tie the first-seen candidate wins, so
// the result is deterministic for identical inputs.
func (e *Extractor) BestMessage(candidates []string) (string, bool) {
	best := ""
	bestScore := -1
	for _, candidate := range candidates {
		message, ok := e.Extract(candidate)
		if !ok {
			continue
		}
		if score := e.Score(message); score > bestScore {
			bestScore = score
			best = message
		}
	}
	return best, bestScore >= 0
}

// Candidate is a timestamped message candidate from the portal API.
type Candidate struct {
	// Timestamp is the ISO-8601 creation/change time as reported by the
	// portal. Lexicographic order on these strings is chronological order.
	Timestamp string
	Text      string
}

// DedupeNewestFirst sorts candidates newest first, drops duplicates by
// whitespace-normalized text (keeping the newest occurrence), and
// truncates to limit when limit > 0. It never fails on empty input.
func DedupeNewestFirst(candidates []Candidate, limit int) []string {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	seen := make(map[string]bool)
	var messages []string
	for _, c := range sorted {
		normalized := strings.TrimSpace(wsRe.ReplaceAllString(c.Text, " "))
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		messages = append(messages, c.Text)
		if limit > 0 && len(messages) >= limit {
			break
		}
	}
	return messages
}
