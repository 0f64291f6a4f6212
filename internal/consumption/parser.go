package consumption

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthOrdinals maps lowercase German month names to their ordinal.
var monthOrdinals = map[string]time.Month{
	"januar":    time.January,
	"februar":   time.February,
	"märz":      time.March,
	"april":     time.April,
	"mai":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"august":    time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"dezember":  time.December,
}

var (
	monthYearRe = regexp.MustCompile(`(?i)(Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s+(\d{4})`)
	unitRe      = regexp.MustCompile(`(m³|kWh)`)
	// Dated value lines look like "2025: 1,234 m³". The first occurrence in a
	// section is the current month, the second is the previous year.
	valueLineRe = regexp.MustCompile(`(\d{4}):\s*(\d+[.,]\d+)\s*(m³|kWh)`)
	// HomeCase uses two phrasings for the property average, depending on the
	// category: "Durchschnitt der Liegenschaft ..." and "Heizung auf Basis ...".
	averageRe = regexp.MustCompile(`(?i)(?:Durchschnitt[^\n:]*|Heizung auf Basis[^\n:]*):\s*(\d+[.,]\d+)\s*(m³|kWh)`)
)

// sectionHeaders is the set of lines (lowercased, trimmed) that start a new
// utility section inside a notice.
var sectionHeaders = map[string]bool{
	"kaltwasser": true,
	"warmwasser": true,
	"heizung":    true,
}

// sectionEndMarker starts the closing paragraph of a notice.
const sectionEndMarker = "falls sie fragen"

// Year bounds accepted for a notice date.
const (
	minYear = 2000
	maxYear = 2100
)

// ParseMonthYear locates the first German month name followed by a 4-digit
// year anywhere in the text.
func ParseMonthYear(text string) (month string, year int, err error) {
	m := monthYearRe.FindStringSubmatch(text)
	if m == nil {
		return "", 0, &NotFoundError{Element: "month and year"}
	}
	year, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, &NotFoundError{Element: "month and year"}
	}
	return m[1], year, nil
}

// extractSectionText returns the lines belonging to the named section.
//
// Boundaries are detected line by line with exact full-line equality
// against the known headers: the Heizung section contains a line that
// merely *begins* with "Heizung" (its average-basis line) and a substring
// test would cut the section short there.
func extractSectionText(text, sectionName string) (string, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")

	want := strings.ToLower(sectionName)
	start := -1
	for i, line := range lines {
		if strings.ToLower(strings.TrimSpace(line)) == want {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", &NotFoundError{Element: "section header", Section: sectionName}
	}

	var collected []string
	for _, line := range lines[start:] {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if sectionHeaders[trimmed] && trimmed != want {
			break
		}
		if strings.HasPrefix(trimmed, sectionEndMarker) {
			break
		}
		collected = append(collected, line)
	}

	sectionText := strings.TrimSpace(strings.Join(collected, "\n"))
	if sectionText == "" {
		return "", &NotFoundError{Element: "section content", Section: sectionName}
	}
	return sectionText, nil
}

// parseDecimal converts a decimal that may use the German comma separator.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// ParseConsumptionSection extracts the readings for one utility category
// (Kaltwasser, Warmwasser or Heizung) from the full notice text.
func ParseConsumptionSection(text, sectionName string) (ConsumptionData, error) {
	sectionText, err := extractSectionText(text, sectionName)
	if err != nil {
		return ConsumptionData{}, err
	}

	unitMatch := unitRe.FindStringSubmatch(sectionText)
	if unitMatch == nil {
		return ConsumptionData{}, &NotFoundError{Element: "unit", Section: sectionName}
	}
	unit := unitMatch[1]

	valueMatches := valueLineRe.FindAllStringSubmatch(sectionText, -1)
	if len(valueMatches) < 2 {
		return ConsumptionData{}, &NotFoundError{Element: "current month and previous year values", Section: sectionName}
	}
	currentValue, err := parseDecimal(valueMatches[0][2])
	if err != nil {
		return ConsumptionData{}, &NotFoundError{Element: "current month value", Section: sectionName}
	}
	previousValue, err := parseDecimal(valueMatches[1][2])
	if err != nil {
		return ConsumptionData{}, &NotFoundError{Element: "previous year value", Section: sectionName}
	}

	avgMatch := averageRe.FindStringSubmatch(sectionText)
	if avgMatch == nil {
		return ConsumptionData{}, &NotFoundError{Element: "property average", Section: sectionName}
	}
	avgValue, err := parseDecimal(avgMatch[1])
	if err != nil {
		return ConsumptionData{}, &NotFoundError{Element: "property average value", Section: sectionName}
	}

	return NewConsumptionData(currentValue, previousValue, avgValue, unit)
}

// ParseMessage parses a raw notice into a validated ParsedMessage. Any
// failing step aborts the whole parse; no partial result is ever returned.
func ParseMessage(rawMessage string) (*ParsedMessage, error) {
	contentHash := ContentHash(rawMessage)

	month, year, err := ParseMonthYear(rawMessage)
	if err != nil {
		return nil, err
	}
	if year < minYear || year > maxYear {
		return nil, &ValidationError{Field: "year", Reason: fmt.Sprintf("%d outside [%d, %d]", year, minYear, maxYear)}
	}
	ordinal := monthOrdinals[strings.ToLower(month)]
	messageDate := time.Date(year, ordinal, 1, 0, 0, 0, 0, time.UTC)

	var sections [3]ConsumptionData
	for i, name := range []string{SectionKaltwasser, SectionWarmwasser, SectionHeizung} {
		data, err := ParseConsumptionSection(rawMessage, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s section: %w", name, err)
		}
		sections[i] = data
	}

	return &ParsedMessage{
		Month:       month,
		Year:        year,
		MessageDate: messageDate,
		Kaltwasser:  sections[0],
		Warmwasser:  sections[1],
		Heizung:     sections[2],
		RawMessage:  rawMessage,
		ContentHash: contentHash,
	}, nil
}
