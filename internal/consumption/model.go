package consumption

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Units of measurement that appear in HomeCase consumption notices.
const (
	UnitCubicMeters   = "m³"
	UnitKilowattHours = "kWh"
)

// Fixed utility categories, in the order they appear in a notice.
const (
	SectionKaltwasser = "Kaltwasser"
	SectionWarmwasser = "Warmwasser"
	SectionHeizung    = "Heizung"
)

// ConsumptionData holds the readings for a single utility category.
type ConsumptionData struct {
	CurrentMonth    float64 `json:"current_month"`
	PreviousYear    float64 `json:"previous_year"`
	PropertyAverage float64 `json:"property_average"`
	Unit            string  `json:"unit"`
}

// NewConsumptionData validates and constructs a ConsumptionData.
// All three values must be non-negative and the unit must be one of the
// known measurement units.
func NewConsumptionData(currentMonth, previousYear, propertyAverage float64, unit string) (ConsumptionData, error) {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"current_month", currentMonth},
		{"previous_year", previousYear},
		{"property_average", propertyAverage},
	} {
		if v.value < 0 {
			return ConsumptionData{}, &ValidationError{Field: v.name, Reason: "consumption values must be non-negative"}
		}
	}
	if unit != UnitCubicMeters && unit != UnitKilowattHours {
		return ConsumptionData{}, &ValidationError{Field: "unit", Reason: fmt.Sprintf("unknown unit %q", unit)}
	}
	return ConsumptionData{
		CurrentMonth:    currentMonth,
		PreviousYear:    previousYear,
		PropertyAverage: propertyAverage,
		Unit:            unit,
	}, nil
}

// ParsedMessage is one fully parsed consumption notice.
type ParsedMessage struct {
	Month       string          `json:"month"`
	Year        int             `json:"year"`
	MessageDate time.Time       `json:"message_date"`
	Kaltwasser  ConsumptionData `json:"kaltwasser"`
	Warmwasser  ConsumptionData `json:"warmwasser"`
	Heizung     ConsumptionData `json:"heizung"`
	RawMessage  string          `json:"-"`
	ContentHash string          `json:"content_hash"`
}

// ContentHash returns the SHA-256 digest of the raw message text as a
// lowercase hex string. Identical text always yields the identical hash,
// which is what makes re-processing detection safe.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ToMap returns the flattened form stored as the parsed_data payload.
func (m *ParsedMessage) ToMap() map[string]any {
	section := func(d ConsumptionData) map[string]any {
		return map[string]any{
			"current_month":    d.CurrentMonth,
			"previous_year":    d.PreviousYear,
			"property_average": d.PropertyAverage,
			"unit":             d.Unit,
		}
	}
	return map[string]any{
		"month":        m.Month,
		"year":         m.Year,
		"message_date": m.MessageDate.Format("2006-01-02"),
		"kaltwasser":   section(m.Kaltwasser),
		"warmwasser":   section(m.Warmwasser),
		"heizung":      section(m.Heizung),
	}
}
