package notification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unofficial-homecase/homecasebot/internal/consumption"
)

// FormatNumberGerman renders a reading with three decimal places and a
// comma as the decimal separator, e.g. 2.345 -> "2,345".
func FormatNumberGerman(value float64) string {
	return strings.Replace(strconv.FormatFloat(value, 'f', 3, 64), ".", ",", 1)
}

// Subject builds the subject line for a consumption report email.
func Subject(msg *consumption.ParsedMessage) string {
	return fmt.Sprintf("Verbrauchswerte für %s %d", msg.Month, msg.Year)
}

func formatSection(name string, data consumption.ConsumptionData, month string, year int, heating bool) string {
	current := FormatNumberGerman(data.CurrentMonth)
	previous := FormatNumberGerman(data.PreviousYear)
	average := FormatNumberGerman(data.PropertyAverage)

	var avgLabel, avgNote string
	if heating {
		avgLabel = fmt.Sprintf("Heizung auf Basis des Durchschnitts der Liegenschaft %s %d", month, year)
		avgNote = "(Gesamtverbrauch Heizung / Gesamt Wohnfläche x Wohnfläche Einheit)"
	} else {
		avgLabel = fmt.Sprintf("Durchschnitt der Liegenschaft %s %d", month, year)
		avgNote = "(Gesamtverbrauch Liegenschaft / Anzahl Einheiten)"
	}

	return fmt.Sprintf("%s\n%s %d: %s %s\n%s %d: %s %s\n%s: %s %s %s",
		name,
		month, year, current, data.Unit,
		month, year-1, previous, data.Unit,
		avgLabel, average, data.Unit, avgNote)
}

// FormatBody renders the plain-text report for a parsed notice. The
// signature may contain literal \n sequences which are expanded to real
// line breaks so it can be configured through a single env variable.
func FormatBody(msg *consumption.ParsedMessage, greeting, signature string) string {
	sections := []string{
		formatSection(consumption.SectionKaltwasser, msg.Kaltwasser, msg.Month, msg.Year, false),
		formatSection(consumption.SectionWarmwasser, msg.Warmwasser, msg.Month, msg.Year, false),
		formatSection(consumption.SectionHeizung, msg.Heizung, msg.Month, msg.Year, true),
	}

	body := fmt.Sprintf("%s\n\nhier deine Verbrauchswerte für den Monat %s %d:\n\n%s",
		greeting, msg.Month, msg.Year, strings.Join(sections, "\n\n"))

	if signature != "" {
		body += "\n\n" + strings.ReplaceAll(signature, `\n`, "\n")
	}
	return body
}
