package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/unofficial-homecase/homecasebot/internal/consumption"
)

func sampleParsedMessage() *consumption.ParsedMessage {
	return &consumption.ParsedMessage{
		Month:       "Dezember",
		Year:        2025,
		MessageDate: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		Kaltwasser: consumption.ConsumptionData{
			CurrentMonth: 2.345, PreviousYear: 2.1, PropertyAverage: 2.8,
			Unit: consumption.UnitCubicMeters,
		},
		Warmwasser: consumption.ConsumptionData{
			CurrentMonth: 1.234, PreviousYear: 1.5, PropertyAverage: 1.6,
			Unit: consumption.UnitCubicMeters,
		},
		Heizung: consumption.ConsumptionData{
			CurrentMonth: 320.5, PreviousYear: 290, PropertyAverage: 310.75,
			Unit: consumption.UnitKilowattHours,
		},
	}
}

func TestFormatNumberGerman(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{2.345, "2,345"},
		{290, "290,000"},
		{0, "0,000"},
		{310.75, "310,750"},
	}
	for _, c := range cases {
		if got := FormatNumberGerman(c.in); got != c.want {
			t.Errorf("FormatNumberGerman(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(sampleParsedMessage()); got != "Verbrauchswerte für Dezember 2025" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestFormatBody(t *testing.T) {
	body := FormatBody(sampleParsedMessage(), "Liebe Mieterin", "")

	if !strings.HasPrefix(body, "Liebe Mieterin\n\nhier deine Verbrauchswerte für den Monat Dezember 2025:") {
		t.Errorf("unexpected body prefix: %q", body[:80])
	}

	for _, want := range []string{
		"Kaltwasser\nDezember 2025: 2,345 m³\nDezember 2024: 2,100 m³",
		"Durchschnitt der Liegenschaft Dezember 2025: 2,800 m³ (Gesamtverbrauch Liegenschaft / Anzahl Einheiten)",
		"Warmwasser\nDezember 2025: 1,234 m³",
		"Heizung\nDezember 2025: 320,500 kWh\nDezember 2024: 290,000 kWh",
		"Heizung auf Basis des Durchschnitts der Liegenschaft Dezember 2025: 310,750 kWh (Gesamtverbrauch Heizung / Gesamt Wohnfläche x Wohnfläche Einheit)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\nbody:\n%s", want, body)
		}
	}
}

func TestFormatBodySignatureNewlines(t *testing.T) {
	body := FormatBody(sampleParsedMessage(), "Hallo", `Viele Grüße\nDie Verwaltung`)
	if !strings.HasSuffix(body, "Viele Grüße\nDie Verwaltung") {
		t.Errorf("signature newlines not expanded: %q", body[len(body)-40:])
	}
}

func TestSplitAddresses(t *testing.T) {
	got := splitAddresses(" a@example.org, b@example.org ,,c@example.org")
	if len(got) != 3 || got[0] != "a@example.org" || got[2] != "c@example.org" {
		t.Errorf("unexpected result %v", got)
	}
	if got := splitAddresses(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
