package consumption

import (
	"errors"
	"strings"
	"testing"
)

const sampleMessage = `Verbrauchswerte

Liebe Mieterinnen und Mieter,

hier Ihre Verbrauchswerte für den Monat Dezember 2025:

Kaltwasser
Dezember 2025: 2,345 m³
Dezember 2024: 2,100 m³
Durchschnitt der Liegenschaft Dezember 2025: 2,500 m³ (Gesamtverbrauch Liegenschaft / Anzahl Einheiten)

Warmwasser
Dezember 2025: 1,234 m³
Dezember 2024: 1,180 m³
Durchschnitt der Liegenschaft Dezember 2025: 1,400 m³ (Gesamtverbrauch Liegenschaft / Anzahl Einheiten)

Heizung
Dezember 2025: 450,500 kWh
Dezember 2024: 480,250 kWh
Heizung auf Basis des Durchschnitts der Liegenschaft Dezember 2025: 520,000 kWh (Gesamtverbrauch Heizung / Gesamt Wohnfläche x Wohnfläche Einheit)

Falls Sie Fragen zu Ihren Verbrauchswerten haben, wenden Sie sich bitte an die Hausverwaltung.`

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(sampleMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Month != "Dezember" {
		t.Errorf("unexpected month: %q", msg.Month)
	}
	if msg.Year != 2025 {
		t.Errorf("unexpected year: %d", msg.Year)
	}
	if got := msg.MessageDate.Format("2006-01-02"); got != "2025-12-01" {
		t.Errorf("unexpected message date: %s", got)
	}
	if len(msg.ContentHash) != 64 {
		t.Errorf("expected 64-char content hash, got %d chars", len(msg.ContentHash))
	}

	if msg.Kaltwasser.CurrentMonth != 2.345 || msg.Kaltwasser.PreviousYear != 2.1 {
		t.Errorf("unexpected Kaltwasser values: %+v", msg.Kaltwasser)
	}
	if msg.Kaltwasser.Unit != UnitCubicMeters {
		t.Errorf("unexpected Kaltwasser unit: %q", msg.Kaltwasser.Unit)
	}
	if msg.Warmwasser.PropertyAverage != 1.4 {
		t.Errorf("unexpected Warmwasser average: %v", msg.Warmwasser.PropertyAverage)
	}
	if msg.Heizung.Unit != UnitKilowattHours {
		t.Errorf("unexpected Heizung unit: %q", msg.Heizung.Unit)
	}
	if msg.RawMessage != sampleMessage {
		t.Errorf("raw message not preserved verbatim")
	}
}

// The Heizung average line begins with the literal word "Heizung". It must
// stay inside the Heizung section instead of being mistaken for a new
// section header, and it must not leak into the preceding Warmwasser
// section either.
func TestHeizungAverageLineStaysInSection(t *testing.T) {
	heizung, err := ParseConsumptionSection(sampleMessage, SectionHeizung)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if heizung.CurrentMonth != 450.5 {
		t.Errorf("unexpected current month: %v", heizung.CurrentMonth)
	}
	if heizung.PreviousYear != 480.25 {
		t.Errorf("unexpected previous year: %v", heizung.PreviousYear)
	}
	if heizung.PropertyAverage != 520.0 {
		t.Errorf("unexpected property average: %v", heizung.PropertyAverage)
	}

	warmwasser, err := ParseConsumptionSection(sampleMessage, SectionWarmwasser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warmwasser.Unit != UnitCubicMeters || warmwasser.CurrentMonth != 1.234 {
		t.Errorf("Warmwasser section polluted by Heizung lines: %+v", warmwasser)
	}
}

func TestParseMessageMissingSection(t *testing.T) {
	mutilated := strings.Replace(sampleMessage, "\nWarmwasser\n", "\n", 1)

	_, err := ParseMessage(mutilated)
	if err == nil {
		t.Fatal("expected error for missing Warmwasser section")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
	if nf.Section != SectionWarmwasser {
		t.Errorf("error should name Warmwasser, got %q", nf.Section)
	}
}

func TestParseDecimalSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12,345", 12.345},
		{"12.345", 12.345},
		{"0,5", 0.5},
	}
	for _, c := range cases {
		got, err := parseDecimal(c.in)
		if err != nil {
			t.Fatalf("parseDecimal(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("parseDecimal(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValueLinePatternAcceptsBothSeparators(t *testing.T) {
	section := `Kaltwasser
2025: 12,345 m³
2024: 12.345 m³
Durchschnitt der Liegenschaft: 13,000 m³`

	data, err := ParseConsumptionSection(section, SectionKaltwasser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.CurrentMonth != 12.345 || data.PreviousYear != 12.345 {
		t.Errorf("unexpected values: %+v", data)
	}
}

func TestParseMonthYear(t *testing.T) {
	month, year, err := ParseMonthYear("Ihre Werte für märz 2024 liegen vor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if month != "märz" || year != 2024 {
		t.Errorf("got %q %d", month, year)
	}

	if _, _, err := ParseMonthYear("no date in here"); err == nil {
		t.Error("expected error when month/year absent")
	}
}

func TestParseMessageRejectsImplausibleYear(t *testing.T) {
	old := strings.ReplaceAll(sampleMessage, "2025", "1999")
	_, err := ParseMessage(old)
	if err == nil {
		t.Fatal("expected error for year 1999")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestContentHashDeterministic(t *testing.T) {
	a := ContentHash(sampleMessage)
	b := ContentHash(sampleMessage)
	if a != b {
		t.Fatal("identical input must yield identical hash")
	}

	msg1, err := ParseMessage(sampleMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg2, err := ParseMessage(sampleMessage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg1.ContentHash != msg2.ContentHash {
		t.Error("parse is not deterministic")
	}
	if *msg1 != *msg2 {
		t.Error("parsed fields differ between identical inputs")
	}
}

func TestContentHashSensitivity(t *testing.T) {
	base := ContentHash(sampleMessage)
	for _, variant := range []string{
		sampleMessage + " ",
		strings.Replace(sampleMessage, "2,345", "2,346", 1),
		strings.ToLower(sampleMessage[:1]) + sampleMessage[1:],
	} {
		if ContentHash(variant) == base {
			t.Errorf("near-duplicate input produced identical hash")
		}
	}
}

func TestNewConsumptionDataValidation(t *testing.T) {
	if _, err := NewConsumptionData(-0.1, 1, 1, UnitCubicMeters); err == nil {
		t.Error("expected error for negative current month")
	}
	if _, err := NewConsumptionData(1, 1, 1, "liters"); err == nil {
		t.Error("expected error for unknown unit")
	}
	if _, err := NewConsumptionData(0, 0, 0, UnitKilowattHours); err != nil {
		t.Errorf("zero values should be valid: %v", err)
	}
}
