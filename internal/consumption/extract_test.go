package consumption

import (
	"strings"
	"testing"
)

func TestExtractReturnsFalseWithoutMarker(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	if _, ok := e.Extract("Willkommen im Mieterportal. Keine neuen Nachrichten."); ok {
		t.Fatal("expected no extraction without the marker keyword")
	}
}

func TestExtractStopsAtClosingPhrase(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	text := "Kopfzeile\n" + sampleMessage + "\nMit freundlichen Grüßen\nIhre Hausverwaltung"

	got, ok := e.Extract(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.HasPrefix(got, ConsumptionMarker) {
		t.Errorf("extraction should start at the marker, got %q...", got[:40])
	}
	if strings.Contains(got, "Falls Sie Fragen") {
		t.Error("extraction should stop before the closing phrase")
	}
	if strings.Contains(got, "Mit freundlichen") {
		t.Error("extraction should stop before the signature")
	}
	if !strings.Contains(got, "Heizung") {
		t.Error("extraction cut off the Heizung section")
	}
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	text := "Verbrauchswerte\r\nKaltwasser\t\tDezember\r2025\n\n\n\n\nEnde"

	got, ok := e.Extract(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if strings.Contains(got, "\r") {
		t.Error("carriage returns should be normalized away")
	}
	if strings.Contains(got, "\t") {
		t.Error("tabs should be collapsed to single spaces")
	}
	if strings.Contains(got, "\n\n\n") {
		t.Error("blank-line runs should be collapsed")
	}
}

func TestExtractRunsToEndWithoutCloser(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	text := "Verbrauchswerte für Januar 2025\nKaltwasser\n2025: 1,000 m³"

	got, ok := e.Extract(text)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if !strings.HasSuffix(got, "1,000 m³") {
		t.Errorf("extraction should run to end of text, got %q", got)
	}
}

// A short candidate carrying all three category keywords must beat longer
// candidates that carry none, as long as the keyword bonus exceeds the
// length difference.
func TestBestMessagePrefersKeywordRichCandidate(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())

	rich := "Verbrauchswerte\nKaltwasser Warmwasser Heizung"
	long := "Verbrauchswerte " + strings.Repeat("Lorem ipsum dolor sit amet. ", 30)
	longer := "Verbrauchswerte " + strings.Repeat("Portal Fußzeile Impressum Datenschutz. ", 30)

	got, ok := e.BestMessage([]string{long, rich, longer})
	if !ok {
		t.Fatal("expected a best message")
	}
	if !strings.Contains(got, "Kaltwasser") {
		t.Errorf("expected the keyword-rich candidate to win, got %q", got[:40])
	}
}

func TestBestMessageSkipsMarkerlessCandidates(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	if _, ok := e.BestMessage([]string{"kein Treffer", "auch nichts"}); ok {
		t.Fatal("expected no best message when no candidate has the marker")
	}
	if _, ok := e.BestMessage(nil); ok {
		t.Fatal("expected no best message for empty input")
	}
}

func TestDedupeNewestFirst(t *testing.T) {
	older := Candidate{Timestamp: "2025-11-01T08:00:00Z", Text: "Verbrauchswerte November"}
	newer := Candidate{Timestamp: "2025-12-01T08:00:00Z", Text: "Verbrauchswerte Dezember"}

	got := DedupeNewestFirst([]Candidate{older, newer}, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0] != newer.Text || got[1] != older.Text {
		t.Errorf("expected newest-first ordering, got %v", got)
	}
}

func TestDedupeCollapsesIdenticalText(t *testing.T) {
	text := "Verbrauchswerte  Dezember\n2025"
	reposted := Candidate{Timestamp: "2025-12-02T10:00:00Z", Text: text}
	original := Candidate{Timestamp: "2025-12-01T08:00:00Z", Text: "Verbrauchswerte Dezember 2025"}

	// Same content modulo whitespace: only the newer copy survives.
	got := DedupeNewestFirst([]Candidate{original, reposted}, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 message after dedupe, got %d", len(got))
	}
	if got[0] != text {
		t.Errorf("expected the newer copy to be retained, got %q", got[0])
	}
}

func TestDedupeAppliesLimit(t *testing.T) {
	var cands []Candidate
	for _, ts := range []string{"2025-01", "2025-02", "2025-03", "2025-04"} {
		cands = append(cands, Candidate{Timestamp: ts, Text: "Nachricht " + ts})
	}
	got := DedupeNewestFirst(cands, 2)
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
	if got[0] != "Nachricht 2025-04" {
		t.Errorf("expected newest message first, got %q", got[0])
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	if got := DedupeNewestFirst(nil, 5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestScoreCountsRunesNotBytes(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	// 12 runes, 13 bytes: m³ must count as two characters, not three bytes.
	if got := e.Score("2025: 1,5 m³"); got != 12 {
		t.Errorf("score = %d, want 12", got)
	}
}

func TestMarkerWindowCountsRunes(t *testing.T) {
	e := NewExtractor(ExtractorConfig{KeywordBonus: 500, MaxExtractLength: 20})
	text := ConsumptionMarker + " " + strings.Repeat("ä", 30)

	got, ok := e.markerWindow(text)
	if !ok {
		t.Fatal("expected a window starting at the marker")
	}
	want := ConsumptionMarker + " " + strings.Repeat("ä", 4)
	if got != want {
		t.Errorf("window = %q, want %q", got, want)
	}
}
