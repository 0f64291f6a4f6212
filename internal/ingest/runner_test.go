package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/unofficial-homecase/homecasebot/internal/consumption"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

const validNotice = `Verbrauchswerte

Liebe Mieterinnen und Mieter,

anbei Ihre Verbrauchswerte für Dezember 2025.

Kaltwasser
Dezember 2025: 2,345 m³
Dezember 2024: 2,100 m³
Durchschnitt der Liegenschaft Dezember 2025: 2,800 m³

Warmwasser
Dezember 2025: 1,234 m³
Dezember 2024: 1,500 m³
Durchschnitt der Liegenschaft Dezember 2025: 1,600 m³

Heizung
Dezember 2025: 320,500 kWh
Dezember 2024: 290,000 kWh
Heizung auf Basis des Durchschnitts der Liegenschaft Dezember 2025: 310,750 kWh

Falls Sie Fragen haben, wenden Sie sich an die Verwaltung.`

type fakeLocator struct {
	messages  []string
	loginErr  error
	loggedIn  bool
	navigated bool
}

func (f *fakeLocator) Login(ctx context.Context) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}

func (f *fakeLocator) NavigateToMessages(ctx context.Context) error {
	f.navigated = true
	return nil
}

func (f *fakeLocator) FindConsumptionMessages(ctx context.Context, limit int) ([]string, error) {
	if limit > 0 && len(f.messages) > limit {
		return f.messages[:limit], nil
	}
	return f.messages, nil
}

type fakeNotifier struct {
	sent    []*consumption.ParsedMessage
	sendErr error
}

func (f *fakeNotifier) SendConsumptionReport(ctx context.Context, msg *consumption.ParsedMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestRunSavesAndNotifiesNewMessage(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	locator := &fakeLocator{messages: []string{validNotice}}
	notifier := &fakeNotifier{}

	runner := NewRunner(st, locator, notifier, nil, 24)
	result, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !locator.loggedIn || !locator.navigated {
		t.Error("expected login and navigation to happen")
	}
	if result.Found != 1 || result.Saved != 1 || result.Skipped != 0 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Month != "Dezember" {
		t.Errorf("expected one notification for Dezember, got %v", notifier.sent)
	}

	saved, err := st.GetMessage(ctx, consumption.ContentHash(validNotice))
	if err != nil || saved == nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if saved.RawMessage != validNotice {
		t.Error("raw message not stored verbatim")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	locator := &fakeLocator{messages: []string{validNotice}}
	notifier := &fakeNotifier{}
	runner := NewRunner(st, locator, notifier, nil, 24)

	if _, err := runner.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	result, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if result.Saved != 0 || result.Skipped != 1 {
		t.Errorf("expected second run to skip, got %+v", result)
	}
	if !result.NoNewMessages() {
		t.Error("expected NoNewMessages to be true")
	}
	if len(notifier.sent) != 1 {
		t.Errorf("expected no second notification, got %d", len(notifier.sent))
	}
}

func TestRunNoMessagesFound(t *testing.T) {
	st := storage.NewMemory()
	runner := NewRunner(st, &fakeLocator{}, &fakeNotifier{}, nil, 24)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Found != 0 || !result.NoNewMessages() {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunContinuesPastParseFailures(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	locator := &fakeLocator{messages: []string{
		"Verbrauchswerte\n\nnot actually parseable",
		validNotice,
	}}
	notifier := &fakeNotifier{}
	runner := NewRunner(st, locator, notifier, nil, 24)

	result, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Failed != 1 || result.Saved != 1 {
		t.Errorf("expected 1 failure and 1 save, got %+v", result)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("expected notification for the parseable message, got %d", len(notifier.sent))
	}
}

func TestRunLoginFailureAborts(t *testing.T) {
	st := storage.NewMemory()
	locator := &fakeLocator{loginErr: errors.New("bad credentials")}
	runner := NewRunner(st, locator, &fakeNotifier{}, nil, 24)

	_, err := runner.Run(context.Background())
	if err == nil || !errors.Is(err, locator.loginErr) {
		t.Fatalf("expected login error, got %v", err)
	}
}

func TestRunNotificationFailureReturnsError(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	locator := &fakeLocator{messages: []string{validNotice}}
	notifier := &fakeNotifier{sendErr: errors.New("smtp down")}
	runner := NewRunner(st, locator, notifier, nil, 24)

	result, err := runner.Run(ctx)
	if err == nil {
		t.Fatal("expected notification error")
	}
	// The message stays persisted: a failed email must not cause a re-send
	// of the consumption data on the next run, only a fresh scrape.
	if result.Saved != 1 {
		t.Errorf("expected message to be saved despite email failure, got %+v", result)
	}
}
