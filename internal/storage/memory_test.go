package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySaveMessageIdempotency(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	msg := ConsumptionMessage{
		ContentHash: "abc123",
		MessageDate: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		RawMessage:  "Verbrauchswerte ...",
		ParsedData:  []byte(`{"month":"Dezember"}`),
	}

	exists, err := st.MessageExists(ctx, msg.ContentHash)
	if err != nil || exists {
		t.Fatalf("expected no message yet, exists=%v err=%v", exists, err)
	}

	if err := st.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	exists, err = st.MessageExists(ctx, msg.ContentHash)
	if err != nil || !exists {
		t.Fatalf("expected message to exist, exists=%v err=%v", exists, err)
	}

	if err := st.SaveMessage(ctx, msg); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate save, got %v", err)
	}
}

func TestMemoryListMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	dates := []time.Time{
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		err := st.SaveMessage(ctx, ConsumptionMessage{
			ContentHash: string(rune('a' + i)),
			MessageDate: d,
		})
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	msgs, err := st.ListMessages(ctx, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if !msgs[0].MessageDate.After(msgs[1].MessageDate) || !msgs[1].MessageDate.After(msgs[2].MessageDate) {
		t.Errorf("messages not ordered newest first: %v", msgs)
	}

	latest, err := st.LatestMessage(ctx)
	if err != nil || latest == nil {
		t.Fatalf("latest failed: %v", err)
	}
	if !latest.MessageDate.Equal(dates[1]) {
		t.Errorf("unexpected latest message date: %v", latest.MessageDate)
	}

	limited, err := st.ListMessages(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("expected limit of 2, got %d err=%v", len(limited), err)
	}
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if v, err := st.GetSetting(ctx, "refresh_interval_seconds"); err != nil || v != "" {
		t.Fatalf("expected empty setting, got %q err=%v", v, err)
	}
	if err := st.SetSetting(ctx, "refresh_interval_seconds", "3600"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, _ := st.GetSetting(ctx, "refresh_interval_seconds"); v != "3600" {
		t.Errorf("unexpected setting value %q", v)
	}
}
