package store

import (
	"context"
	"testing"
	"time"

	"github.com/maildeskhq/maildesk/pkg/models"
)

func testItem(id string, receivedAt time.Time) *models.Item {
	return &models.Item{
		ID:          id,
		Subject:     "Frage zu Bestellung",
		FromName:    "Max Mustermann",
		FromAddress: "max@example.de",
		ReceivedAt:  receivedAt,
		BodyText:    "Wo bleibt meine Lieferung?",
	}
}

func TestMemoryStoreUpsertGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	item := testItem("item-1", time.Now())
	item.Attachments = []models.Attachment{{Filename: "rechnung.pdf", ContentType: "application/pdf"}}
	if err := s.Upsert(ctx, item); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Subject != "Frage zu Bestellung" {
		t.Fatalf("expected item, got %+v", got)
	}

	// Mutating the returned copy must not affect the stored item.
	got.Subject = "changed"
	got.Attachments[0].Filename = "changed.pdf"
	again, _ := s.Get(ctx, "item-1")
	if again.Subject != "Frage zu Bestellung" || again.Attachments[0].Filename != "rechnung.pdf" {
		t.Fatalf("stored item mutated through returned copy: %+v", again)
	}

	missing, err := s.Get(ctx, "no-such-item")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing item, got %+v", missing)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Upsert(ctx, testItem(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	items, err := s.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != "c" || items[2].ID != "a" {
		t.Fatalf("expected newest first, got %s..%s", items[0].ID, items[2].ID)
	}

	page, err := s.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Fatalf("expected page [b], got %+v", page)
	}
}

func TestMemoryStoreListUnprocessed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Upsert(ctx, testItem(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	// Mark b processed so only a and c remain candidates.
	b, _ := s.Get(ctx, "b")
	b.Summary = "done"
	if err := s.UpdateAI(ctx, b); err != nil {
		t.Fatalf("update ai: %v", err)
	}

	items, err := s.ListUnprocessed(ctx, 10)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "c" {
		t.Fatalf("expected oldest-first [a c], got %+v", items)
	}

	limited, err := s.ListUnprocessed(ctx, 1)
	if err != nil {
		t.Fatalf("list unprocessed limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "a" {
		t.Fatalf("expected [a], got %+v", limited)
	}
}

func TestMemoryStoreUpdateAI(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, testItem("item-1", time.Now())); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.SetProcessing(ctx, "item-1", true); err != nil {
		t.Fatalf("set processing: %v", err)
	}
	got, _ := s.Get(ctx, "item-1")
	if !got.AIProcessing {
		t.Fatalf("expected ai_processing set")
	}

	got.Summary = "Kunde fragt nach Lieferstatus"
	got.Tags = []string{"versand"}
	got.Facts = []models.Fact{{Icon: models.FactIconPerson, Label: "Kunde", Value: "Max Mustermann"}}
	got.CustomerPhone = "0170 1234567"
	if err := s.UpdateAI(ctx, got); err != nil {
		t.Fatalf("update ai: %v", err)
	}

	updated, _ := s.Get(ctx, "item-1")
	if updated.AIProcessing {
		t.Fatalf("expected ai_processing cleared after update")
	}
	if updated.AIProcessedAt == nil {
		t.Fatalf("expected ai_processed_at stamped")
	}
	if updated.Summary != "Kunde fragt nach Lieferstatus" || len(updated.Facts) != 1 {
		t.Fatalf("ai fields not persisted: %+v", updated)
	}
}

func TestMemoryStoreResetAI(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		item := testItem(id, time.Now())
		if err := s.Upsert(ctx, item); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
		item.Summary = "zusammenfassung"
		if err := s.UpdateAI(ctx, item); err != nil {
			t.Fatalf("update ai %s: %v", id, err)
		}
	}

	if err := s.ResetAI(ctx, "a"); err != nil {
		t.Fatalf("reset ai: %v", err)
	}
	a, _ := s.Get(ctx, "a")
	if a.Summary != "" || a.AIProcessedAt != nil {
		t.Fatalf("expected cleared ai fields, got %+v", a)
	}
	b, _ := s.Get(ctx, "b")
	if b.Summary == "" {
		t.Fatalf("reset touched wrong item")
	}

	n, err := s.ResetAllAI(ctx)
	if err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset, got %d", n)
	}
	b, _ = s.Get(ctx, "b")
	if b.Summary != "" || b.AIProcessedAt != nil {
		t.Fatalf("expected all ai fields cleared, got %+v", b)
	}
}
