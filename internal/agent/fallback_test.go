package agent

import (
	"strings"
	"testing"
)

func TestFallbackSummaryOrdersKnownSections(t *testing.T) {
	outputs := []toolOutput{
		{Name: "ticket_history", Content: "Offene Tickets: 1"},
		{Name: "customer_lookup", Content: "Kunde: Max Mustermann"},
		{Name: "shipment_status", Content: "Versandstatus: In Zustellung"},
	}
	got := fallbackSummary(outputs)

	kunde := strings.Index(got, "Kundendaten")
	versand := strings.Index(got, "Versandstatus:")
	tickets := strings.Index(got, "Tickets")
	if kunde < 0 || versand < 0 || tickets < 0 {
		t.Fatalf("missing sections in %q", got)
	}
	if !(kunde < versand && versand < tickets) {
		t.Errorf("section order wrong: kunde=%d versand=%d tickets=%d", kunde, versand, tickets)
	}
	if !strings.Contains(got, "Max Mustermann") {
		t.Errorf("content dropped: %q", got)
	}
}

func TestFallbackSummarySkipsErrorOutputs(t *testing.T) {
	outputs := []toolOutput{
		{Name: "customer_lookup", Content: `{"error":"not found"}`, IsError: true},
	}
	got := fallbackSummary(outputs)
	if strings.Contains(got, "not found") {
		t.Errorf("error output leaked into summary: %q", got)
	}
	if !strings.Contains(got, "Bitte manuell prüfen") {
		t.Errorf("all-error fallback should ask for manual review, got %q", got)
	}
}

func TestFallbackSummaryNeverEmpty(t *testing.T) {
	if got := fallbackSummary(nil); strings.TrimSpace(got) == "" {
		t.Fatal("fallback summary must never be empty")
	}
}

func TestFallbackSummaryIncludesUnknownTools(t *testing.T) {
	outputs := []toolOutput{
		{Name: "warehouse_check", Content: "Lagerbestand: 3"},
	}
	got := fallbackSummary(outputs)
	if !strings.Contains(got, "warehouse_check") || !strings.Contains(got, "Lagerbestand: 3") {
		t.Errorf("unknown tool output dropped: %q", got)
	}
}

func TestFallbackSummaryDeterministic(t *testing.T) {
	outputs := []toolOutput{
		{Name: "customer_lookup", Content: "Kunde: Erika"},
		{Name: "order_history", Content: "Bestellungen: 4"},
	}
	first := fallbackSummary(outputs)
	second := fallbackSummary(outputs)
	if first != second {
		t.Error("fallback summary not deterministic for identical input")
	}
}

func TestTruncateRunes(t *testing.T) {
	short := "kurz"
	if got := truncateRunes(short, 10); got != short {
		t.Errorf("short strings must pass through, got %q", got)
	}
	long := strings.Repeat("ü", 30)
	got := truncateRunes(long, 10)
	if !strings.HasSuffix(got, "[... gekürzt]") {
		t.Errorf("marker missing: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("ü", 10)) {
		t.Errorf("cut not at rune boundary: %q", got)
	}
}
