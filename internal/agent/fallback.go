package agent

import (
	"strings"
)

// toolOutput is one collected tool execution, kept around so a provider
// failure mid-conversation does not throw away lookups that already
// succeeded.
type toolOutput struct {
	Name    string
	Content string
	IsError bool
}

// fallbackSections fixes the order in which known lookups appear in a
// degraded summary.
var fallbackSections = []struct {
	tool    string
	heading string
}{
	{"customer_lookup", "Kundendaten"},
	{"order_history", "Bestellhistorie"},
	{"shipment_status", "Versandstatus"},
	{"ticket_history", "Tickets"},
}

const maxFallbackSectionRunes = 600

// fallbackSummary assembles a summary from already-collected tool outputs
// when the model cannot produce a final answer. The output is deterministic
// for a given input and never empty.
func fallbackSummary(outputs []toolOutput) string {
	var b strings.Builder
	b.WriteString("Automatische Zusammenfassung (Modellantwort nicht verfügbar).\n")

	used := make([]bool, len(outputs))
	sections := 0
	for _, sec := range fallbackSections {
		for i, out := range outputs {
			if out.Name != sec.tool || out.IsError {
				continue
			}
			used[i] = true
			content := strings.TrimSpace(out.Content)
			if content == "" {
				continue
			}
			b.WriteString("\n")
			b.WriteString(sec.heading)
			b.WriteString(":\n")
			b.WriteString(truncateRunes(content, maxFallbackSectionRunes))
			b.WriteString("\n")
			sections++
		}
	}

	// Lookups outside the known set still count as partial work.
	for i, out := range outputs {
		if used[i] || out.IsError {
			continue
		}
		content := strings.TrimSpace(out.Content)
		if content == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(out.Name)
		b.WriteString(":\n")
		b.WriteString(truncateRunes(content, maxFallbackSectionRunes))
		b.WriteString("\n")
		sections++
	}

	if sections == 0 {
		return "Die Anfrage konnte nicht automatisch analysiert werden. " +
			"Die Nachschlagedienste lieferten keine verwertbaren Ergebnisse. " +
			"Bitte manuell prüfen."
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " [... gekürzt]"
}
