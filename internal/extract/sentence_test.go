package extract

import "testing"

func TestIsSentenceFragment(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", false},
		{"name", "Max Mustermann", false},
		{"number", "KD-482910", false},
		{"phone", "0170 1234567", false},
		{"date", "12.04.2019", false},
		{"short status", "In Zustellung", false},
		{"action verb sollten", "Wir sollten den Kunden kontaktieren und die Lieferung nochmals prüfen", true},
		{"action verb bitte", "Bitte Rechnung erneut senden", true},
		{"lowercase long start", "der kunde wartet schon lange", true},
		{"lowercase short", "dhl", false},
		{"many words no digits", "Der Karton kam offenbar beschädigt beim Nachbarn im dritten Stock an", true},
		{"many words with digits", "Paket 123 am Montag beim Nachbarn im dritten Stock links abgegeben worden", false},
		{"address with digit", "Musterstraße 12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSentenceFragment(tt.value); got != tt.want {
				t.Errorf("isSentenceFragment(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsLongFormLabel(t *testing.T) {
	if !isLongFormLabel("Anliegen") || !isLongFormLabel("Empfohlene Aktion") {
		t.Error("expected long-form labels to be allowed")
	}
	if isLongFormLabel("Kunde") || isLongFormLabel("Telefon") {
		t.Error("short labels must not be long-form")
	}
}
