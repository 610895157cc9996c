package extract

import (
	"strings"
	"unicode"
)

// actionVerbs are German verb forms that signal prose leaking into a field
// meant for a short fact ("Wir sollten den Kunden kontaktieren ...").
// The list is heuristic and deliberately small.
var actionVerbs = []string{
	"sollte", "sollten", "muss", "müssen", "müsste", "müssten",
	"würde", "würden", "könnte", "könnten", "kann", "können",
	"bitte", "kontaktieren", "prüfen", "empfehle", "empfehlen",
	"senden", "schicken", "antworten", "melden", "klären",
}

// longFormLabels may carry a whole sentence; everything else is expected to
// be a short fact like a name, a number, or a date.
var longFormLabels = map[string]bool{
	"Anliegen":          true,
	"Empfohlene Aktion": true,
}

// isLongFormLabel reports whether a label is allowed to hold sentence-like values.
func isLongFormLabel(label string) bool {
	return longFormLabels[strings.TrimSpace(label)]
}

// isSentenceFragment reports whether a candidate value reads like prose
// rather than a short fact. It fires when the value contains an action-verb
// token, starts lowercase while being longer than 15 characters, or has more
// than 8 words without any digit or @ that would mark it as data.
func isSentenceFragment(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for _, verb := range actionVerbs {
			if token == verb {
				return true
			}
		}
	}

	runes := []rune(trimmed)
	if unicode.IsLower(runes[0]) && len(runes) > 15 {
		return true
	}

	words := strings.Fields(trimmed)
	if len(words) > 8 && !strings.ContainsAny(trimmed, "0123456789@") {
		return true
	}

	return false
}
