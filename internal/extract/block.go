package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// The fast path accepts either a bare facts array or an object wrapping it
// in a "facts" field. Values may arrive as numbers ("Offene Tickets": 2),
// so the schema admits scalars and the candidates coerce them to strings.
var factsSchema = jsonschema.MustCompileString("facts.schema.json", `{
	"oneOf": [
		{"$ref": "#/$defs/factList"},
		{
			"type": "object",
			"required": ["facts"],
			"properties": {"facts": {"$ref": "#/$defs/factList"}}
		}
	],
	"$defs": {
		"factList": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["label", "value"],
				"properties": {
					"label": {"type": "string"},
					"value": {"type": ["string", "number", "boolean"]},
					"icon": {"type": "string"}
				}
			}
		}
	}
}`)

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.+?)```")

type factCandidate struct {
	Label string
	Value string
	Icon  string
}

// parseFactsBlock implements the structured fast path: exactly one fenced
// JSON block whose content validates as a facts list. Any deviation returns
// ok=false so the caller falls through to the regex battery.
func parseFactsBlock(text string) ([]factCandidate, bool) {
	matches := fencedJSONRe.FindAllStringSubmatch(text, -1)
	if len(matches) != 1 {
		return nil, false
	}

	var parsed any
	if err := json5.Unmarshal([]byte(matches[0][1]), &parsed); err != nil {
		return nil, false
	}
	if err := factsSchema.Validate(parsed); err != nil {
		return nil, false
	}

	list, ok := parsed.([]any)
	if !ok {
		obj := parsed.(map[string]any)
		list = obj["facts"].([]any)
	}

	candidates := make([]factCandidate, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		c := factCandidate{
			Label: strings.TrimSpace(stringify(obj["label"])),
			Value: strings.TrimSpace(stringify(obj["value"])),
		}
		if icon, ok := obj["icon"].(string); ok {
			c.Icon = icon
		}
		if c.Label == "" || c.Value == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		if val {
			return "ja"
		}
		return "nein"
	default:
		return ""
	}
}
