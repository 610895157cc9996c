// Package extract turns the agent's free-form answer into validated facts,
// a suggested reply, a phone number, and tags. It prefers a structured JSON
// block when the model produced one and falls back to regex heuristics over
// the raw text. Parse never fails; worst case it returns an empty result.
package extract

import (
	"regexp"
	"strings"

	"github.com/maildeskhq/maildesk/pkg/models"
)

const (
	maxLabelLen     = 30
	maxValueLen     = 100
	maxLongFormLen  = 80
	truncationMark  = "…"
	maxTags         = 6
	maxSummaryRunes = 600
)

// Fact source paths reported in Result.Source.
const (
	SourceBlock = "block"
	SourceRegex = "regex"
)

// Result is everything Parse could recover from one answer.
type Result struct {
	Summary        string
	Facts          []models.Fact
	SuggestedReply string
	Phone          string
	Tags           []string

	// Source reports which path produced Facts: SourceBlock when a valid
	// fenced JSON block was found, SourceRegex otherwise.
	Source string
}

var (
	replyBlockRe   = regexp.MustCompile("(?s)```reply\\s*(.+?)```")
	replySectionRe = regexp.MustCompile(`(?si)antwortvorschlag\s*:\s*(.+?)(?:\n\s*\n|\z)`)
	phoneLooseRe   = regexp.MustCompile(`(?i)(?:telefon|tel\.?|mobil|handy)[ \t]*:?[ \t]*(\+?[0-9][0-9 \t/\-().]{3,24}[0-9])`)
	tagsLineRe     = regexp.MustCompile(`(?mi)^[ \t*-]*tags\s*:\s*(.+)$`)
	fencedAnyRe    = regexp.MustCompile("(?s)```[a-z]*\\s*.+?```")
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// Parse extracts structured data from the agent's final answer.
func Parse(text string) Result {
	r := Result{
		Summary:        cleanSummary(text),
		SuggestedReply: extractReply(text),
		Phone:          extractLoosePhone(text),
		Tags:           extractTags(text),
	}

	if candidates, ok := parseFactsBlock(text); ok {
		r.Source = SourceBlock
		r.Facts = factsFromCandidates(candidates)
		return r
	}
	r.Source = SourceRegex
	r.Facts = factsFromPatterns(text)
	return r
}

// factsFromCandidates filters and normalizes entries from the JSON fast path.
func factsFromCandidates(candidates []factCandidate) []models.Fact {
	var facts []models.Fact
	for _, c := range candidates {
		if isSentenceFragment(c.Value) && !isLongFormLabel(c.Label) {
			continue
		}
		facts = append(facts, clampFact(models.Fact{
			Icon:  models.NormalizeFactIcon(c.Icon),
			Label: c.Label,
			Value: c.Value,
		}))
	}
	return facts
}

// factsFromPatterns runs the ordered regex battery over the raw text.
func factsFromPatterns(text string) []models.Fact {
	var facts []models.Fact
	for _, fn := range factExtractors {
		fact, ok := fn(text)
		if !ok {
			continue
		}
		if isSentenceFragment(fact.Value) && !isLongFormLabel(fact.Label) {
			continue
		}
		facts = append(facts, clampFact(fact))
	}
	return facts
}

// clampFact enforces the label and value length bounds.
func clampFact(f models.Fact) models.Fact {
	f.Label = truncateRunes(f.Label, maxLabelLen)
	limit := maxValueLen
	if isLongFormLabel(f.Label) {
		limit = maxLongFormLen
	}
	f.Value = truncateRunes(f.Value, limit)
	return f
}

// extractReply looks for a fenced reply block first, then for an
// "Antwortvorschlag:" section.
func extractReply(text string) string {
	if m := replyBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := replySectionRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractLoosePhone finds a customer phone number for the click-to-call
// affordance, independent of the fact battery.
func extractLoosePhone(text string) string {
	value := firstGroup(phoneLooseRe, text)
	if !phoneShape(value) {
		return ""
	}
	return value
}

// extractTags reads the trailing "Tags:" line.
func extractTags(text string) []string {
	m := tagsLineRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(m[1], ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// cleanSummary strips fenced blocks and the tags line from the narrative so
// the remainder reads as the item summary.
func cleanSummary(text string) string {
	out := fencedAnyRe.ReplaceAllString(text, "")
	out = tagsLineRe.ReplaceAllString(out, "")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	return truncateRunes(out, maxSummaryRunes)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + truncationMark
}
