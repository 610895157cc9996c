// Package models provides domain types for the maildesk inbox pipeline.
package models

import (
	"strings"
	"time"
)

// FactIcon identifies the dashboard glyph rendered next to a fact.
// The vocabulary is closed; anything else collapses to FactIconInfo.
type FactIcon string

const (
	FactIconPerson     FactIcon = "person"
	FactIconBuilding   FactIcon = "building"
	FactIconMail       FactIcon = "mail"
	FactIconPhone      FactIcon = "phone"
	FactIconHome       FactIcon = "home"
	FactIconCalendar   FactIcon = "calendar"
	FactIconEuro       FactIcon = "euro"
	FactIconPackage    FactIcon = "package"
	FactIconTruck      FactIcon = "truck"
	FactIconTicket     FactIcon = "ticket"
	FactIconCreditCard FactIcon = "credit-card"
	FactIconAlert      FactIcon = "alert"
	FactIconCheck      FactIcon = "check"
	FactIconInfo       FactIcon = "info"
)

var knownIcons = map[FactIcon]bool{
	FactIconPerson:     true,
	FactIconBuilding:   true,
	FactIconMail:       true,
	FactIconPhone:      true,
	FactIconHome:       true,
	FactIconCalendar:   true,
	FactIconEuro:       true,
	FactIconPackage:    true,
	FactIconTruck:      true,
	FactIconTicket:     true,
	FactIconCreditCard: true,
	FactIconAlert:      true,
	FactIconCheck:      true,
	FactIconInfo:       true,
}

// NormalizeFactIcon clamps an arbitrary icon string to the known vocabulary.
func NormalizeFactIcon(s string) FactIcon {
	icon := FactIcon(strings.ToLower(strings.TrimSpace(s)))
	if knownIcons[icon] {
		return icon
	}
	return FactIconInfo
}

// Fact is a single validated (label, value) pair extracted from agent output.
type Fact struct {
	Icon  FactIcon `json:"icon"`
	Label string   `json:"label"`
	Value string   `json:"value"`
}

// Attachment describes a file attached to an inbox item.
type Attachment struct {
	Filename    string `json:"filename" yaml:"filename"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Inline      bool   `json:"inline,omitempty" yaml:"inline,omitempty"`
	DataURL     string `json:"data_url,omitempty" yaml:"data_url,omitempty"` // populated for inline images only
}

// IsImage reports whether the attachment is an image by content type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// Item is a single email in the support inbox. Identity and body fields are
// owned by mailbox synchronization; the pipeline only writes the AI-derived
// fields below the marker comment.
type Item struct {
	ID          string       `json:"id" yaml:"id"`
	Subject     string       `json:"subject" yaml:"subject"`
	FromName    string       `json:"from_name,omitempty" yaml:"from_name,omitempty"`
	FromAddress string       `json:"from_address" yaml:"from_address"`
	ReceivedAt  time.Time    `json:"received_at" yaml:"received_at"`
	BodyText    string       `json:"body_text,omitempty" yaml:"body_text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	// AI-derived fields, replaced wholesale on each processing run.
	AIProcessing     bool       `json:"ai_processing" yaml:"-"`
	AIProcessedAt    *time.Time `json:"ai_processed_at,omitempty" yaml:"-"`
	Summary          string     `json:"summary,omitempty" yaml:"-"`
	Tags             []string   `json:"tags,omitempty" yaml:"-"`
	Facts            []Fact     `json:"facts,omitempty" yaml:"-"`
	SuggestedReply   string     `json:"suggested_reply,omitempty" yaml:"-"`
	SuggestedSubject string     `json:"suggested_subject,omitempty" yaml:"-"`
	CustomerPhone    string     `json:"customer_phone,omitempty" yaml:"-"`
}

// Processed reports whether the item already carries AI results.
func (i *Item) Processed() bool {
	return i.AIProcessedAt != nil
}

// ResetAI clears every AI-derived field, returning the item to the
// unprocessed state used by recalculate runs.
func (i *Item) ResetAI() {
	i.AIProcessing = false
	i.AIProcessedAt = nil
	i.Summary = ""
	i.Tags = nil
	i.Facts = nil
	i.SuggestedReply = ""
	i.SuggestedSubject = ""
	i.CustomerPhone = ""
}

// Digest returns the trimmed view of an item carried on progress events.
func (i *Item) Digest() ItemDigest {
	return ItemDigest{
		ID:          i.ID,
		Subject:     i.Subject,
		FromName:    i.FromName,
		FromAddress: i.FromAddress,
		Summary:     i.Summary,
		Tags:        i.Tags,
		Facts:       len(i.Facts),
	}
}

// ItemDigest is the compact item representation sent to live observers.
type ItemDigest struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	FromName    string   `json:"from_name,omitempty"`
	FromAddress string   `json:"from_address"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Facts       int      `json:"facts"`
}
