package agent

import (
	"strings"
	"testing"

	"github.com/maildeskhq/maildesk/pkg/models"
)

func TestRenderItemMessage(t *testing.T) {
	msg := renderItemMessage(testItem())
	if msg.Role != RoleUser {
		t.Errorf("role = %q", msg.Role)
	}
	for _, want := range []string{
		"Betreff: Frage zu Bestellung B-1001",
		"Von: Max Mustermann <max@example.de>",
		"Empfangen: 14.03.2025 09:30",
		"Wo bleibt meine Bestellung?",
	} {
		if !strings.Contains(msg.Content, want) {
			t.Errorf("content missing %q:\n%s", want, msg.Content)
		}
	}
	if len(msg.Images) != 0 {
		t.Errorf("images = %d, want none", len(msg.Images))
	}
}

func TestRenderItemMessageAttachments(t *testing.T) {
	item := testItem()
	item.Attachments = []models.Attachment{
		{Filename: "rechnung.pdf", ContentType: "application/pdf", Size: 186000},
		{
			Filename:    "foto.jpg",
			ContentType: "image/jpeg",
			Size:        2 << 20,
			Inline:      true,
			DataURL:     "data:image/jpeg;base64,AAAA",
		},
		{Filename: "anleitung.png", ContentType: "image/png"}, // no data, text only
	}

	msg := renderItemMessage(item)
	if !strings.Contains(msg.Content, "Anhänge:") {
		t.Fatalf("attachment section missing:\n%s", msg.Content)
	}
	if !strings.Contains(msg.Content, "rechnung.pdf (application/pdf, 182 kB)") {
		t.Errorf("pdf line wrong:\n%s", msg.Content)
	}
	if !strings.Contains(msg.Content, "[eingebettet]") {
		t.Errorf("inline marker missing:\n%s", msg.Content)
	}
	if len(msg.Images) != 1 || msg.Images[0] != "data:image/jpeg;base64,AAAA" {
		t.Errorf("images = %v, want the inline jpg only", msg.Images)
	}
	if !strings.Contains(msg.Content, "1 Bild(er)") {
		t.Errorf("image note missing:\n%s", msg.Content)
	}
}

func TestRenderItemMessageTruncatesBody(t *testing.T) {
	item := testItem()
	item.BodyText = strings.Repeat("x", maxBodyRunes+500)
	msg := renderItemMessage(item)
	if !strings.Contains(msg.Content, "[... gekürzt]") {
		t.Error("oversized body not truncated")
	}
}

func TestRenderItemMessageWithoutName(t *testing.T) {
	item := testItem()
	item.FromName = ""
	msg := renderItemMessage(item)
	if !strings.Contains(msg.Content, "Von: max@example.de") {
		t.Errorf("plain address line missing:\n%s", msg.Content)
	}
	if strings.Contains(msg.Content, "<max@example.de>") {
		t.Errorf("angle form used without a name:\n%s", msg.Content)
	}
}
