package agent

import (
	"fmt"
	"strings"

	"github.com/maildeskhq/maildesk/pkg/models"
)

// maxBodyRunes bounds the email body included in the opening message so a
// pathological mail cannot blow up the provider request.
const maxBodyRunes = 16000

// renderItemMessage builds the opening user message describing one inbox
// item. Inline image attachments ride along as data URLs so vision-capable
// providers can see what the customer sent; everything else is summarized
// as text, which matters when the mail itself is mostly an attachment
// ("anbei das Foto der beschädigten Ware").
func renderItemMessage(item *models.Item) Message {
	var b strings.Builder

	b.WriteString("Analysiere die folgende Kundenanfrage.\n\n")
	fmt.Fprintf(&b, "Betreff: %s\n", item.Subject)
	if item.FromName != "" {
		fmt.Fprintf(&b, "Von: %s <%s>\n", item.FromName, item.FromAddress)
	} else {
		fmt.Fprintf(&b, "Von: %s\n", item.FromAddress)
	}
	if !item.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "Empfangen: %s\n", item.ReceivedAt.Format("02.01.2006 15:04"))
	}

	body := strings.TrimSpace(item.BodyText)
	if runes := []rune(body); len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes]) + "\n[... gekürzt]"
	}
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")

	var images []string
	if len(item.Attachments) > 0 {
		b.WriteString("\nAnhänge:\n")
		for _, att := range item.Attachments {
			b.WriteString("- ")
			b.WriteString(describeAttachment(att))
			b.WriteString("\n")
			if att.IsImage() && att.DataURL != "" {
				images = append(images, att.DataURL)
			}
		}
		if len(images) > 0 {
			fmt.Fprintf(&b, "\n%d Bild(er) sind dieser Nachricht beigefügt.\n", len(images))
		}
	}

	return Message{Role: RoleUser, Content: b.String(), Images: images}
}

func describeAttachment(att models.Attachment) string {
	parts := []string{att.Filename}
	if att.ContentType != "" {
		parts = append(parts, att.ContentType)
	}
	if att.Size > 0 {
		parts = append(parts, formatSize(att.Size))
	}
	desc := parts[0]
	if len(parts) > 1 {
		desc += " (" + strings.Join(parts[1:], ", ") + ")"
	}
	if att.Inline {
		desc += " [eingebettet]"
	}
	return desc
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f kB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
