package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/crm"
)

// TicketHistoryTool lists a customer's support tickets.
type TicketHistoryTool struct {
	directory crm.Directory
}

// NewTicketHistoryTool creates a new ticket history tool.
func NewTicketHistoryTool(directory crm.Directory) *TicketHistoryTool {
	return &TicketHistoryTool{directory: directory}
}

func (t *TicketHistoryTool) Name() string {
	return "ticket_history"
}

func (t *TicketHistoryTool) Description() string {
	return "List a customer's support tickets, newest first. Requires the Kunden-ID from customer_lookup. Set open_only to see only tickets that still need attention."
}

func (t *TicketHistoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"customer_id": {
				"type": "string",
				"description": "Internal customer ID (the Kunden-ID line from customer_lookup)"
			},
			"open_only": {
				"type": "boolean",
				"description": "Only return tickets that are still open",
				"default": false
			}
		},
		"required": ["customer_id"]
	}`)
}

func (t *TicketHistoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		CustomerID string `json:"customer_id"`
		OpenOnly   bool   `json:"open_only"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse params: %w", err)
	}

	if t.directory == nil {
		return &agent.ToolResult{
			Content: "Die Kundendatenbank ist nicht konfiguriert.",
			IsError: true,
		}, nil
	}

	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return &agent.ToolResult{
			Content: "customer_id is required",
			IsError: true,
		}, nil
	}

	tickets, err := t.directory.TicketsByCustomer(ctx, customerID, input.OpenOnly)
	if err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Fehler beim Abruf der Tickets: %v", err),
			IsError: true,
		}, nil
	}
	if len(tickets) == 0 {
		if input.OpenOnly {
			return &agent.ToolResult{Content: "Keine offenen Tickets für diesen Kunden."}, nil
		}
		return &agent.ToolResult{Content: "Keine Tickets für diesen Kunden gefunden."}, nil
	}

	return &agent.ToolResult{Content: formatTickets(tickets, input.OpenOnly)}, nil
}

func formatTickets(tickets []crm.Ticket, openOnly bool) string {
	open := 0
	for _, tk := range tickets {
		if tk.Status == crm.TicketStatusOpen {
			open++
		}
	}

	var b strings.Builder
	if !openOnly {
		fmt.Fprintf(&b, "Tickets: %d\n", len(tickets))
	}
	fmt.Fprintf(&b, "Offene Tickets: %d\n\n", open)
	for _, tk := range tickets {
		line := "Ticket " + tk.ID
		if !tk.OpenedAt.IsZero() {
			line += " vom " + tk.OpenedAt.Format(dateLayout)
		}
		if tk.Subject != "" {
			line += ": " + tk.Subject
		}
		if tk.Status != "" {
			line += fmt.Sprintf(" (%s)", displayTicketStatus(tk.Status))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayTicketStatus maps stored status values to the German wording the
// dashboard shows.
func displayTicketStatus(status string) string {
	switch status {
	case crm.TicketStatusOpen:
		return "offen"
	case "closed":
		return "geschlossen"
	default:
		return status
	}
}
