package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/crm"
)

const (
	defaultOrderLimit = 5
	maxOrderLimit     = 20
)

// OrderHistoryTool lists a customer's most recent orders.
type OrderHistoryTool struct {
	directory crm.Directory
}

// NewOrderHistoryTool creates a new order history tool.
func NewOrderHistoryTool(directory crm.Directory) *OrderHistoryTool {
	return &OrderHistoryTool{directory: directory}
}

func (t *OrderHistoryTool) Name() string {
	return "order_history"
}

func (t *OrderHistoryTool) Description() string {
	return "List a customer's most recent orders, newest first, with date, amount, and status. Requires the Kunden-ID from customer_lookup."
}

func (t *OrderHistoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"customer_id": {
				"type": "string",
				"description": "Internal customer ID (the Kunden-ID line from customer_lookup)"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of orders to return (default 5)",
				"default": 5
			}
		},
		"required": ["customer_id"]
	}`)
}

func (t *OrderHistoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		CustomerID string `json:"customer_id"`
		Limit      int    `json:"limit"`
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

	limit := input.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	if limit > maxOrderLimit {
		limit = maxOrderLimit
	}

	orders, err := t.directory.OrdersByCustomer(ctx, customerID, limit)
	if err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Fehler beim Abruf der Bestellhistorie: %v", err),
			IsError: true,
		}, nil
	}
	if len(orders) == 0 {
		return &agent.ToolResult{
			Content: "Keine Bestellungen für diesen Kunden gefunden.",
		}, nil
	}

	return &agent.ToolResult{Content: formatOrders(orders)}, nil
}

func formatOrders(orders []crm.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bestellungen: %d\n\n", len(orders))
	for _, o := range orders {
		b.WriteString(formatOrderLine(o))
		b.WriteString("\n")
	}
	// Orders arrive newest first.
	if latest := orders[0]; !latest.PlacedAt.IsZero() {
		fmt.Fprintf(&b, "\nLetzte Bestellung am %s", latest.PlacedAt.Format(dateLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatOrderLine(o crm.Order) string {
	line := "Bestellung " + o.Number
	if !o.PlacedAt.IsZero() {
		line += " vom " + o.PlacedAt.Format(dateLayout)
	}
	line += fmt.Sprintf(": %s €", formatEuro(o.Total))
	if o.Status != "" {
		line += fmt.Sprintf(" (%s)", o.Status)
	}
	return line
}
