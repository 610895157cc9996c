package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/crm"
)

// ShipmentStatusTool reports delivery status, either for a single tracking
// number or for every shipment of an order.
type ShipmentStatusTool struct {
	directory crm.Directory
}

// NewShipmentStatusTool creates a new shipment status tool.
func NewShipmentStatusTool(directory crm.Directory) *ShipmentStatusTool {
	return &ShipmentStatusTool{directory: directory}
}

func (t *ShipmentStatusTool) Name() string {
	return "shipment_status"
}

func (t *ShipmentStatusTool) Description() string {
	return "Check the delivery status of a shipment. Pass the tracking number when the customer mentioned one, otherwise pass the order number from order_history to list all shipments of that order."
}

func (t *ShipmentStatusTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"tracking_number": {
				"type": "string",
				"description": "Tracking number (Sendungsnummer) to look up"
			},
			"order_id": {
				"type": "string",
				"description": "Order number from order_history, used when no tracking number is known"
			}
		}
	}`)
}

func (t *ShipmentStatusTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		TrackingNumber string `json:"tracking_number"`
		OrderID        string `json:"order_id"`
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

	tracking := strings.TrimSpace(input.TrackingNumber)
	orderID := strings.TrimSpace(input.OrderID)
	if tracking == "" && orderID == "" {
		return &agent.ToolResult{
			Content: "tracking_number or order_id is required",
			IsError: true,
		}, nil
	}

	if tracking != "" {
		shipment, err := t.directory.ShipmentByTracking(ctx, tracking)
		if err != nil {
			return &agent.ToolResult{
				Content: fmt.Sprintf("Fehler beim Abruf des Versandstatus: %v", err),
				IsError: true,
			}, nil
		}
		if shipment == nil {
			return &agent.ToolResult{
				Content: fmt.Sprintf("Keine Sendung mit der Nummer %s gefunden.", tracking),
			}, nil
		}
		return &agent.ToolResult{Content: formatShipment(*shipment)}, nil
	}

	shipments, err := t.directory.ShipmentsByOrder(ctx, orderID)
	if err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Fehler beim Abruf des Versandstatus: %v", err),
			IsError: true,
		}, nil
	}
	if len(shipments) == 0 {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Keine Sendungen zur Bestellung %s gefunden.", orderID),
		}, nil
	}

	blocks := make([]string, 0, len(shipments))
	for _, s := range shipments {
		blocks = append(blocks, formatShipment(s))
	}
	return &agent.ToolResult{Content: strings.Join(blocks, "\n\n")}, nil
}

func formatShipment(s crm.Shipment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sendungsnummer: %s\n", s.TrackingNumber)
	if s.Carrier != "" {
		fmt.Fprintf(&b, "Versanddienstleister: %s\n", s.Carrier)
	}
	if s.Status != "" {
		fmt.Fprintf(&b, "Versandstatus: %s\n", s.Status)
	}
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "Letzte Aktualisierung: %s\n", s.UpdatedAt.Format(dateTimeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}
