package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/crm"
)

// CustomerLookupTool resolves the sender of an email to a customer profile.
type CustomerLookupTool struct {
	directory crm.Directory
}

// NewCustomerLookupTool creates a new customer lookup tool.
func NewCustomerLookupTool(directory crm.Directory) *CustomerLookupTool {
	return &CustomerLookupTool{directory: directory}
}

func (t *CustomerLookupTool) Name() string {
	return "customer_lookup"
}

func (t *CustomerLookupTool) Description() string {
	return "Look up a customer in the CRM by email address. Returns the profile (name, customer number, contact data, address, revenue) as German text. Use the Kunden-ID line from the result when calling order_history or ticket_history."
}

func (t *CustomerLookupTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"email": {
				"type": "string",
				"description": "Email address of the sender, e.g. max@example.de"
			}
		},
		"required": ["email"]
	}`)
}

func (t *CustomerLookupTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Email string `json:"email"`
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

	email := strings.TrimSpace(input.Email)
	if email == "" {
		return &agent.ToolResult{
			Content: "email is required",
			IsError: true,
		}, nil
	}

	customer, err := t.directory.FindCustomerByEmail(ctx, email)
	if err != nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Fehler bei der Kundensuche: %v", err),
			IsError: true,
		}, nil
	}
	if customer == nil {
		return &agent.ToolResult{
			Content: fmt.Sprintf("Kein Kunde mit der E-Mail-Adresse %s gefunden.", email),
		}, nil
	}

	return &agent.ToolResult{Content: formatCustomer(customer)}, nil
}

// formatCustomer renders the profile as labeled German lines, leaving out
// fields the CRM has no value for.
func formatCustomer(c *crm.Customer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kunde: %s\n", c.Name)
	if c.Number != "" {
		fmt.Fprintf(&b, "Kundennummer: %s\n", c.Number)
	}
	fmt.Fprintf(&b, "Kunden-ID: %s\n", c.ID)
	if c.Company != "" {
		fmt.Fprintf(&b, "Firma: %s\n", c.Company)
	}
	fmt.Fprintf(&b, "E-Mail: %s\n", c.Email)
	if c.Phone != "" {
		fmt.Fprintf(&b, "Telefon: %s\n", c.Phone)
	}
	if c.Mobile != "" {
		fmt.Fprintf(&b, "Mobil: %s\n", c.Mobile)
	}
	if c.Street != "" {
		fmt.Fprintf(&b, "Straße: %s\n", c.Street)
	}
	if c.PostalCode != "" || c.City != "" {
		fmt.Fprintf(&b, "Ort: %s\n", strings.TrimSpace(c.PostalCode+" "+c.City))
	}
	if !c.CustomerSince.IsZero() {
		fmt.Fprintf(&b, "Kunde seit: %s\n", c.CustomerSince.Format(dateLayout))
	}
	if c.Revenue > 0 {
		fmt.Fprintf(&b, "Umsatz: %s €\n", formatEuro(c.Revenue))
	}
	if c.PaymentMethod != "" {
		fmt.Fprintf(&b, "Zahlungsart: %s\n", c.PaymentMethod)
	}
	return strings.TrimRight(b.String(), "\n")
}
