// Package tools implements the CRM lookups the inbox agent can call while
// analyzing an email: customer profile, order history, shipment status, and
// support tickets. Results are plain German text with the labeled lines the
// dashboard understands, so they read well both as tool messages and inside
// a degraded summary.
package tools

import (
	"strconv"
	"strings"

	"github.com/maildeskhq/maildesk/internal/agent"
	"github.com/maildeskhq/maildesk/internal/crm"
)

const (
	dateLayout     = "02.01.2006"
	dateTimeLayout = "02.01.2006 15:04"
)

// All returns the full lookup catalog backed by the given directory, in the
// order the tool specs should be advertised.
func All(directory crm.Directory) []agent.Tool {
	return []agent.Tool{
		NewCustomerLookupTool(directory),
		NewOrderHistoryTool(directory),
		NewShipmentStatusTool(directory),
		NewTicketHistoryTool(directory),
	}
}

// formatEuro renders an amount in German notation, e.g. 12.450,00.
func formatEuro(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	intPart, frac, ok := strings.Cut(s, ".")
	if !ok {
		return s
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	grouped := b.String()
	if neg {
		grouped = "-" + grouped
	}
	return grouped + "," + frac
}
