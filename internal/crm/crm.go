// Package crm provides read access to customer records, orders, shipments,
// and support tickets. The agent's lookup tools are thin wrappers around a
// Directory implementation.
package crm

import (
	"context"
	"time"
)

// Customer is a CRM customer profile.
type Customer struct {
	ID            string    `json:"id" yaml:"id"`
	Number        string    `json:"number" yaml:"number"`
	Name          string    `json:"name" yaml:"name"`
	Company       string    `json:"company,omitempty" yaml:"company,omitempty"`
	Email         string    `json:"email" yaml:"email"`
	Phone         string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	Mobile        string    `json:"mobile,omitempty" yaml:"mobile,omitempty"`
	Street        string    `json:"street,omitempty" yaml:"street,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`
	City          string    `json:"city,omitempty" yaml:"city,omitempty"`
	CustomerSince time.Time `json:"customer_since,omitempty" yaml:"customer_since,omitempty"`
	Revenue       float64   `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty" yaml:"payment_method,omitempty"`
}

// Order is a single purchase belonging to a customer.
type Order struct {
	ID         string    `json:"id" yaml:"id"`
	Number     string    `json:"number" yaml:"number"`
	CustomerID string    `json:"customer_id" yaml:"customer_id"`
	PlacedAt   time.Time `json:"placed_at" yaml:"placed_at"`
	Total      float64   `json:"total" yaml:"total"`
	Status     string    `json:"status" yaml:"status"`
}

// Shipment tracks a parcel for an order.
type Shipment struct {
	ID             string    `json:"id" yaml:"id"`
	OrderID        string    `json:"order_id" yaml:"order_id"`
	TrackingNumber string    `json:"tracking_number" yaml:"tracking_number"`
	Carrier        string    `json:"carrier" yaml:"carrier"`
	Status         string    `json:"status" yaml:"status"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Ticket is a support case in the helpdesk.
type Ticket struct {
	ID         string    `json:"id" yaml:"id"`
	CustomerID string    `json:"customer_id" yaml:"customer_id"`
	Subject    string    `json:"subject" yaml:"subject"`
	Status     string    `json:"status" yaml:"status"`
	OpenedAt   time.Time `json:"opened_at,omitempty" yaml:"opened_at,omitempty"`
}

// TicketStatusOpen marks tickets that still need attention.
const TicketStatusOpen = "open"

// Directory exposes CRM lookups. Single-record lookups return (nil, nil)
// when no match exists so callers can distinguish "not found" from failure.
type Directory interface {
	// FindCustomerByEmail resolves a customer by their email address.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// OrdersByCustomer returns the customer's most recent orders, newest first.
	OrdersByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)

	// ShipmentByTracking resolves a shipment by its carrier tracking number.
	ShipmentByTracking(ctx context.Context, trackingNumber string) (*Shipment, error)

	// ShipmentsByOrder returns all shipments for an order.
	ShipmentsByOrder(ctx context.Context, orderID string) ([]Shipment, error)

	// TicketsByCustomer returns the customer's tickets, newest first.
	// When openOnly is set, closed tickets are filtered out.
	TicketsByCustomer(ctx context.Context, customerID string, openOnly bool) ([]Ticket, error)

	// Close releases underlying resources.
	Close() error
}
