package crm

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryDirectory is an in-memory Directory for development and tests.
type MemoryDirectory struct {
	mu        sync.RWMutex
	customers map[string]Customer
	orders    map[string][]Order
	shipments map[string]Shipment
	tickets   map[string][]Ticket
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		customers: make(map[string]Customer),
		orders:    make(map[string][]Order),
		shipments: make(map[string]Shipment),
		tickets:   make(map[string][]Ticket),
	}
}

// AddCustomer registers a customer, keyed by lowercase email.
func (d *MemoryDirectory) AddCustomer(c Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[strings.ToLower(c.Email)] = c
}

// AddOrder appends an order to its customer's history.
func (d *MemoryDirectory) AddOrder(o Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orders[o.CustomerID] = append(d.orders[o.CustomerID], o)
}

// AddShipment registers a shipment, keyed by tracking number.
func (d *MemoryDirectory) AddShipment(s Shipment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shipments[s.TrackingNumber] = s
}

// AddTicket appends a ticket to its customer's history.
func (d *MemoryDirectory) AddTicket(t Ticket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickets[t.CustomerID] = append(d.tickets[t.CustomerID], t)
}

func (d *MemoryDirectory) FindCustomerByEmail(_ context.Context, email string) (*Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.customers[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func (d *MemoryDirectory) OrdersByCustomer(_ context.Context, customerID string, limit int) ([]Order, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	orders := d.orders[customerID]
	out := make([]Order, len(orders))
	copy(out, orders)
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlacedAt.After(out[j].PlacedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemoryDirectory) ShipmentByTracking(_ context.Context, trackingNumber string) (*Shipment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.shipments[strings.TrimSpace(trackingNumber)]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (d *MemoryDirectory) ShipmentsByOrder(_ context.Context, orderID string) ([]Shipment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Shipment
	for _, s := range d.shipments {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TrackingNumber < out[j].TrackingNumber
	})
	return out, nil
}

func (d *MemoryDirectory) TicketsByCustomer(_ context.Context, customerID string, openOnly bool) ([]Ticket, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Ticket
	for _, t := range d.tickets[customerID] {
		if openOnly && t.Status != TicketStatusOpen {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory directory.
func (d *MemoryDirectory) Close() error {
	return nil
}
