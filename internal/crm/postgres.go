package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresDirectory reads CRM data from an existing PostgreSQL database,
// typically the shop system's. It never writes; the tables (customers,
// orders, shipments, tickets) are owned by the shop.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory connects to the CRM database and verifies the link.
func NewPostgresDirectory(url string) (*PostgresDirectory, error) {
	if url == "" {
		return nil, fmt.Errorf("crm database url is required")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open crm database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping crm database: %w", err)
	}
	return &PostgresDirectory{db: db}, nil
}

// NewPostgresDirectoryFromDB wraps an existing connection (used by tests).
func NewPostgresDirectoryFromDB(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, number, name, company, email, phone, mobile, street, postal_code, city,
			customer_since, revenue, payment_method
		FROM customers WHERE LOWER(email) = LOWER($1)
	`, email)

	var (
		c             Customer
		company       sql.NullString
		phone         sql.NullString
		mobile        sql.NullString
		street        sql.NullString
		postalCode    sql.NullString
		city          sql.NullString
		customerSince sql.NullTime
		revenue       sql.NullFloat64
		payment       sql.NullString
	)
	err := row.Scan(&c.ID, &c.Number, &c.Name, &company, &c.Email, &phone, &mobile,
		&street, &postalCode, &city, &customerSince, &revenue, &payment)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	c.Company = company.String
	c.Phone = phone.String
	c.Mobile = mobile.String
	c.Street = street.String
	c.PostalCode = postalCode.String
	c.City = city.String
	c.CustomerSince = customerSince.Time
	c.Revenue = revenue.Float64
	c.PaymentMethod = payment.String
	return &c, nil
}

func (d *PostgresDirectory) OrdersByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, number, customer_id, placed_at, total, status
		FROM orders WHERE customer_id = $1 ORDER BY placed_at DESC LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Number, &o.CustomerID, &o.PlacedAt, &o.Total, &o.Status); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (d *PostgresDirectory) ShipmentByTracking(ctx context.Context, trackingNumber string) (*Shipment, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, order_id, tracking_number, carrier, status, updated_at
		FROM shipments WHERE tracking_number = $1
	`, trackingNumber)

	var (
		s         Shipment
		updatedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.OrderID, &s.TrackingNumber, &s.Carrier, &s.Status, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find shipment: %w", err)
	}
	s.UpdatedAt = updatedAt.Time
	return &s, nil
}

func (d *PostgresDirectory) ShipmentsByOrder(ctx context.Context, orderID string) ([]Shipment, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, order_id, tracking_number, carrier, status, updated_at
		FROM shipments WHERE order_id = $1 ORDER BY tracking_number
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		var (
			s         Shipment
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.OrderID, &s.TrackingNumber, &s.Carrier, &s.Status, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		s.UpdatedAt = updatedAt.Time
		shipments = append(shipments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}
	return shipments, nil
}

func (d *PostgresDirectory) TicketsByCustomer(ctx context.Context, customerID string, openOnly bool) ([]Ticket, error) {
	query := `
		SELECT id, customer_id, subject, status, opened_at
		FROM tickets WHERE customer_id = $1`
	if openOnly {
		query += ` AND status = 'open'`
	}
	query += ` ORDER BY opened_at DESC`

	rows, err := d.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var (
			t        Ticket
			openedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Subject, &t.Status, &openedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		t.OpenedAt = openedAt.Time
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

// Close closes the underlying pool.
func (d *PostgresDirectory) Close() error {
	return d.db.Close()
}
