package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freshmart/internal/domain"
)

const productColumns = `id,name,price,original_price,expiry_date,dynamic_pricing_enabled,stock_quantity,seller_id`

// ListRepricable returns products with dynamic pricing turned on.
func (s *Store) ListRepricable(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE dynamic_pricing_enabled=1 ORDER BY id`)
}

// ListExpiring returns products whose expiry date falls in (after, until].
func (s *Store) ListExpiring(ctx context.Context, after, until time.Time) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
SELECT `+productColumns+` FROM products
WHERE expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ?
ORDER BY seller_id, expiry_date`, after, until)
}

// ListProducts returns the whole catalog, for inventory reporting.
func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return domain.Product{}, ErrNotFound
	}
	return p, err
}

// UpdatePrice sets a product's current price. Contention with manual
// seller edits resolves last-write-wins.
func (s *Store) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET price=? WHERE id=?`, price.String(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (string, error) {
	id := p.ID
	if id == "" {
		id = "prd_" + uuid.NewString()
	}
	var expiry any
	if p.ExpiryDate != nil {
		expiry = *p.ExpiryDate
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO products (`+productColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		id, p.Name, p.Price.String(), p.OriginalPrice.String(), expiry,
		p.DynamicPricingEnabled, p.StockQuantity, p.SellerID)
	return id, err
}

// CreateNotification appends an unread notification record.
func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (string, error) {
	id := n.ID
	if id == "" {
		id = "ntf_" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO notifications (id,user_id,type,title,message,read,created_at)
VALUES (?,?,?,?,?,0,CURRENT_TIMESTAMP)`, id, n.UserID, n.Type, n.Title, n.Message)
	return id, err
}

// RecentOrders returns the most recent orders, newest first.
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id,total_amount,created_at FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o      domain.Order
			amount string
		)
		if err := rows.Scan(&o.ID, &amount, &o.CreatedAt); err != nil {
			return nil, err
		}
		if o.TotalAmount, err = scanDecimal(amount); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (string, error) {
	id := o.ID
	if id == "" {
		id = "ord_" + uuid.NewString()
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id,total_amount,created_at) VALUES (?,?,?)`,
		id, o.TotalAmount.String(), createdAt)
	return id, err
}

func (s *Store) queryProducts(ctx context.Context, q string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		price    string
		original string
		expiry   sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &price, &original, &expiry,
		&p.DynamicPricingEnabled, &p.StockQuantity, &p.SellerID)
	if err != nil {
		return domain.Product{}, err
	}
	if p.Price, err = scanDecimal(price); err != nil {
		return domain.Product{}, err
	}
	if p.OriginalPrice, err = scanDecimal(original); err != nil {
		return domain.Product{}, err
	}
	if expiry.Valid {
		ed := expiry.Time
		p.ExpiryDate = &ed
	}
	return p, nil
}
