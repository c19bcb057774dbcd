// Package store is the SQLite persistence layer: scheduled tasks, the
// append-only run history ledger, and the catalog/notification/order
// tables the handlers read and write.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS scheduled_tasks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  task_type TEXT NOT NULL CHECK(task_type IN ('dynamic-pricing','expiry-notification','report-generation')),
  schedule TEXT NOT NULL,
  next_run DATETIME NOT NULL,
  last_run DATETIME,
  enabled INTEGER NOT NULL DEFAULT 1,
  parameters TEXT NOT NULL DEFAULT '{}',
  claimed_until DATETIME,
  consecutive_failures INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON scheduled_tasks(enabled, next_run);
CREATE TABLE IF NOT EXISTS task_history (
  id TEXT PRIMARY KEY,
  task_id TEXT NOT NULL,
  status TEXT NOT NULL CHECK(status IN ('running','completed','failed')),
  result TEXT,
  started_at DATETIME NOT NULL,
  completed_at DATETIME,
  FOREIGN KEY(task_id) REFERENCES scheduled_tasks(id)
);
CREATE INDEX IF NOT EXISTS idx_history_task ON task_history(task_id, started_at DESC);
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price TEXT NOT NULL,
  original_price TEXT NOT NULL,
  expiry_date DATETIME,
  dynamic_pricing_enabled INTEGER NOT NULL DEFAULT 0,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  seller_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_expiry ON products(expiry_date);
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  read INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  total_amount TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

// Store wraps the SQLite handle. Money columns hold decimal strings.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func scanDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("bad decimal column %q: %w", s, err)
	}
	return d, nil
}
