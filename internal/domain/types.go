package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskType identifies which handler a scheduled task dispatches to.
type TaskType string

const (
	TaskDynamicPricing     TaskType = "dynamic-pricing"
	TaskExpiryNotification TaskType = "expiry-notification"
	TaskReportGeneration   TaskType = "report-generation"
)

// RunStatus is the lifecycle state of a single execution attempt.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Params is the open per-task-type parameter map stored with each task.
type Params map[string]any

// Task is a named, schedulable unit of work. NextRun is always set;
// a disabled task is never selected regardless of NextRun.
type Task struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Type                TaskType   `json:"task_type"`
	Schedule            string     `json:"schedule"`
	NextRun             time.Time  `json:"next_run"`
	LastRun             *time.Time `json:"last_run,omitempty"`
	Enabled             bool       `json:"enabled"`
	Parameters          Params     `json:"parameters"`
	ClaimedUntil        *time.Time `json:"claimed_until,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TaskRun is one audit record of a single execution attempt.
// It is finalized exactly once; CompletedAt is nil until then.
type TaskRun struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Status      RunStatus  `json:"status"`
	Result      string     `json:"result,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunFilter narrows an invocation to one task or one task type.
// The zero value selects every due task.
type RunFilter struct {
	TaskID   string   `json:"task_id,omitempty"`
	TaskType TaskType `json:"task_type,omitempty"`
}

// Product is a catalog row consumed by the pricing and expiry handlers.
type Product struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Price                 decimal.Decimal `json:"price"`
	OriginalPrice         decimal.Decimal `json:"original_price"`
	ExpiryDate            *time.Time      `json:"expiry_date,omitempty"`
	DynamicPricingEnabled bool            `json:"dynamic_pricing_enabled"`
	StockQuantity         int             `json:"stock_quantity"`
	SellerID              string          `json:"seller_id"`
}

// Notification is produced by the expiry handler. Delivery over a real
// channel is out of scope; only the record is created.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is consumed by the sales report.
type Order struct {
	ID          string          `json:"id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
