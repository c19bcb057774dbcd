// Package expiry implements the expiry-notification task: it finds stock
// expiring within a threshold window and creates one summary notification
// per affected seller. Delivering the notification over a real channel is
// someone else's job.
package expiry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"freshmart/internal/domain"
)

const DefaultDaysThreshold = 7

type Catalog interface {
	ListExpiring(ctx context.Context, after, until time.Time) ([]domain.Product, error)
}

type Notifier interface {
	CreateNotification(ctx context.Context, n domain.Notification) (string, error)
}

type Handler struct {
	catalog  Catalog
	notifier Notifier
	now      func() time.Time
}

func New(catalog Catalog, notifier Notifier) *Handler {
	return &Handler{catalog: catalog, notifier: notifier, now: time.Now}
}

func (h *Handler) Type() domain.TaskType { return domain.TaskExpiryNotification }

func (h *Handler) ValidateParams(params domain.Params) error {
	_, err := daysThreshold(params)
	return err
}

func daysThreshold(params domain.Params) (int, error) {
	v, ok := params["daysThreshold"]
	if !ok || v == nil {
		return DefaultDaysThreshold, nil
	}
	// JSON-decoded parameters arrive as float64.
	switch n := v.(type) {
	case float64:
		if n < 1 || n != math.Trunc(n) {
			return 0, fmt.Errorf("daysThreshold must be a positive integer, got %v", n)
		}
		return int(n), nil
	case int:
		if n < 1 {
			return 0, fmt.Errorf("daysThreshold must be a positive integer, got %d", n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("daysThreshold must be a positive integer, got %T", v)
	}
}

type SellerNotice struct {
	SellerID       string `json:"seller_id"`
	NotificationID string `json:"notification_id"`
	ItemCount      int    `json:"item_count"`
}

type Result struct {
	ExpiringItemCount int            `json:"expiring_item_count"`
	NotificationsSent []SellerNotice `json:"notifications_sent"`
}

func (h *Handler) Run(ctx context.Context, params domain.Params) (any, error) {
	days, err := daysThreshold(params)
	if err != nil {
		return nil, err
	}

	now := h.now()
	items, err := h.catalog.ListExpiring(ctx, now, now.Add(time.Duration(days)*24*time.Hour))
	if err != nil {
		return nil, err
	}

	// Group by seller, preserving first-seen order for a stable result.
	counts := make(map[string]int, len(items))
	var sellers []string
	for _, p := range items {
		if counts[p.SellerID] == 0 {
			sellers = append(sellers, p.SellerID)
		}
		counts[p.SellerID]++
	}

	res := Result{ExpiringItemCount: len(items), NotificationsSent: []SellerNotice{}}
	for _, sellerID := range sellers {
		count := counts[sellerID]
		id, err := h.notifier.CreateNotification(ctx, domain.Notification{
			UserID:  sellerID,
			Type:    "expiry-warning",
			Title:   "Items expiring soon",
			Message: fmt.Sprintf("%d of your items expire within %d days. Consider enabling dynamic pricing.", count, days),
		})
		if err != nil {
			log.Error().Err(err).Str("seller_id", sellerID).Msg("create expiry notification")
			continue
		}
		res.NotificationsSent = append(res.NotificationsSent, SellerNotice{
			SellerID:       sellerID,
			NotificationID: id,
			ItemCount:      count,
		})
	}
	return res, nil
}
