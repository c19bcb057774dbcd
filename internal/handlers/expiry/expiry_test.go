package expiry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"freshmart/internal/domain"
)

type fakeCatalog struct {
	items   []domain.Product
	listErr error

	gotAfter time.Time
	gotUntil time.Time
}

func (f *fakeCatalog) ListExpiring(_ context.Context, after, until time.Time) ([]domain.Product, error) {
	f.gotAfter, f.gotUntil = after, until
	return f.items, f.listErr
}

type fakeNotifier struct {
	failFor map[string]bool
	created []domain.Notification
}

func (f *fakeNotifier) CreateNotification(_ context.Context, n domain.Notification) (string, error) {
	if f.failFor[n.UserID] {
		return "", errors.New("insert failed")
	}
	f.created = append(f.created, n)
	return fmt.Sprintf("ntf_%d", len(f.created)), nil
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func expiringItem(seller string) domain.Product {
	expiry := now.Add(48 * time.Hour)
	return domain.Product{SellerID: seller, ExpiryDate: &expiry}
}

func TestRunGroupsBySeller(t *testing.T) {
	t.Parallel()
	// Three sellers with 2, 0 and 1 expiring items: the one without
	// matches gets no notification.
	catalog := &fakeCatalog{items: []domain.Product{
		expiringItem("seller-a"),
		expiringItem("seller-c"),
		expiringItem("seller-a"),
	}}
	notifier := &fakeNotifier{}
	h := New(catalog, notifier)
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), domain.Params{"daysThreshold": float64(7)})
	require.NoError(t, err)

	got := res.(Result)
	require.Equal(t, 3, got.ExpiringItemCount)
	require.Len(t, got.NotificationsSent, 2)
	require.Equal(t, "seller-a", got.NotificationsSent[0].SellerID)
	require.Equal(t, 2, got.NotificationsSent[0].ItemCount)
	require.Equal(t, "seller-c", got.NotificationsSent[1].SellerID)
	require.Equal(t, 1, got.NotificationsSent[1].ItemCount)

	require.Len(t, notifier.created, 2)
	require.Equal(t, "expiry-warning", notifier.created[0].Type)

	// Window is (now, now + 7 days].
	require.True(t, catalog.gotAfter.Equal(now))
	require.True(t, catalog.gotUntil.Equal(now.Add(7*24*time.Hour)))
}

func TestRunDefaultsThreshold(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{}
	h := New(catalog, &fakeNotifier{})
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.(Result).ExpiringItemCount)
	require.True(t, catalog.gotUntil.Equal(now.Add(DefaultDaysThreshold*24*time.Hour)))
}

func TestRunIsolatesNotifierFailures(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{items: []domain.Product{
		expiringItem("seller-a"),
		expiringItem("seller-b"),
	}}
	notifier := &fakeNotifier{failFor: map[string]bool{"seller-a": true}}
	h := New(catalog, notifier)
	h.now = func() time.Time { return now }

	res, err := h.Run(context.Background(), nil)
	require.NoError(t, err)
	got := res.(Result)
	require.Len(t, got.NotificationsSent, 1)
	require.Equal(t, "seller-b", got.NotificationsSent[0].SellerID)
}

func TestValidateParams(t *testing.T) {
	t.Parallel()
	h := New(&fakeCatalog{}, &fakeNotifier{})

	require.NoError(t, h.ValidateParams(nil))
	require.NoError(t, h.ValidateParams(domain.Params{"daysThreshold": float64(14)}))
	require.Error(t, h.ValidateParams(domain.Params{"daysThreshold": float64(0)}))
	require.Error(t, h.ValidateParams(domain.Params{"daysThreshold": 2.5}))
	require.Error(t, h.ValidateParams(domain.Params{"daysThreshold": "soon"}))
}
