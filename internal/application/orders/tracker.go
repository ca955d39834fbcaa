// Package orders imports sales orders into the CRM.
package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/account"
	"github.com/woowup/vtex-connector/internal/infrastructure/notify"
)

// badCatalogingRatio is the share of orders with unresolvable product
// references that aborts a run on guarded accounts.
const badCatalogingRatio = 0.05

// BadCatalogingError aborts a run whose catalog is too broken to trust.
type BadCatalogingError struct {
	ProductIDs []string
	Orders     int
}

func (e *BadCatalogingError) Error() string {
	return fmt.Sprintf("orders: %d products without reference id across %d orders",
		len(e.ProductIDs), e.Orders)
}

// Tracker watches for products whose reference id cannot be resolved.
// The first occurrence raises an alert; on guarded accounts the run is
// aborted once too many orders are affected.
type Tracker struct {
	settings account.Settings
	notifier notify.Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	bad    map[string]bool
	orders int
}

// NewTracker creates a cataloging tracker.
func NewTracker(settings account.Settings, notifier notify.Notifier, logger *zap.Logger) *Tracker {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Tracker{
		settings: settings,
		notifier: notifier,
		logger:   logger,
		bad:      make(map[string]bool),
	}
}

// OrderSeen counts one processed order.
func (t *Tracker) OrderSeen() {
	t.mu.Lock()
	t.orders++
	t.mu.Unlock()
}

// BadProduct records a product without a resolvable reference id. The
// returned error is non-nil when the account is guarded and the bad share
// crossed the threshold; the caller must abort the run.
func (t *Tracker) BadProduct(ctx context.Context, productID string) error {
	t.mu.Lock()
	t.bad[productID] = true
	badCount, orders := len(t.bad), t.orders
	t.mu.Unlock()

	t.logger.Warn("product without reference id",
		zap.String("product_id", productID),
		zap.Int("bad_products", badCount),
		zap.Int("orders", orders))

	if err := t.notifier.Notify(ctx, "bad-cataloging",
		fmt.Sprintf("product %s has no reference id", productID)); err != nil {
		t.logger.Error("could not send cataloging alert", zap.Error(err))
	}

	if !t.settings.GuardsCataloging() {
		return nil
	}
	if orders == 0 || float64(badCount)/float64(orders) < badCatalogingRatio {
		return nil
	}
	return &BadCatalogingError{ProductIDs: t.badProducts(), Orders: orders}
}

// badProducts returns the recorded product ids in stable order.
func (t *Tracker) badProducts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.bad))
	for id := range t.bad {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
