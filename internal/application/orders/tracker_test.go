package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/woowup/vtex-connector/internal/domain/account"
)

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, key, message string) error {
	n.messages = append(n.messages, key+": "+message)
	return nil
}

func TestTrackerAbortsGuardedAccounts(t *testing.T) {
	tracker := NewTracker(account.Settings{ID: 2000}, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		tracker.OrderSeen()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, tracker.BadProduct(ctx, fmt.Sprintf("p%d", i)))
	}

	// fifth unique bad product out of 100 orders crosses the 5% line
	err := tracker.BadProduct(ctx, "p4")
	var badErr *BadCatalogingError
	require.ErrorAs(t, err, &badErr)
	assert.Len(t, badErr.ProductIDs, 5)
	assert.Equal(t, 100, badErr.Orders)
}

func TestTrackerIgnoresRepeatedProducts(t *testing.T) {
	tracker := NewTracker(account.Settings{ID: 2000}, nil, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		tracker.OrderSeen()
	}
	// the same product over and over is one unique problem
	for i := 0; i < 20; i++ {
		assert.NoError(t, tracker.BadProduct(ctx, "p0"))
	}
}

func TestTrackerSparesUnguardedAccounts(t *testing.T) {
	tracker := NewTracker(account.Settings{ID: 100}, nil, zap.NewNop())
	ctx := context.Background()

	tracker.OrderSeen()
	for i := 0; i < 50; i++ {
		assert.NoError(t, tracker.BadProduct(ctx, fmt.Sprintf("p%d", i)))
	}
}

func TestTrackerNotifiesOncePerProblem(t *testing.T) {
	notifier := &recordingNotifier{}
	tracker := NewTracker(account.Settings{ID: 100}, notifier, zap.NewNop())
	ctx := context.Background()

	tracker.OrderSeen()
	require.NoError(t, tracker.BadProduct(ctx, "p0"))
	require.NoError(t, tracker.BadProduct(ctx, "p1"))

	// the notifier receives every report; webhook dedup collapses them
	assert.Len(t, notifier.messages, 2)
	assert.Contains(t, notifier.messages[0], "bad-cataloging")
}
