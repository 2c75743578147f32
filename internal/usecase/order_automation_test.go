package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/testutil"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
)

func TestOrderAutomation_TimeoutCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)

	stale := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-49 * time.Hour),
	})
	paid := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-49 * time.Hour),
	})
	success := model.NewPayment(user.ID, model.OrderTarget(paid.ID), paid.FinalPrice, model.ProviderWalletQR)
	success.Status = model.PaymentStatusSuccess
	f.store.AddPayment(success)

	fresh := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-47 * time.Hour),
	})
	packageFunded := f.store.AddOrder(model.Order{
		UserID:     user.ID,
		Status:     model.OrderStatusPending,
		UsePackage: true,
		Price:      testutil.Money("30.00"),
		CreatedAt:  baseTime.Add(-72 * time.Hour),
	})

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CancelledOrders.Count)
	assert.Equal(t, []int64{stale.ID}, summary.CancelledOrders.OrderIDs)
	assert.Equal(t, model.OrderStatusCancelled, f.store.Order(stale.ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(paid.ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(fresh.ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(packageFunded.ID).Status)

	inbox := f.store.NotificationsOf(user.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationOrderCancelled, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "48 hours")

	again, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.CancelledOrders.Count)
	assert.Len(t, f.store.NotificationsOf(user.ID), 1)
}

func TestOrderAutomation_StallWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admins := []*model.User{f.store.AddUser(model.RoleAdmin, 0), f.store.AddUser(model.RoleAdmin, 0)}

	stalled := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusInProgress,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-100 * time.Hour),
		UpdatedAt: baseTime.Add(-73 * time.Hour),
	})
	f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusInProgress,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-100 * time.Hour),
		UpdatedAt: baseTime.Add(-71 * time.Hour),
	})

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{stalled.ID}, summary.WarningOrders.OrderIDs)

	for _, admin := range admins {
		inbox := f.store.NotificationsOf(admin.ID)
		require.Len(t, inbox, 1)
		assert.Equal(t, model.NotificationOrderStalled, inbox[0].Type)
		require.NotNil(t, inbox[0].ReferenceKey)
		assert.Equal(t, model.OrderRef(stalled.ID), *inbox[0].ReferenceKey)
	}
	assert.Empty(t, f.store.NotificationsOf(user.ID), "stall warnings go to admins only")

	f.clock.Advance(10 * time.Minute)
	again, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.WarningOrders.Count)
	assert.Len(t, f.store.NotificationsOf(admins[0].ID), 1)
}

func TestOrderAutomation_StallWarningRepeatsAfterWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)

	stalled := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusInProgress,
		Price:     testutil.Money("30.00"),
		UpdatedAt: baseTime.Add(-200 * time.Hour),
	})
	ref := model.OrderRef(stalled.ID)
	f.store.AddNotification(model.Notification{
		UserID:       admin.ID,
		Type:         model.NotificationOrderStalled,
		Title:        "old warning",
		Message:      "old warning",
		ReferenceKey: &ref,
		CreatedAt:    baseTime.Add(-80 * time.Hour),
	})

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.WarningOrders.Count)
	assert.Len(t, f.store.NotificationsOf(admin.ID), 2)
}

func TestOrderAutomation_PickupReminder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)

	completedAt := func(ago time.Duration) *time.Time {
		t := baseTime.Add(-ago)
		return &t
	}
	inWindow := f.store.AddOrder(model.Order{
		UserID:      user.ID,
		Status:      model.OrderStatusCompleted,
		Price:       testutil.Money("30.00"),
		CompletedAt: completedAt(24*time.Hour + 30*time.Minute),
	})
	f.store.AddOrder(model.Order{
		UserID:      user.ID,
		Status:      model.OrderStatusCompleted,
		Price:       testutil.Money("30.00"),
		CompletedAt: completedAt(23 * time.Hour),
	})
	f.store.AddOrder(model.Order{
		UserID:      user.ID,
		Status:      model.OrderStatusCompleted,
		Price:       testutil.Money("30.00"),
		CompletedAt: completedAt(26 * time.Hour),
	})

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{inWindow.ID}, summary.Reminders.OrderIDs)

	inbox := f.store.NotificationsOf(user.ID)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationPickupReminder, inbox[0].Type)

	f.clock.Advance(20 * time.Minute)
	again, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Reminders.Count)
	assert.Len(t, f.store.NotificationsOf(user.ID), 1)
}

func TestOrderAutomation_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)

	var orders []*model.Order
	for i := 0; i < 3; i++ {
		orders = append(orders, f.store.AddOrder(model.Order{
			UserID:    user.ID,
			Status:    model.OrderStatusPending,
			Price:     testutil.Money("30.00"),
			CreatedAt: baseTime.Add(-50 * time.Hour),
		}))
	}
	f.store.FailOrderUpdates(orders[1].ID, assert.AnError)

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int64{orders[0].ID, orders[2].ID}, summary.CancelledOrders.OrderIDs)
	assert.Equal(t, []int64{orders[1].ID}, summary.CancelledOrders.Failed)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(orders[1].ID).Status)
	assert.Len(t, f.store.NotificationsOf(user.ID), 2)
}

func TestOrderAutomation_SkipsWhenLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	order := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-50 * time.Hour),
	})

	release := f.store.HoldLock()
	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(order.ID).Status)

	release()
	summary, err = f.automation.Run(ctx)
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, model.OrderStatusCancelled, f.store.Order(order.ID).Status)
}

func TestOrderAutomation_ConcurrentRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	for i := 0; i < 5; i++ {
		f.store.AddOrder(model.Order{
			UserID:    user.ID,
			Status:    model.OrderStatusPending,
			Price:     testutil.Money("30.00"),
			CreatedAt: baseTime.Add(-50 * time.Hour),
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.automation.Run(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.NotificationsOf(user.ID), 5)
}

// holdRow keeps a row locked in an open transaction until the returned
// release func is called
func holdRow(t *testing.T, f *fixture, lock func(ctx context.Context, repos *repository.Repositories) error, then func(ctx context.Context, repos *repository.Repositories) error) func() {
	t.Helper()
	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- f.store.Transaction(context.Background(), func(ctx context.Context, repos *repository.Repositories) error {
			if err := lock(ctx, repos); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			if then == nil {
				return nil
			}
			return then(ctx, repos)
		})
	}()
	<-locked

	var once sync.Once
	return func() {
		once.Do(func() {
			close(release)
			require.NoError(t, <-done)
		})
	}
}

func TestOrderAutomation_WaitsForInFlightConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	order := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-49 * time.Hour),
	})
	payment := model.NewPayment(user.ID, model.OrderTarget(order.ID), order.FinalPrice, model.ProviderWalletQR)
	payment.Status = model.PaymentStatusPendingVerification
	f.store.AddPayment(payment)

	release := holdRow(t, f,
		func(ctx context.Context, repos *repository.Repositories) error {
			_, err := repos.Payments.GetForUpdate(ctx, payment.ID)
			return err
		},
		func(ctx context.Context, repos *repository.Repositories) error {
			confirmed := *payment
			confirmed.Status = model.PaymentStatusSuccess
			return repos.Payments.Update(ctx, &confirmed)
		})

	type result struct {
		cancelled int
		err       error
	}
	ran := make(chan result, 1)
	go func() {
		summary, err := f.automation.Run(ctx)
		if err != nil {
			ran <- result{err: err}
			return
		}
		ran <- result{cancelled: summary.CancelledOrders.Count}
	}()

	require.Eventually(t, func() bool { return f.store.LockWaiters() == 1 }, time.Second, time.Millisecond)
	release()

	res := <-ran
	require.NoError(t, res.err)
	assert.Zero(t, res.cancelled)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(order.ID).Status)
	assert.Equal(t, model.PaymentStatusSuccess, f.store.Payment(payment.ID).Status)
	assert.Empty(t, f.store.NotificationsOf(user.ID))
}

func TestOrderAutomation_CallerCancellationDoesNotAbortRun(t *testing.T) {
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	order := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-49 * time.Hour),
	})

	release := holdRow(t, f, func(ctx context.Context, repos *repository.Repositories) error {
		_, err := repos.Orders.GetForUpdate(ctx, order.ID)
		return err
	}, nil)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	go func() {
		_, err := f.automation.Run(ctx)
		ran <- err
	}()

	require.Eventually(t, func() bool { return f.store.LockWaiters() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-ran, context.Canceled)

	release()
	require.Eventually(t, func() bool {
		return f.store.Order(order.ID).Status == model.OrderStatusCancelled
	}, time.Second, time.Millisecond)

	// Joins the run still in flight, or starts a fresh one that finds nothing
	_, err := f.automation.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.store.NotificationsOf(user.ID), 1)
}

func TestOrderAutomation_ReturnsPartialSummaryOnTimeout(t *testing.T) {
	f := newFixture(t)
	policy := usecase.DefaultAutomationPolicy()
	policy.RunTimeout = 50 * time.Millisecond
	automation := usecase.NewOrderAutomation(f.store, f.store, f.notifier, f.clock, policy, zap.NewNop())

	user := f.store.AddUser(model.RoleCustomer, 0)
	var orders []*model.Order
	for i := 0; i < 3; i++ {
		orders = append(orders, f.store.AddOrder(model.Order{
			UserID:    user.ID,
			Status:    model.OrderStatusPending,
			Price:     testutil.Money("30.00"),
			CreatedAt: baseTime.Add(-50 * time.Hour),
		}))
	}

	release := holdRow(t, f, func(ctx context.Context, repos *repository.Repositories) error {
		_, err := repos.Orders.GetForUpdate(ctx, orders[1].ID)
		return err
	}, nil)
	defer release()

	summary, err := automation.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.NotNil(t, summary)
	assert.Equal(t, []int64{orders[0].ID}, summary.CancelledOrders.OrderIDs)
	assert.Equal(t, []int64{orders[1].ID}, summary.CancelledOrders.Failed)

	assert.Equal(t, model.OrderStatusCancelled, f.store.Order(orders[0].ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(orders[1].ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(orders[2].ID).Status)
}
