package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

// automationLockKey is the store lock id shared by every scheduler process
const automationLockKey int64 = 0x4c45444745520001

// AutomationPolicy holds the order lifecycle thresholds
type AutomationPolicy struct {
	PendingTimeout time.Duration
	StallWarning   time.Duration
	PickupReminder time.Duration
	ReminderWindow time.Duration
	BatchSize      int

	// RunTimeout bounds one run independently of the callers waiting on it
	RunTimeout time.Duration
}

// DefaultAutomationPolicy returns the standard thresholds
func DefaultAutomationPolicy() AutomationPolicy {
	return AutomationPolicy{
		PendingTimeout: 48 * time.Hour,
		StallWarning:   72 * time.Hour,
		PickupReminder: 24 * time.Hour,
		ReminderWindow: time.Hour,
		BatchSize:      200,
		RunTimeout:     5 * time.Minute,
	}
}

// OrderAutomation cancels unpaid orders, warns admins about stalled orders and
// reminds users to collect completed ones. Runs never overlap: concurrent
// callers in this process share one run, and when a Locker is configured a
// run held by another process is skipped.
type OrderAutomation struct {
	uow      repository.UnitOfWork
	locker   repository.Locker
	notifier *Notifier
	clock    Clock
	policy   AutomationPolicy
	logger   *zap.Logger
	group    singleflight.Group
}

// NewOrderAutomation creates the scheduler logic. locker may be nil.
func NewOrderAutomation(uow repository.UnitOfWork, locker repository.Locker, notifier *Notifier, clock Clock, policy AutomationPolicy, logger *zap.Logger) *OrderAutomation {
	if policy.BatchSize <= 0 {
		policy.BatchSize = DefaultAutomationPolicy().BatchSize
	}
	if policy.RunTimeout <= 0 {
		policy.RunTimeout = DefaultAutomationPolicy().RunTimeout
	}
	return &OrderAutomation{
		uow:      uow,
		locker:   locker,
		notifier: notifier,
		clock:    clock,
		policy:   policy,
		logger:   logger,
	}
}

// Run performs the three passes once and returns what each acted upon. The
// run is shared by concurrent callers and bounded by policy.RunTimeout, not by
// ctx: a caller that gives up gets ctx.Err() while the run carries on. When a
// pass is interrupted the partial summary is returned with the error.
func (a *OrderAutomation) Run(ctx context.Context) (*dto.AutomationSummary, error) {
	ch := a.group.DoChan("order-automation", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.policy.RunTimeout)
		defer cancel()
		return a.run(runCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			a.logger.Debug("Order automation run shared with a concurrent caller")
		}
		summary, _ := res.Val.(*dto.AutomationSummary)
		return summary, res.Err
	}
}

func (a *OrderAutomation) run(ctx context.Context) (*dto.AutomationSummary, error) {
	now := a.clock.Now()
	summary := dto.NewAutomationSummary(now)

	if a.locker != nil {
		release, acquired, err := a.locker.TryLock(ctx, automationLockKey)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire automation lock: %w", err)
		}
		if !acquired {
			a.logger.Info("Order automation already running elsewhere, skipping")
			summary.Skipped = true
			return summary, nil
		}
		defer release()
	}

	if err := a.cancelUnpaid(ctx, now, &summary.CancelledOrders); err != nil {
		return summary, err
	}
	if err := a.warnStalled(ctx, now, &summary.WarningOrders); err != nil {
		return summary, err
	}
	if err := a.remindPickup(ctx, now, &summary.Reminders); err != nil {
		return summary, err
	}

	a.logger.Info("Order automation finished",
		zap.Int("cancelled", summary.CancelledOrders.Count),
		zap.Int("warned", summary.WarningOrders.Count),
		zap.Int("reminded", summary.Reminders.Count),
		zap.Int("failed", len(summary.CancelledOrders.Failed)+len(summary.WarningOrders.Failed)+len(summary.Reminders.Failed)),
		zap.Duration("elapsed", a.clock.Now().Sub(now)))
	return summary, nil
}

// orderStep acts on one order inside its own transaction and reports whether
// anything was done
type orderStep func(ctx context.Context, repos *repository.Repositories, order *model.Order) (bool, []*model.Notification, error)

// forEach runs step per order. A failing order is logged and recorded but
// never stops the batch.
func (a *OrderAutomation) forEach(ctx context.Context, pass string, orders []*model.Order, result *dto.PassResult, step orderStep) error {
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s pass interrupted: %w", pass, err)
		}

		var acted bool
		var created []*model.Notification
		err := a.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			var err error
			acted, created, err = step(ctx, repos, order)
			return err
		})
		if err != nil {
			a.logger.Error("Order automation step failed",
				zap.String("pass", pass),
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			result.Failed = append(result.Failed, order.ID)
			continue
		}
		if acted {
			result.Add(order.ID)
			a.notifier.Dispatch(created)
		}
	}
	return nil
}

func (a *OrderAutomation) cancelUnpaid(ctx context.Context, now time.Time, result *dto.PassResult) error {
	orders, err := a.uow.Repositories().Orders.ListTimeoutCandidates(ctx, now.Add(-a.policy.PendingTimeout), a.policy.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unpaid orders: %w", err)
	}

	hours := int(a.policy.PendingTimeout.Hours())
	return a.forEach(ctx, "timeout_cancellation", orders, result, func(ctx context.Context, repos *repository.Repositories, order *model.Order) (bool, []*model.Notification, error) {
		current, err := repos.Orders.GetForUpdate(ctx, order.ID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to lock order: %w", err)
		}
		if current == nil || current.Status != model.OrderStatusPending || current.UsePackage {
			return false, nil, nil
		}
		// Waits for any confirmation still holding a payment row
		payments, err := repos.Payments.ListByOrderForUpdate(ctx, current.ID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to lock order payments: %w", err)
		}
		for _, p := range payments {
			if p.Status == model.PaymentStatusSuccess {
				return false, nil, nil
			}
		}

		if err := repos.Orders.UpdateStatus(ctx, current.ID, model.OrderStatusCancelled, now); err != nil {
			return false, nil, fmt.Errorf("failed to cancel order: %w", err)
		}
		notification, err := a.notifier.Notify(ctx, repos, Message{
			UserID:       current.UserID,
			Type:         model.NotificationOrderCancelled,
			Title:        "Order cancelled",
			Body:         fmt.Sprintf("Order #%d was cancelled because no payment was received within %d hours.", current.ID, hours),
			ActionURL:    fmt.Sprintf("/orders/%d", current.ID),
			ReferenceKey: model.OrderRef(current.ID),
		})
		if err != nil {
			return false, nil, err
		}
		return true, []*model.Notification{notification}, nil
	})
}

func (a *OrderAutomation) warnStalled(ctx context.Context, now time.Time, result *dto.PassResult) error {
	since := now.Add(-a.policy.StallWarning)
	orders, err := a.uow.Repositories().Orders.ListStalled(ctx, since, a.policy.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stalled orders: %w", err)
	}

	hours := int(a.policy.StallWarning.Hours())
	return a.forEach(ctx, "stall_warning", orders, result, func(ctx context.Context, repos *repository.Repositories, order *model.Order) (bool, []*model.Notification, error) {
		warned, err := repos.Notifications.ExistsSince(ctx, model.NotificationOrderStalled, model.OrderRef(order.ID), since)
		if err != nil {
			return false, nil, fmt.Errorf("failed to check existing warning: %w", err)
		}
		if warned {
			return false, nil, nil
		}

		created, err := a.notifier.NotifyAdmins(ctx, repos, Message{
			Type:         model.NotificationOrderStalled,
			Title:        "Order in progress too long",
			Body:         fmt.Sprintf("Order #%d has been in progress for more than %d hours.", order.ID, hours),
			ActionURL:    fmt.Sprintf("/admin/orders/%d", order.ID),
			ReferenceKey: model.OrderRef(order.ID),
		})
		if err != nil {
			return false, nil, err
		}
		return len(created) > 0, created, nil
	})
}

func (a *OrderAutomation) remindPickup(ctx context.Context, now time.Time, result *dto.PassResult) error {
	to := now.Add(-a.policy.PickupReminder)
	from := to.Add(-a.policy.ReminderWindow)
	orders, err := a.uow.Repositories().Orders.ListCompletedBetween(ctx, from, to, a.policy.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list completed orders: %w", err)
	}

	return a.forEach(ctx, "pickup_reminder", orders, result, func(ctx context.Context, repos *repository.Repositories, order *model.Order) (bool, []*model.Notification, error) {
		reminded, err := repos.Notifications.ExistsSince(ctx, model.NotificationPickupReminder, model.OrderRef(order.ID), time.Time{})
		if err != nil {
			return false, nil, fmt.Errorf("failed to check existing reminder: %w", err)
		}
		if reminded {
			return false, nil, nil
		}

		notification, err := a.notifier.Notify(ctx, repos, Message{
			UserID:       order.UserID,
			Type:         model.NotificationPickupReminder,
			Title:        "Your racket is ready",
			Body:         fmt.Sprintf("Order #%d is ready for pickup.", order.ID),
			ActionURL:    fmt.Sprintf("/orders/%d", order.ID),
			ReferenceKey: model.OrderRef(order.ID),
		})
		if err != nil {
			return false, nil, err
		}
		return true, []*model.Notification{notification}, nil
	})
}
