package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/testutil"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

// MockPublisher is a mock implementation of NotificationPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestNotifier_NotifyParticipatesInTransaction(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)
	notifier := usecase.NewNotifier(store, nil, clock, time.Second, zap.NewNop())
	user := store.AddUser(model.RoleCustomer, 0)

	err := store.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		_, err := notifier.Notify(ctx, repos, usecase.Message{
			UserID: user.ID,
			Type:   model.NotificationOrderCancelled,
			Title:  "t",
			Body:   "b",
		})
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, store.NotificationsOf(user.ID), "rolled back with the caller")
}

func TestNotifier_Flush(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)
	publisher := new(MockPublisher)
	notifier := usecase.NewNotifier(store, publisher, clock, time.Second, zap.NewNop())

	first := &model.Notification{ID: 1, Type: model.NotificationPaymentConfirmed}
	second := &model.Notification{ID: 2, Type: model.NotificationPaymentRejected}

	publisher.On("Publish", ctx, first).Return(errors.New("broker down")).Once()
	publisher.On("Publish", ctx, second).Return(nil).Once()

	notifier.Flush(ctx, []*model.Notification{first, second})

	publisher.AssertExpectations(t)
}

func TestNotifier_DispatchDeliversAsynchronously(t *testing.T) {
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)
	publisher := new(MockPublisher)
	notifier := usecase.NewNotifier(store, publisher, clock, time.Second, zap.NewNop())

	delivered := make(chan struct{})
	n := &model.Notification{ID: 7}
	publisher.On("Publish", mock.Anything, n).Return(nil).Run(func(args mock.Arguments) {
		close(delivered)
	}).Once()

	notifier.Dispatch([]*model.Notification{n})

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestNotifier_WaitBlocksUntilDelivered(t *testing.T) {
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)
	publisher := new(MockPublisher)
	notifier := usecase.NewNotifier(store, publisher, clock, time.Second, zap.NewNop())

	var delivered atomic.Int32
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		time.Sleep(20 * time.Millisecond)
		delivered.Add(1)
	})

	notifier.Dispatch([]*model.Notification{{ID: 1}, {ID: 2}})
	notifier.Dispatch([]*model.Notification{{ID: 3}})
	notifier.Wait()

	assert.Equal(t, int32(3), delivered.Load())
}

func TestNotifier_ListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)
	notifier := usecase.NewNotifier(store, nil, clock, time.Second, zap.NewNop())
	user := store.AddUser(model.RoleCustomer, 0)
	other := store.AddUser(model.RoleCustomer, 0)

	first := store.AddNotification(model.Notification{UserID: user.ID, Type: model.NotificationPickupReminder, Title: "a", Message: "a"})
	store.AddNotification(model.Notification{UserID: user.ID, Type: model.NotificationPickupReminder, Title: "b", Message: "b"})

	err := notifier.MarkRead(ctx, model.Actor{UserID: other.ID, Role: model.RoleCustomer}, first.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))

	actor := model.Actor{UserID: user.ID, Role: model.RoleCustomer}
	require.NoError(t, notifier.MarkRead(ctx, actor, first.ID))
	require.NoError(t, notifier.MarkRead(ctx, actor, first.ID), "marking twice is a no-op")

	unread, err := notifier.List(ctx, actor, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "b", unread[0].Title)

	all, err := notifier.List(ctx, actor, false, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = notifier.MarkRead(ctx, actor, 404)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}
