package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/testutil"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

func addPendingOrder(f *fixture, owner *model.User, price string) *model.Order {
	return f.store.AddOrder(model.Order{
		UserID:     owner.ID,
		Status:     model.OrderStatusPending,
		StringName: "BG65",
		Price:      testutil.Money(price),
	})
}

func TestPaymentService_PackagePurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	pkg := f.store.AddPackage(model.Package{Name: "Ten pack", Times: 10, ValidityDays: 30, Price: testutil.Money("100.00"), Active: true})

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{PackageID: int64Ptr(pkg.ID)})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, model.PackageTarget(pkg.ID), payment.Target())
	assert.Equal(t, "100", payment.Amount.String())

	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/receipts/1.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPendingVerification, f.store.Payment(payment.ID).Status)

	result, err := f.payments.Confirm(ctx, actorOf(admin), payment.ID, "TXN-1", "looks good")
	require.NoError(t, err)
	require.NotNil(t, result.UserPackageID)
	assert.Equal(t, int64(100), result.PointsEarned)

	stored := f.store.Payment(payment.ID)
	assert.Equal(t, model.PaymentStatusSuccess, stored.Status)
	require.NotNil(t, stored.TransactionRef)
	assert.Equal(t, "TXN-1", *stored.TransactionRef)
	meta := stored.Meta()
	require.NotNil(t, meta.VerifiedAt)
	assert.Equal(t, admin.ID.String(), meta.VerifiedBy)

	grants := f.store.UserPackagesOf(user.ID)
	require.Len(t, grants, 1)
	assert.Equal(t, 10, grants[0].Remaining)
	assert.Equal(t, 10, grants[0].OriginalTimes)
	assert.Equal(t, payment.ID, grants[0].PaymentID)
	assert.WithinDuration(t, baseTime.Add(30*24*time.Hour), grants[0].ExpiresAt, time.Second)

	var confirmed *model.Notification
	for _, n := range f.store.NotificationsOf(user.ID) {
		n := n
		if n.Type == model.NotificationPaymentConfirmed {
			confirmed = &n
		}
	}
	require.NotNil(t, confirmed)
	require.NotNil(t, confirmed.ActionURL)
	assert.Equal(t, "/profile/packages", *confirmed.ActionURL)

	assert.Equal(t, int64(100), f.store.User(user.ID).Points)
	assert.NoError(t, f.ledger.Reconcile(ctx, user.ID))
}

func TestPaymentService_ConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	pkg := f.store.AddPackage(model.Package{Name: "Five pack", Times: 5, ValidityDays: 10, Price: testutil.Money("60.00"), Active: true})

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{PackageID: int64Ptr(pkg.ID)})
	require.NoError(t, err)

	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	require.NoError(t, err)

	notificationsAfterFirst := f.store.NotificationCount()
	pointsAfterFirst := f.store.User(user.ID).Points

	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	assert.Len(t, f.store.UserPackagesOf(user.ID), 1)
	assert.Equal(t, notificationsAfterFirst, f.store.NotificationCount())
	assert.Equal(t, pointsAfterFirst, f.store.User(user.ID).Points)
}

func TestPaymentService_ConcurrentConfirmHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "35.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 3, conflicts)
	assert.Equal(t, int64(35), f.store.User(user.ID).Points)
}

func TestPaymentService_OrderConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)

	grant := f.store.AddUserVoucher(model.UserVoucher{
		UserID:    user.ID,
		VoucherID: 1,
		Status:    model.UserVoucherStatusActive,
		ExpiresAt: baseTime.Add(time.Hour),
	})
	order := f.store.AddOrder(model.Order{
		UserID:        user.ID,
		Status:        model.OrderStatusPending,
		Price:         testutil.Money("40.00"),
		Discount:      testutil.Money("5.00"),
		UserVoucherID: &grant.ID,
	})

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)
	assert.Equal(t, "35", payment.Amount.String())

	f.clock.Advance(30 * time.Minute)
	result, err := f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	require.NoError(t, err)
	assert.True(t, result.OrderAdvanced)
	assert.Nil(t, result.UserPackageID)

	advanced := f.store.Order(order.ID)
	assert.Equal(t, model.OrderStatusInProgress, advanced.Status)
	assert.Equal(t, f.clock.Now(), advanced.UpdatedAt)
	used := f.store.UserVoucher(grant.ID)
	assert.Equal(t, model.UserVoucherStatusUsed, used.Status)
	require.NotNil(t, used.OrderID)
	assert.Equal(t, order.ID, *used.OrderID)
}

func TestPaymentService_RejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)
	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/1.jpg")
	require.NoError(t, err)

	_, err = f.payments.Reject(ctx, actorOf(admin), payment.ID, "illegible receipt")
	require.NoError(t, err)

	stored := f.store.Payment(payment.ID)
	assert.Equal(t, model.PaymentStatusRejected, stored.Status)
	assert.Equal(t, "illegible receipt", stored.Meta().RejectReason)
	assert.Equal(t, model.OrderStatusPaymentRejected, f.store.Order(order.ID).Status)

	var rejection *model.Notification
	for _, n := range f.store.NotificationsOf(user.ID) {
		n := n
		if n.Type == model.NotificationPaymentRejected {
			rejection = &n
		}
	}
	require.NotNil(t, rejection)
	assert.Contains(t, rejection.Message, "illegible receipt")

	resubmitted, err := f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/2.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPendingVerification, resubmitted.Status)
	assert.Equal(t, 2, resubmitted.Meta().SubmissionCount)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(order.ID).Status)

	result, err := f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	require.NoError(t, err)
	assert.True(t, result.OrderAdvanced)
	assert.Equal(t, model.OrderStatusInProgress, f.store.Order(order.ID).Status)
}

func TestPaymentService_RejectConfirmedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)
	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	require.NoError(t, err)

	_, err = f.payments.Reject(ctx, actorOf(admin), payment.ID, "changed my mind")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, model.PaymentStatusSuccess, f.store.Payment(payment.ID).Status)
	assert.Equal(t, model.OrderStatusInProgress, f.store.Order(order.ID).Status)

	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/3.jpg")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
}

func TestPaymentService_Authorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.store.AddUser(model.RoleCustomer, 0)
	stranger := f.store.AddUser(model.RoleCustomer, 0)
	order := addPendingOrder(f, owner, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(owner), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)

	t.Run("stranger cannot submit proof", func(t *testing.T) {
		_, err := f.payments.SubmitProof(ctx, actorOf(stranger), payment.ID, "https://x.example.com/p.jpg")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
		assert.Equal(t, model.PaymentStatusPending, f.store.Payment(payment.ID).Status)
	})

	t.Run("customer cannot confirm or reject", func(t *testing.T) {
		_, err := f.payments.Confirm(ctx, actorOf(owner), payment.ID, "", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))

		_, err = f.payments.Reject(ctx, actorOf(owner), payment.ID, "nope")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))

		_, err = f.payments.ListPendingReview(ctx, actorOf(owner))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
	})

	t.Run("stranger cannot pay for another user's order", func(t *testing.T) {
		_, err := f.payments.CreatePayment(ctx, actorOf(stranger), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
	})

	t.Run("stranger cannot read payment", func(t *testing.T) {
		_, err := f.payments.GetPayment(ctx, actorOf(stranger), payment.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))

		got, err := f.payments.GetPayment(ctx, actorOf(owner), payment.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)
	})
}

func TestPaymentService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	order := addPendingOrder(f, user, "30.00")
	pkg := f.store.AddPackage(model.Package{Name: "P", Times: 1, ValidityDays: 1, Price: testutil.Money("10.00"), Active: true})

	tests := []struct {
		name     string
		req      dto.CreatePaymentRequest
		wantCode string
	}{
		{"both targets", dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID), PackageID: int64Ptr(pkg.ID)}, apperrors.ErrInvalidArgument},
		{"standalone without amount", dto.CreatePaymentRequest{}, apperrors.ErrInvalidArgument},
		{"standalone with zero amount", dto.CreatePaymentRequest{Amount: moneyPtr("0")}, apperrors.ErrInvalidArgument},
		{"mismatched order amount", dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID), Amount: moneyPtr("29.99")}, apperrors.ErrInvalidArgument},
		{"missing order", dto.CreatePaymentRequest{OrderID: int64Ptr(9999)}, apperrors.ErrNotFound},
		{"missing package", dto.CreatePaymentRequest{PackageID: int64Ptr(9999)}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.payments.CreatePayment(ctx, actorOf(user), tt.req)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}

	t.Run("standalone store credit", func(t *testing.T) {
		payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{Amount: moneyPtr("12.345")})
		require.NoError(t, err)
		assert.Equal(t, model.NoTarget(), payment.Target())
		assert.Equal(t, "12.35", payment.Amount.StringFixed(2))
	})
}

func TestPaymentService_CashPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "25.00")

	payment, err := f.payments.CreateCashPayment(ctx, actorOf(user), dto.CreateCashPaymentRequest{OrderID: int64Ptr(order.ID), Note: "pay at counter"})
	require.NoError(t, err)
	assert.Equal(t, model.ProviderCash, payment.Provider)
	assert.Equal(t, "pay at counter", payment.Meta().CashNote)

	adminInbox := f.store.NotificationsOf(admin.ID)
	require.Len(t, adminInbox, 1)
	assert.Equal(t, model.NotificationCashPending, adminInbox[0].Type)

	queue, err := f.payments.ListPendingReview(ctx, actorOf(admin))
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, payment.ID, queue[0].ID)

	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "collected")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProgress, f.store.Order(order.ID).Status)

	_, err = f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict), "a paid order cannot be paid again")
}

func TestPaymentService_SubmitProofNotifiesReviewers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admins := []*model.User{f.store.AddUser(model.RoleAdmin, 0), f.store.AddUser(model.RoleAdmin, 0)}
	order := addPendingOrder(f, user, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)

	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))

	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/1.jpg")
	require.NoError(t, err)

	for _, admin := range admins {
		inbox := f.store.NotificationsOf(admin.ID)
		require.Len(t, inbox, 1)
		assert.Equal(t, model.NotificationPaymentReview, inbox[0].Type)
	}
	userInbox := f.store.NotificationsOf(user.ID)
	require.Len(t, userInbox, 1)
	assert.Equal(t, model.NotificationPaymentSubmitted, userInbox[0].Type)

	stored := f.store.Payment(payment.ID)
	require.NotNil(t, stored.ReceiptURL)
	assert.Equal(t, "https://cdn.example.com/r/1.jpg", *stored.ReceiptURL)
}

func TestPaymentService_ConfirmRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)

	f.store.FailOrderUpdates(order.ID, assert.AnError)

	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	require.ErrorIs(t, err, assert.AnError)

	assert.Equal(t, model.PaymentStatusPending, f.store.Payment(payment.ID).Status)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(order.ID).Status)
	assert.Zero(t, f.store.User(user.ID).Points)
	assert.Empty(t, f.store.NotificationsOf(user.ID))
}

func TestPaymentService_ConfirmRefusedAfterTimeoutCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := f.store.AddOrder(model.Order{
		UserID:    user.ID,
		Status:    model.OrderStatusPending,
		Price:     testutil.Money("30.00"),
		CreatedAt: baseTime.Add(-49 * time.Hour),
	})

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)
	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/late.jpg")
	require.NoError(t, err)

	summary, err := f.automation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{order.ID}, summary.CancelledOrders.OrderIDs)

	_, err = f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	assert.Equal(t, model.PaymentStatusPendingVerification, f.store.Payment(payment.ID).Status)
	assert.Equal(t, model.OrderStatusCancelled, f.store.Order(order.ID).Status)
	assert.Zero(t, f.store.User(user.ID).Points)
	for _, n := range f.store.NotificationsOf(user.ID) {
		assert.NotEqual(t, model.NotificationPaymentConfirmed, n.Type)
	}

	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/again.jpg")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))

	// The reviewer can still close it out
	_, err = f.payments.Reject(ctx, actorOf(admin), payment.ID, "order expired")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRejected, f.store.Payment(payment.ID).Status)
	assert.Equal(t, model.OrderStatusCancelled, f.store.Order(order.ID).Status)
}

func TestPaymentService_ConfirmLocksOrderBeforePayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	admin := f.store.AddUser(model.RoleAdmin, 0)
	order := addPendingOrder(f, user, "30.00")

	payment, err := f.payments.CreatePayment(ctx, actorOf(user), dto.CreatePaymentRequest{OrderID: int64Ptr(order.ID)})
	require.NoError(t, err)
	_, err = f.payments.SubmitProof(ctx, actorOf(user), payment.ID, "https://cdn.example.com/r/1.jpg")
	require.NoError(t, err)

	// A concurrent cancellation holds the order row
	locked := make(chan struct{})
	release := make(chan struct{})
	cancelled := make(chan error, 1)
	go func() {
		cancelled <- f.store.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			if _, err := repos.Orders.GetForUpdate(ctx, order.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return repos.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, f.clock.Now())
		})
	}()
	<-locked

	confirmed := make(chan error, 1)
	go func() {
		_, err := f.payments.Confirm(ctx, actorOf(admin), payment.ID, "", "")
		confirmed <- err
	}()

	require.Eventually(t, func() bool { return f.store.LockWaiters() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, model.PaymentStatusPendingVerification, f.store.Payment(payment.ID).Status,
		"payment must not be written while the order is held elsewhere")

	close(release)
	require.NoError(t, <-cancelled)

	err = <-confirmed
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Equal(t, model.PaymentStatusPendingVerification, f.store.Payment(payment.ID).Status)
	assert.Zero(t, f.store.User(user.ID).Points)
}
