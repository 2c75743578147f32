package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/testutil"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

func newVoucher(code string, pointsCost int64, perUser int) model.Voucher {
	return model.Voucher{
		Code:                  code,
		Name:                  code + " voucher",
		Type:                  model.VoucherTypeFixed,
		Value:                 testutil.Money("5.00"),
		MinPurchase:           testutil.Money("20.00"),
		ValidFrom:             baseTime.Add(-24 * time.Hour),
		ValidUntil:            baseTime.Add(30 * 24 * time.Hour),
		MaxRedemptionsPerUser: perUser,
		PointsCost:            pointsCost,
		Active:                true,
	}
}

func TestVoucherService_PointsFundedRedemption(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 50)
	voucher := f.store.AddVoucher(newVoucher("SAVE5", 30, 1))

	grant, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, model.UserVoucherStatusActive, grant.Status)
	assert.True(t, grant.ExpiresAt.Equal(voucher.ValidUntil))
	assert.Equal(t, int64(20), f.store.User(user.ID).Points)

	entries := f.store.PointsLogOf(user.ID)
	last := entries[len(entries)-1]
	assert.Equal(t, int64(-30), last.Amount)
	assert.Equal(t, int64(20), last.BalanceAfter)
	assert.Equal(t, model.PointsTypeRedeem, last.Type)

	assert.Len(t, f.store.UserVouchersOf(user.ID), 1)
	assert.Equal(t, voucher.UsedCount+1, f.store.Voucher(voucher.ID).UsedCount)
	assert.NotEmpty(t, f.store.NotificationsOf(user.ID))
}

func TestVoucherService_PerUserCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	voucher := f.store.AddVoucher(newVoucher("TWICE", 0, 2))

	for i := 0; i < 2; i++ {
		_, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, 0)
		require.NoError(t, err)
	}

	_, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConflict))
	assert.Len(t, f.store.UserVouchersOf(user.ID), 2)
	assert.Equal(t, 2, f.store.Voucher(voucher.ID).UsedCount)

	other := f.store.AddUser(model.RoleCustomer, 0)
	_, err = f.vouchers.RedeemByID(ctx, actorOf(other), voucher.ID, 0)
	assert.NoError(t, err, "the cap is per user")
}

func TestVoucherService_ValidationOrder(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		balance  int64
		offered  int64
		mutate   func(v *model.Voucher)
		wantCode string
	}{
		{
			name:     "inactive voucher",
			balance:  100,
			offered:  30,
			mutate:   func(v *model.Voucher) { v.Active = false; v.MaxUses = 1; v.UsedCount = 1 },
			wantCode: apperrors.ErrConflict,
		},
		{
			name:     "not yet valid",
			balance:  100,
			offered:  30,
			mutate:   func(v *model.Voucher) { v.ValidFrom = baseTime.Add(time.Hour) },
			wantCode: apperrors.ErrConflict,
		},
		{
			name:     "expired",
			balance:  100,
			offered:  30,
			mutate:   func(v *model.Voucher) { v.ValidUntil = baseTime.Add(-time.Minute) },
			wantCode: apperrors.ErrConflict,
		},
		{
			name:     "global cap reached",
			balance:  100,
			offered:  30,
			mutate:   func(v *model.Voucher) { v.MaxUses = 3; v.UsedCount = 3 },
			wantCode: apperrors.ErrConflict,
		},
		{
			name:     "points not offered",
			balance:  100,
			offered:  10,
			mutate:   func(v *model.Voucher) {},
			wantCode: apperrors.ErrInvalidArgument,
		},
		{
			name:     "insufficient balance",
			balance:  29,
			offered:  30,
			mutate:   func(v *model.Voucher) {},
			wantCode: apperrors.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := f.store.AddUser(model.RoleCustomer, tt.balance)
			v := newVoucher("CHECK", 30, 1)
			tt.mutate(&v)
			voucher := f.store.AddVoucher(v)

			_, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, tt.offered)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))

			assert.Empty(t, f.store.UserVouchersOf(user.ID))
			assert.Equal(t, tt.balance, f.store.User(user.ID).Points)
			assert.Equal(t, v.UsedCount, f.store.Voucher(voucher.ID).UsedCount)
			assert.Zero(t, f.store.NotificationCount())
		})
	}

	t.Run("unknown voucher", func(t *testing.T) {
		f := newFixture(t)
		user := f.store.AddUser(model.RoleCustomer, 0)

		_, err := f.vouchers.RedeemByID(ctx, actorOf(user), 999, 0)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

		_, err = f.vouchers.RedeemByCode(ctx, actorOf(user), "NOPE", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	})
}

func TestVoucherService_FreeVoucherSkipsBalanceCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)
	voucher := f.store.AddVoucher(newVoucher("FREE", 0, 1))

	grant, err := f.vouchers.RedeemByCode(ctx, actorOf(user), "free", false)
	require.NoError(t, err)
	assert.Equal(t, voucher.ID, grant.VoucherID)
	assert.Empty(t, f.store.PointsLogOf(user.ID))
}

func TestVoucherService_RedeemByCode(t *testing.T) {
	ctx := context.Background()

	t.Run("points voucher requires use_points", func(t *testing.T) {
		f := newFixture(t)
		user := f.store.AddUser(model.RoleCustomer, 100)
		f.store.AddVoucher(newVoucher("PTS", 40, 1))

		_, err := f.vouchers.RedeemByCode(ctx, actorOf(user), "PTS", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))

		grant, err := f.vouchers.RedeemByCode(ctx, actorOf(user), "PTS", true)
		require.NoError(t, err)
		assert.NotZero(t, grant.ID)
		assert.Equal(t, int64(60), f.store.User(user.ID).Points)
	})

	t.Run("blank code", func(t *testing.T) {
		f := newFixture(t)
		user := f.store.AddUser(model.RoleCustomer, 0)

		_, err := f.vouchers.RedeemByCode(ctx, actorOf(user), "  ", false)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
	})
}

func TestVoucherService_OverOfferDebitsExactCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 100)
	voucher := f.store.AddVoucher(newVoucher("EXACT", 30, 1))

	_, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, 80)
	require.NoError(t, err)
	assert.Equal(t, int64(70), f.store.User(user.ID).Points)
}

func TestVoucherService_GetRedeemableVouchers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 20)

	cheap := f.store.AddVoucher(newVoucher("CHEAP", 10, 1))
	pricey := f.store.AddVoucher(newVoucher("PRICEY", 50, 1))
	used := f.store.AddVoucher(newVoucher("USED", 0, 1))
	inactive := newVoucher("OFF", 0, 1)
	inactive.Active = false
	f.store.AddVoucher(inactive)

	_, err := f.vouchers.RedeemByID(ctx, actorOf(user), used.ID, 0)
	require.NoError(t, err)

	list, err := f.vouchers.GetRedeemableVouchers(ctx, actorOf(user))
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[int64]bool{}
	for _, v := range list {
		byID[v.ID] = v.Affordable
		assert.Equal(t, int64(1), v.RemainingQuota)
	}
	assert.True(t, byID[cheap.ID])
	assert.False(t, byID[pricey.ID])
}

func TestVoucherService_PreviewDiscount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.store.AddUser(model.RoleCustomer, 0)

	maxDiscount := testutil.Money("8.00")
	v := newVoucher("PCT", 0, 1)
	v.Type = model.VoucherTypePercentage
	v.Value = testutil.Money("10")
	v.MaxDiscount = &maxDiscount
	voucher := f.store.AddVoucher(v)

	grant, err := f.vouchers.RedeemByID(ctx, actorOf(user), voucher.ID, 0)
	require.NoError(t, err)

	t.Run("percentage within cap", func(t *testing.T) {
		preview, err := f.vouchers.PreviewDiscount(ctx, actorOf(user), grant.ID, testutil.Money("45.00"))
		require.NoError(t, err)
		assert.Equal(t, "4.5", preview.Discount.String())
		assert.Equal(t, "40.5", preview.FinalAmount.String())
	})

	t.Run("percentage capped", func(t *testing.T) {
		preview, err := f.vouchers.PreviewDiscount(ctx, actorOf(user), grant.ID, testutil.Money("200.00"))
		require.NoError(t, err)
		assert.Equal(t, "8", preview.Discount.String())
	})

	t.Run("below minimum purchase", func(t *testing.T) {
		_, err := f.vouchers.PreviewDiscount(ctx, actorOf(user), grant.ID, testutil.Money("19.99"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInsufficientBalance))
	})

	t.Run("someone else's grant", func(t *testing.T) {
		other := f.store.AddUser(model.RoleCustomer, 0)
		_, err := f.vouchers.PreviewDiscount(ctx, actorOf(other), grant.ID, testutil.Money("45.00"))
		assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
	})
}
