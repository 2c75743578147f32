package usecase_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/testutil"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store      *testutil.MemoryStore
	clock      *testutil.FixedClock
	notifier   *usecase.Notifier
	ledger     *usecase.PointsLedger
	payments   *usecase.PaymentService
	vouchers   *usecase.VoucherService
	automation *usecase.OrderAutomation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	clock := testutil.NewFixedClock(baseTime)
	store := testutil.NewMemoryStore(clock)

	notifier := usecase.NewNotifier(store, nil, clock, time.Second, logger)
	ledger := usecase.NewPointsLedger(store, clock, logger)

	return &fixture{
		store:      store,
		clock:      clock,
		notifier:   notifier,
		ledger:     ledger,
		payments:   usecase.NewPaymentService(store, ledger, notifier, clock, decimal.NewFromInt(1), logger),
		vouchers:   usecase.NewVoucherService(store, ledger, notifier, clock, logger),
		automation: usecase.NewOrderAutomation(store, store, notifier, clock, usecase.DefaultAutomationPolicy(), logger),
	}
}

func actorOf(u *model.User) model.Actor {
	return model.Actor{UserID: u.ID, Role: u.Role}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func moneyPtr(s string) *decimal.Decimal {
	d := testutil.Money(s)
	return &d
}
