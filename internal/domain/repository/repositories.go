package repository

import "context"

// Repositories bundles every repository bound to one database handle
type Repositories struct {
	Users         UserRepository
	Payments      PaymentRepository
	Orders        OrderRepository
	Packages      PackageRepository
	UserPackages  UserPackageRepository
	Vouchers      VoucherRepository
	UserVouchers  UserVoucherRepository
	PointsLog     PointsLogRepository
	Notifications NotificationRepository
}

// TxFunc runs against repositories bound to a single transaction
type TxFunc func(ctx context.Context, repos *Repositories) error

// UnitOfWork scopes compound ledger operations to one store transaction.
// Transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Repositories() *Repositories
	Transaction(ctx context.Context, fn TxFunc) error
}

// Locker provides a cross-process try-lock
type Locker interface {
	// TryLock returns acquired=false without blocking when another holder owns key
	TryLock(ctx context.Context, key int64) (release func(), acquired bool, err error)
}
