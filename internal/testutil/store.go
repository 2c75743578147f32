// Package testutil provides an in-memory ledger store for usecase tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

type state struct {
	users         map[uuid.UUID]model.User
	payments      map[int64]model.Payment
	orders        map[int64]model.Order
	packages      map[int64]model.Package
	userPackages  map[int64]model.UserPackage
	vouchers      map[int64]model.Voucher
	userVouchers  map[int64]model.UserVoucher
	pointsLog     map[int64]model.PointsLogEntry
	notifications map[int64]model.Notification
	nextID        int64
}

func newState() *state {
	return &state{
		users:         map[uuid.UUID]model.User{},
		payments:      map[int64]model.Payment{},
		orders:        map[int64]model.Order{},
		packages:      map[int64]model.Package{},
		userPackages:  map[int64]model.UserPackage{},
		vouchers:      map[int64]model.Voucher{},
		userVouchers:  map[int64]model.UserVoucher{},
		pointsLog:     map[int64]model.PointsLogEntry{},
		notifications: map[int64]model.Notification{},
	}
}

// MemoryStore implements repository.UnitOfWork and repository.Locker in
// memory. Transactions run concurrently: GetForUpdate takes a row lock held
// until the transaction ends, and a failed transaction undoes its writes.
// Reads outside row locks see uncommitted writes.
type MemoryStore struct {
	mu    sync.Mutex
	st    *state
	rows  map[string]chan struct{}
	clock *FixedClock
	repos *repository.Repositories

	orderUpdateErrs map[int64]error
	lockHeld        bool
	waiting         int

	commits   int
	rollbacks int
}

// NewMemoryStore creates an empty store using clock for row timestamps
func NewMemoryStore(clock *FixedClock) *MemoryStore {
	m := &MemoryStore{
		st:              newState(),
		rows:            map[string]chan struct{}{},
		clock:           clock,
		orderUpdateErrs: map[int64]error{},
	}
	m.repos = &repository.Repositories{
		Users:         &memUsers{m},
		Payments:      &memPayments{m},
		Orders:        &memOrders{m},
		Packages:      &memPackages{m},
		UserPackages:  &memUserPackages{m},
		Vouchers:      &memVouchers{m},
		UserVouchers:  &memUserVouchers{m},
		PointsLog:     &memPointsLog{m},
		Notifications: &memNotifications{m},
	}
	return m
}

func (m *MemoryStore) Repositories() *repository.Repositories {
	return m.repos
}

type txKey struct{}

type memTx struct {
	held []string
	undo []func()
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

// Transaction runs fn in a transaction. Row locks are released and, on
// error or panic, writes are undone in reverse order.
func (m *MemoryStore) Transaction(ctx context.Context, fn repository.TxFunc) (err error) {
	tx := &memTx{}
	defer func() {
		r := recover()
		m.mu.Lock()
		if r != nil || err != nil {
			for i := len(tx.undo) - 1; i >= 0; i-- {
				tx.undo[i]()
			}
			m.rollbacks++
		} else {
			m.commits++
		}
		for _, key := range tx.held {
			<-m.rows[key]
		}
		m.mu.Unlock()
		if r != nil {
			panic(r)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx), m.repos)
}

// lockRow blocks until the row is free or ctx ends. Outside a transaction
// there is nothing to hold the lock for, so it returns immediately.
func (m *MemoryStore) lockRow(ctx context.Context, key string) error {
	tx := txFrom(ctx)
	if tx == nil {
		return nil
	}
	for _, held := range tx.held {
		if held == key {
			return nil
		}
	}

	m.mu.Lock()
	row, ok := m.rows[key]
	if !ok {
		row = make(chan struct{}, 1)
		m.rows[key] = row
	}
	m.mu.Unlock()

	select {
	case row <- struct{}{}:
		tx.held = append(tx.held, key)
		return nil
	default:
	}

	m.mu.Lock()
	m.waiting++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.waiting--
		m.mu.Unlock()
	}()

	select {
	case row <- struct{}{}:
		tx.held = append(tx.held, key)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LockWaiters returns how many transactions are blocked on a row lock
func (m *MemoryStore) LockWaiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// put stores v under k, remembering the previous value so the transaction
// in ctx can undo it. Callers hold m.mu.
func put[K comparable, V any](ctx context.Context, table map[K]V, k K, v V) {
	if tx := txFrom(ctx); tx != nil {
		old, existed := table[k]
		tx.undo = append(tx.undo, func() {
			if existed {
				table[k] = old
			} else {
				delete(table, k)
			}
		})
	}
	table[k] = v
}

// TryLock implements repository.Locker
func (m *MemoryStore) TryLock(ctx context.Context, key int64) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockHeld {
		return nil, false, nil
	}
	m.lockHeld = true
	return func() {
		m.mu.Lock()
		m.lockHeld = false
		m.mu.Unlock()
	}, true, nil
}

// HoldLock simulates another process owning the automation lock
func (m *MemoryStore) HoldLock() (release func()) {
	m.mu.Lock()
	m.lockHeld = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.lockHeld = false
		m.mu.Unlock()
	}
}

// FailOrderUpdates makes every status update of the order fail with err
func (m *MemoryStore) FailOrderUpdates(orderID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderUpdateErrs[orderID] = err
}

// Rollbacks returns how many transactions were rolled back
func (m *MemoryStore) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

func (m *MemoryStore) nextID() int64 {
	m.st.nextID++
	return m.st.nextID
}

// ---- seeding ----

// AddUser stores a user with the given role and points balance. A non-zero
// balance is backed by an opening log entry so the log sum matches.
func (m *MemoryStore) AddUser(role model.UserRole, points int64) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	u := model.User{
		ID:        id,
		Email:     fmt.Sprintf("%s@example.com", id.String()[:8]),
		Name:      string(role),
		Role:      role,
		Points:    points,
		CreatedAt: m.clock.Now(),
		UpdatedAt: m.clock.Now(),
	}
	m.st.users[id] = u
	if points != 0 {
		entryID := m.nextID()
		m.st.pointsLog[entryID] = model.PointsLogEntry{
			ID:           entryID,
			UserID:       id,
			Amount:       points,
			Type:         model.PointsTypeEarn,
			Description:  "opening balance",
			BalanceAfter: points,
			CreatedAt:    m.clock.Now(),
		}
	}
	return &u
}

// AddOrder stores an order, assigning an id when missing
func (m *MemoryStore) AddOrder(o model.Order) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.nextID()
	}
	if o.FinalPrice.IsZero() {
		o.ComputeFinalPrice()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.clock.Now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	m.st.orders[o.ID] = o
	return &o
}

// AddPackage stores a catalog package
func (m *MemoryStore) AddPackage(p model.Package) *model.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextID()
	}
	m.st.packages[p.ID] = p
	return &p
}

// AddVoucher stores a catalog voucher
func (m *MemoryStore) AddVoucher(v model.Voucher) *model.Voucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == 0 {
		v.ID = m.nextID()
	}
	m.st.vouchers[v.ID] = v
	return &v
}

// AddUserVoucher stores a voucher grant
func (m *MemoryStore) AddUserVoucher(g model.UserVoucher) *model.UserVoucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == 0 {
		g.ID = m.nextID()
	}
	m.st.userVouchers[g.ID] = g
	return &g
}

// AddPayment stores a payment as is
func (m *MemoryStore) AddPayment(p *model.Payment) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.nextID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.clock.Now()
	}
	m.st.payments[p.ID] = *p
	cp := *p
	return &cp
}

// AddNotification stores a notification as is
func (m *MemoryStore) AddNotification(n model.Notification) *model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == 0 {
		n.ID = m.nextID()
	}
	m.st.notifications[n.ID] = n
	return &n
}

// ---- inspection ----

func (m *MemoryStore) User(id uuid.UUID) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (m *MemoryStore) Payment(id int64) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.st.payments[id]
	if !ok {
		return nil
	}
	return &p
}

func (m *MemoryStore) Order(id int64) *model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return nil
	}
	return &o
}

func (m *MemoryStore) Voucher(id int64) *model.Voucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.st.vouchers[id]
	if !ok {
		return nil
	}
	return &v
}

func (m *MemoryStore) UserVoucher(id int64) *model.UserVoucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.st.userVouchers[id]
	if !ok {
		return nil
	}
	return &g
}

func (m *MemoryStore) UserPackagesOf(userID uuid.UUID) []model.UserPackage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserPackage
	for _, g := range m.st.userPackages {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) UserVouchersOf(userID uuid.UUID) []model.UserVoucher {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserVoucher
	for _, g := range m.st.userVouchers {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PointsLogOf returns the user's log in creation order
func (m *MemoryStore) PointsLogOf(userID uuid.UUID) []model.PointsLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PointsLogEntry
	for _, e := range m.st.pointsLog {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NotificationsOf returns the user's notifications in creation order
func (m *MemoryStore) NotificationsOf(userID uuid.UUID) []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.st.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NotificationCount returns the total number of stored notifications
func (m *MemoryStore) NotificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.notifications)
}

// Money parses a decimal literal for fixtures
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
