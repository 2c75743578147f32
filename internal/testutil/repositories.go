package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type memUsers struct{ m *MemoryStore }

func (r *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.m.User(id), nil
}

func (r *memUsers) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if err := r.m.lockRow(ctx, "user:"+id.String()); err != nil {
		return nil, err
	}
	return r.m.User(id), nil
}

func (r *memUsers) UpdatePoints(ctx context.Context, id uuid.UUID, points int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.st.users[id]
	if !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, "user not found", nil)
	}
	u.Points = points
	u.UpdatedAt = r.m.clock.Now()
	put(ctx, r.m.st.users, id, u)
	return nil
}

func (r *memUsers) ListAdmins(ctx context.Context) ([]*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.User
	for _, u := range r.m.st.users {
		if u.Role == model.RoleAdmin {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memPayments struct{ m *MemoryStore }

func (r *memPayments) Create(ctx context.Context, p *model.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p.ID = r.m.nextID()
	put(ctx, r.m.st.payments, p.ID, *p)
	return nil
}

func (r *memPayments) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	return r.m.Payment(id), nil
}

func (r *memPayments) GetForUpdate(ctx context.Context, id int64) (*model.Payment, error) {
	if err := r.m.lockRow(ctx, paymentRow(id)); err != nil {
		return nil, err
	}
	return r.m.Payment(id), nil
}

func (r *memPayments) Update(ctx context.Context, p *model.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.st.payments[p.ID]; !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, "payment not found", nil)
	}
	put(ctx, r.m.st.payments, p.ID, *p)
	return nil
}

func (r *memPayments) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.m.st.payments {
		if p.UserID == userID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (r *memPayments) ListByStatus(ctx context.Context, statuses []model.PaymentStatus, limit int) ([]*model.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	want := map[model.PaymentStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []*model.Payment
	for _, p := range r.m.st.payments {
		if want[p.Status] {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}

func (r *memPayments) HasSuccessfulForOrder(ctx context.Context, orderID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.hasSuccessfulLocked(orderID), nil
}

func (r *memPayments) ListByOrderForUpdate(ctx context.Context, orderID int64) ([]*model.Payment, error) {
	r.m.mu.Lock()
	var ids []int64
	for _, p := range r.m.st.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			ids = append(ids, p.ID)
		}
	}
	r.m.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*model.Payment, 0, len(ids))
	for _, id := range ids {
		if err := r.m.lockRow(ctx, paymentRow(id)); err != nil {
			return nil, err
		}
		if p := r.m.Payment(id); p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func paymentRow(id int64) string {
	return fmt.Sprintf("payment:%d", id)
}

func (m *MemoryStore) hasSuccessfulLocked(orderID int64) bool {
	for _, p := range m.st.payments {
		if p.OrderID != nil && *p.OrderID == orderID && p.Status == model.PaymentStatusSuccess {
			return true
		}
	}
	return false
}

type memOrders struct{ m *MemoryStore }

func (r *memOrders) Create(ctx context.Context, o *model.Order) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o.ID = r.m.nextID()
	put(ctx, r.m.st.orders, o.ID, *o)
	return nil
}

func (r *memOrders) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.m.Order(id), nil
}

func (r *memOrders) GetForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	if err := r.m.lockRow(ctx, fmt.Sprintf("order:%d", id)); err != nil {
		return nil, err
	}
	return r.m.Order(id), nil
}

func (r *memOrders) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.orderUpdateErrs[id]; err != nil {
		return err
	}
	o, ok := r.m.st.orders[id]
	if !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, "order not found", nil)
	}
	o.Status = status
	o.UpdatedAt = at
	if status == model.OrderStatusCompleted && o.CompletedAt == nil {
		o.CompletedAt = &at
	}
	put(ctx, r.m.st.orders, id, o)
	return nil
}

func (r *memOrders) list(limit int, match func(o model.Order) bool) []*model.Order {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.Order
	for _, o := range r.m.st.orders {
		if match(o) {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0)
}

func (r *memOrders) ListTimeoutCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	return r.list(limit, func(o model.Order) bool {
		return o.Status == model.OrderStatusPending && !o.UsePackage &&
			o.CreatedAt.Before(cutoff) && !r.m.hasSuccessfulLocked(o.ID)
	}), nil
}

func (r *memOrders) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	return r.list(limit, func(o model.Order) bool {
		return o.Status == model.OrderStatusInProgress && o.UpdatedAt.Before(cutoff)
	}), nil
}

func (r *memOrders) ListCompletedBetween(ctx context.Context, from, to time.Time, limit int) ([]*model.Order, error) {
	return r.list(limit, func(o model.Order) bool {
		return o.Status == model.OrderStatusCompleted && o.CompletedAt != nil &&
			!o.CompletedAt.Before(from) && o.CompletedAt.Before(to)
	}), nil
}

type memPackages struct{ m *MemoryStore }

func (r *memPackages) GetByID(ctx context.Context, id int64) (*model.Package, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.st.packages[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type memUserPackages struct{ m *MemoryStore }

func (r *memUserPackages) Create(ctx context.Context, g *model.UserPackage) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.st.userPackages {
		if existing.PaymentID == g.PaymentID {
			return apperrors.NewAppError(apperrors.ErrConflict, "package already granted for payment", nil)
		}
	}
	g.ID = r.m.nextID()
	put(ctx, r.m.st.userPackages, g.ID, *g)
	return nil
}

func (r *memUserPackages) GetByPaymentID(ctx context.Context, paymentID int64) (*model.UserPackage, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, g := range r.m.st.userPackages {
		if g.PaymentID == paymentID {
			return &g, nil
		}
	}
	return nil, nil
}

func (r *memUserPackages) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserPackage, error) {
	grants := r.m.UserPackagesOf(userID)
	out := make([]*model.UserPackage, 0, len(grants))
	for i := range grants {
		out = append(out, &grants[i])
	}
	return out, nil
}

type memVouchers struct{ m *MemoryStore }

func (r *memVouchers) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	return r.m.Voucher(id), nil
}

func (r *memVouchers) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.st.vouchers {
		if strings.EqualFold(v.Code, code) {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *memVouchers) GetForUpdate(ctx context.Context, id int64) (*model.Voucher, error) {
	if err := r.m.lockRow(ctx, fmt.Sprintf("voucher:%d", id)); err != nil {
		return nil, err
	}
	return r.m.Voucher(id), nil
}

func (r *memVouchers) IncrementUsedCount(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.st.vouchers[id]
	if !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, "voucher not found", nil)
	}
	v.UsedCount++
	put(ctx, r.m.st.vouchers, id, v)
	return nil
}

func (r *memVouchers) ListRedeemable(ctx context.Context, at time.Time) ([]*model.Voucher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.Voucher
	for _, v := range r.m.st.vouchers {
		if v.Active && v.InWindow(at) && !v.Exhausted() {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memUserVouchers struct{ m *MemoryStore }

func (r *memUserVouchers) Create(ctx context.Context, g *model.UserVoucher) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	g.ID = r.m.nextID()
	stored := *g
	stored.Voucher = nil
	put(ctx, r.m.st.userVouchers, g.ID, stored)
	return nil
}

func (r *memUserVouchers) GetByID(ctx context.Context, id int64) (*model.UserVoucher, error) {
	return r.m.UserVoucher(id), nil
}

func (r *memUserVouchers) CountByUserAndVoucher(ctx context.Context, userID uuid.UUID, voucherID int64) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, g := range r.m.st.userVouchers {
		if g.UserID == userID && g.VoucherID == voucherID {
			n++
		}
	}
	return n, nil
}

func (r *memUserVouchers) ListByUser(ctx context.Context, userID uuid.UUID, status *model.UserVoucherStatus) ([]*model.UserVoucher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*model.UserVoucher
	for _, g := range r.m.st.userVouchers {
		if g.UserID != userID || (status != nil && g.Status != *status) {
			continue
		}
		g := g
		if v, ok := r.m.st.vouchers[g.VoucherID]; ok {
			g.Voucher = &v
		}
		out = append(out, &g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memUserVouchers) MarkUsed(ctx context.Context, id int64, orderID int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	g, ok := r.m.st.userVouchers[id]
	if !ok || g.Status != model.UserVoucherStatusActive {
		return apperrors.NewAppError(apperrors.ErrConflict, "voucher is not active", nil)
	}
	g.Status = model.UserVoucherStatusUsed
	g.OrderID = &orderID
	g.UsedAt = &at
	g.UpdatedAt = at
	put(ctx, r.m.st.userVouchers, id, g)
	return nil
}

type memPointsLog struct{ m *MemoryStore }

func (r *memPointsLog) Create(ctx context.Context, e *model.PointsLogEntry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e.ID = r.m.nextID()
	put(ctx, r.m.st.pointsLog, e.ID, *e)
	return nil
}

func (r *memPointsLog) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.PointsLogEntry, error) {
	entries := r.m.PointsLogOf(userID)
	out := make([]*model.PointsLogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, &entries[i])
	}
	return page(out, limit, offset), nil
}

func (r *memPointsLog) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return int64(len(r.m.PointsLogOf(userID))), nil
}

func (r *memPointsLog) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, e := range r.m.PointsLogOf(userID) {
		sum += e.Amount
	}
	return sum, nil
}

type memNotifications struct{ m *MemoryStore }

func (r *memNotifications) Create(ctx context.Context, n *model.Notification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n.ID = r.m.nextID()
	put(ctx, r.m.st.notifications, n.ID, *n)
	return nil
}

func (r *memNotifications) GetByID(ctx context.Context, id int64) (*model.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.st.notifications[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *memNotifications) ExistsSince(ctx context.Context, notificationType model.NotificationType, referenceKey string, since time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, n := range r.m.st.notifications {
		if n.Type == notificationType && n.ReferenceKey != nil && *n.ReferenceKey == referenceKey && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memNotifications) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	all := r.m.NotificationsOf(userID)
	var out []*model.Notification
	for i := len(all) - 1; i >= 0; i-- {
		if unreadOnly && all[i].Read {
			continue
		}
		out = append(out, &all[i])
	}
	return page(out, limit, 0), nil
}

func (r *memNotifications) MarkRead(ctx context.Context, id int64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n, ok := r.m.st.notifications[id]
	if !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, "notification not found", nil)
	}
	n.Read = true
	n.ReadAt = &at
	put(ctx, r.m.st.notifications, id, n)
	return nil
}
