package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	domainErrors "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/errors"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

const pendingReviewLimit = 100

// PaymentService owns the payment state machine and the fulfillment that
// follows a confirmation
type PaymentService struct {
	uow      repository.UnitOfWork
	ledger   *PointsLedger
	notifier *Notifier
	clock    Clock
	earnRate decimal.Decimal
	logger   *zap.Logger
}

// NewPaymentService creates a new payment service. earnRate is points per
// currency unit of a confirmed payment; zero disables earning.
func NewPaymentService(uow repository.UnitOfWork, ledger *PointsLedger, notifier *Notifier, clock Clock, earnRate decimal.Decimal, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		uow:      uow,
		ledger:   ledger,
		notifier: notifier,
		clock:    clock,
		earnRate: earnRate,
		logger:   logger,
	}
}

// CreatePayment opens a pending wallet-qr payment
func (s *PaymentService) CreatePayment(ctx context.Context, actor model.Actor, req dto.CreatePaymentRequest) (*model.Payment, error) {
	return s.create(ctx, actor, req.OrderID, req.PackageID, req.Amount, model.ProviderWalletQR, "")
}

// CreateCashPayment opens a pending cash payment and tells reviewers cash is
// awaiting collection
func (s *PaymentService) CreateCashPayment(ctx context.Context, actor model.Actor, req dto.CreateCashPaymentRequest) (*model.Payment, error) {
	return s.create(ctx, actor, req.OrderID, req.PackageID, req.Amount, model.ProviderCash, strings.TrimSpace(req.Note))
}

func (s *PaymentService) create(ctx context.Context, actor model.Actor, orderID, packageID *int64, amount *decimal.Decimal, provider model.PaymentProvider, cashNote string) (*model.Payment, error) {
	target, err := targetOf(orderID, packageID)
	if err != nil {
		return nil, err
	}

	owner, due, err := s.resolveTarget(ctx, actor, target, amount)
	if err != nil {
		return nil, err
	}

	payment := model.NewPayment(owner, target, due, provider)
	now := s.clock.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if cashNote != "" {
		meta := payment.Meta()
		meta.CashNote = cashNote
		payment.SetMeta(meta)
	}

	var created []*model.Notification
	err = s.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if target.Kind == model.TargetOrder {
			paid, err := repos.Payments.HasSuccessfulForOrder(ctx, target.ID)
			if err != nil {
				return fmt.Errorf("failed to check order payments: %w", err)
			}
			if paid {
				return domainErrors.NewConflictError("order is already paid")
			}
		}

		if err := repos.Payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		if provider == model.ProviderCash {
			notifications, err := s.notifier.NotifyAdmins(ctx, repos, Message{
				Type:         model.NotificationCashPending,
				Title:        "Cash payment awaiting collection",
				Body:         fmt.Sprintf("Payment #%d of %s is to be collected in cash.", payment.ID, payment.Amount.StringFixed(2)),
				ActionURL:    fmt.Sprintf("/admin/payments/%d", payment.ID),
				ReferenceKey: model.PaymentRef(payment.ID),
			})
			if err != nil {
				return err
			}
			created = append(created, notifications...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(created)

	s.logger.Info("Payment created",
		zap.Int64("payment_id", payment.ID),
		zap.String("user_id", payment.UserID.String()),
		zap.String("provider", string(provider)),
		zap.String("target", string(target.Kind)),
		zap.String("amount", payment.Amount.StringFixed(2)))
	return payment, nil
}

func targetOf(orderID, packageID *int64) (model.PaymentTarget, error) {
	switch {
	case orderID != nil && packageID != nil:
		return model.PaymentTarget{}, domainErrors.NewBadRequestError("a payment funds either an order or a package, not both")
	case orderID != nil:
		return model.OrderTarget(*orderID), nil
	case packageID != nil:
		return model.PackageTarget(*packageID), nil
	default:
		return model.NoTarget(), nil
	}
}

// resolveTarget authorizes the actor against the target and returns the
// paying user and the amount due
func (s *PaymentService) resolveTarget(ctx context.Context, actor model.Actor, target model.PaymentTarget, requested *decimal.Decimal) (uuid.UUID, decimal.Decimal, error) {
	if !target.Valid() {
		return uuid.Nil, decimal.Zero, domainErrors.NewBadRequestError("invalid payment target")
	}
	repos := s.uow.Repositories()

	switch target.Kind {
	case model.TargetOrder:
		order, err := repos.Orders.GetByID(ctx, target.ID)
		if err != nil {
			return uuid.Nil, decimal.Zero, fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return uuid.Nil, decimal.Zero, domainErrors.NewNotFoundError("order", target.ID)
		}
		if order.UserID != actor.UserID && !actor.IsAdmin() {
			return uuid.Nil, decimal.Zero, domainErrors.NewForbiddenError("order belongs to another user")
		}
		if order.UsePackage {
			return uuid.Nil, decimal.Zero, domainErrors.NewBadRequestError("order is covered by a package")
		}
		if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusPaymentRejected {
			return uuid.Nil, decimal.Zero, domainErrors.NewConflictError(fmt.Sprintf("order is %s", order.Status))
		}
		due := order.FinalPrice
		if due.IsZero() {
			due = order.ComputeFinalPrice()
		}
		if err := matchAmount(requested, due); err != nil {
			return uuid.Nil, decimal.Zero, err
		}
		return order.UserID, due, nil

	case model.TargetPackage:
		pkg, err := repos.Packages.GetByID(ctx, target.ID)
		if err != nil {
			return uuid.Nil, decimal.Zero, fmt.Errorf("failed to get package: %w", err)
		}
		if pkg == nil {
			return uuid.Nil, decimal.Zero, domainErrors.NewNotFoundError("package", target.ID)
		}
		if !pkg.Active {
			return uuid.Nil, decimal.Zero, domainErrors.NewConflictError("package is no longer on sale")
		}
		if err := matchAmount(requested, pkg.Price); err != nil {
			return uuid.Nil, decimal.Zero, err
		}
		return actor.UserID, pkg.Price, nil

	default:
		if requested == nil || !requested.IsPositive() {
			return uuid.Nil, decimal.Zero, domainErrors.NewBadRequestError("amount must be positive")
		}
		return actor.UserID, *requested, nil
	}
}

func matchAmount(requested *decimal.Decimal, due decimal.Decimal) error {
	if requested != nil && !requested.Round(2).Equal(due.Round(2)) {
		return domainErrors.NewBadRequestError(fmt.Sprintf("amount must be %s", due.StringFixed(2)))
	}
	if !due.IsPositive() {
		return domainErrors.NewBadRequestError("nothing to pay")
	}
	return nil
}

// SubmitProof attaches a receipt and moves the payment to pending_verification
func (s *PaymentService) SubmitProof(ctx context.Context, actor model.Actor, paymentID int64, proofURL string) (*model.Payment, error) {
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return nil, domainErrors.NewBadRequestError("proof url is required")
	}

	if _, err := s.authorizeOwner(ctx, actor, paymentID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var payment *model.Payment
	var created []*model.Notification
	err := s.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var order *model.Order
		var err error
		payment, order, err = lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if !payment.Status.CanSubmitProof() {
			return domainErrors.NewConflictError(fmt.Sprintf("payment is %s", payment.Status))
		}
		if order != nil && order.Status == model.OrderStatusCancelled {
			return domainErrors.NewConflictError(fmt.Sprintf("order %d is cancelled", order.ID))
		}
		resubmission := payment.Status == model.PaymentStatusRejected

		meta := payment.Meta()
		meta.ProofURL = proofURL
		meta.SubmittedAt = &now
		meta.SubmittedBy = actor.UserID.String()
		meta.SubmissionCount++
		payment.SetMeta(meta)
		payment.ReceiptURL = &proofURL
		payment.Status = model.PaymentStatusPendingVerification
		payment.UpdatedAt = now

		if err := repos.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if resubmission && order != nil && order.Status == model.OrderStatusPaymentRejected {
			if err := repos.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, now); err != nil {
				return fmt.Errorf("failed to reopen order: %w", err)
			}
		}

		reviewers, err := s.notifier.NotifyAdmins(ctx, repos, Message{
			Type:         model.NotificationPaymentReview,
			Title:        "Payment awaiting review",
			Body:         fmt.Sprintf("Payment #%d of %s has a new receipt to verify.", payment.ID, payment.Amount.StringFixed(2)),
			ActionURL:    fmt.Sprintf("/admin/payments/%d", payment.ID),
			ReferenceKey: model.PaymentRef(payment.ID),
		})
		if err != nil {
			return err
		}
		created = append(created, reviewers...)

		submitted, err := s.notifier.Notify(ctx, repos, Message{
			UserID:       payment.UserID,
			Type:         model.NotificationPaymentSubmitted,
			Title:        "Receipt received",
			Body:         "We received your payment receipt and will verify it shortly.",
			ActionURL:    paymentLink(payment),
			ReferenceKey: model.PaymentRef(payment.ID),
		})
		if err != nil {
			return err
		}
		created = append(created, submitted)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(created)

	s.logger.Info("Payment proof submitted",
		zap.Int64("payment_id", payment.ID),
		zap.String("user_id", actor.UserID.String()),
		zap.Int("submission_count", payment.Meta().SubmissionCount))
	return payment, nil
}

// lockPayment locks an order payment's order before the payment itself, the
// same order the scheduler uses, so a confirmation and a timeout cancellation
// queue on the order row. order is nil for package and store credit payments.
func lockPayment(ctx context.Context, repos *repository.Repositories, paymentID int64) (*model.Payment, *model.Order, error) {
	current, err := repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if current == nil {
		return nil, nil, domainErrors.NewNotFoundError("payment", paymentID)
	}

	var order *model.Order
	if target := current.Target(); target.Kind == model.TargetOrder {
		order, err = repos.Orders.GetForUpdate(ctx, target.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock order: %w", err)
		}
	}

	payment, err := repos.Payments.GetForUpdate(ctx, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	if payment == nil {
		return nil, nil, domainErrors.NewNotFoundError("payment", paymentID)
	}
	return payment, order, nil
}

// authorizeOwner allows the payment owner, the owner of its order, or an admin
func (s *PaymentService) authorizeOwner(ctx context.Context, actor model.Actor, paymentID int64) (*model.Payment, error) {
	repos := s.uow.Repositories()
	payment, err := repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, domainErrors.NewNotFoundError("payment", paymentID)
	}
	if payment.UserID == actor.UserID || actor.IsAdmin() {
		return payment, nil
	}
	if target := payment.Target(); target.Kind == model.TargetOrder {
		order, err := repos.Orders.GetByID(ctx, target.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		if order != nil && order.UserID == actor.UserID {
			return payment, nil
		}
	}
	return nil, domainErrors.NewForbiddenError("payment belongs to another user")
}

// Confirm marks the payment successful and performs its fulfillment in one
// transaction. A second confirmation fails with CONFLICT and changes nothing.
func (s *PaymentService) Confirm(ctx context.Context, reviewer model.Actor, paymentID int64, transactionRef, notes string) (*dto.ConfirmResult, error) {
	if !reviewer.IsAdmin() {
		return nil, domainErrors.NewForbiddenError("admin role required")
	}

	now := s.clock.Now()
	result := &dto.ConfirmResult{PaymentID: paymentID}
	var created []*model.Notification
	err := s.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		payment, order, err := lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == model.PaymentStatusSuccess {
			return domainErrors.NewConflictError("payment already confirmed")
		}
		target := payment.Target()
		if target.Kind == model.TargetOrder {
			if order == nil {
				return domainErrors.NewNotFoundError("order", target.ID)
			}
			if order.Status == model.OrderStatusCancelled {
				return domainErrors.NewConflictError(fmt.Sprintf("order %d is cancelled; reject the payment instead", order.ID))
			}
		}

		earned := s.pointsFor(payment.Amount)

		meta := payment.Meta()
		meta.VerifiedAt = &now
		meta.VerifiedBy = reviewer.UserID.String()
		meta.VerifyNotes = strings.TrimSpace(notes)
		meta.PointsEarned = earned
		payment.SetMeta(meta)
		payment.Status = model.PaymentStatusSuccess
		payment.UpdatedAt = now
		if ref := strings.TrimSpace(transactionRef); ref != "" {
			payment.TransactionRef = &ref
		}
		if err := repos.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		body := fmt.Sprintf("Your payment of %s has been confirmed.", payment.Amount.StringFixed(2))
		switch target.Kind {
		case model.TargetPackage:
			grantID, err := s.grantPackage(ctx, repos, payment, target.ID, now)
			if err != nil {
				return err
			}
			result.UserPackageID = &grantID
			body = fmt.Sprintf("Your payment of %s has been confirmed and your package is now active.", payment.Amount.StringFixed(2))

		case model.TargetOrder:
			advanced, err := s.advanceOrder(ctx, repos, order, now)
			if err != nil {
				return err
			}
			result.OrderAdvanced = advanced
			if advanced {
				body = fmt.Sprintf("Your payment of %s has been confirmed and your order is now in progress.", payment.Amount.StringFixed(2))
			}
		}

		if earned > 0 {
			if _, err := s.ledger.Apply(ctx, repos, PointsChange{
				UserID:      payment.UserID,
				Delta:       earned,
				Type:        model.PointsTypeEarn,
				ReferenceID: model.PaymentRef(payment.ID),
				Description: fmt.Sprintf("Earned from payment #%d", payment.ID),
			}); err != nil {
				return err
			}
			result.PointsEarned = earned
		}

		notification, err := s.notifier.Notify(ctx, repos, Message{
			UserID:       payment.UserID,
			Type:         model.NotificationPaymentConfirmed,
			Title:        "Payment confirmed",
			Body:         body,
			ActionURL:    paymentLink(payment),
			ReferenceKey: model.PaymentRef(payment.ID),
		})
		if err != nil {
			return err
		}
		created = append(created, notification)
		return nil
	})
	if err != nil {
		s.logger.Info("Payment confirmation refused",
			zap.Int64("payment_id", paymentID),
			zap.String("reviewer_id", reviewer.UserID.String()),
			zap.Error(err))
		return nil, err
	}

	s.notifier.Dispatch(created)

	s.logger.Info("Payment confirmed",
		zap.Int64("payment_id", paymentID),
		zap.String("reviewer_id", reviewer.UserID.String()),
		zap.Bool("order_advanced", result.OrderAdvanced),
		zap.Int64("points_earned", result.PointsEarned))
	return result, nil
}

// grantPackage creates the UserPackage for a confirmed package payment. The
// grant is keyed by payment id, so an existing grant is returned as is.
func (s *PaymentService) grantPackage(ctx context.Context, repos *repository.Repositories, payment *model.Payment, packageID int64, now time.Time) (int64, error) {
	existing, err := repos.UserPackages.GetByPaymentID(ctx, payment.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to check package grant: %w", err)
	}
	if existing != nil {
		s.logger.Warn("Package grant already exists for payment",
			zap.Int64("payment_id", payment.ID),
			zap.Int64("user_package_id", existing.ID))
		return existing.ID, nil
	}

	pkg, err := repos.Packages.GetByID(ctx, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to get package: %w", err)
	}
	if pkg == nil {
		return 0, domainErrors.NewNotFoundError("package", packageID)
	}

	grant := pkg.GrantFor(payment.UserID, payment.ID, now)
	grant.CreatedAt = now
	grant.UpdatedAt = now
	if err := repos.UserPackages.Create(ctx, grant); err != nil {
		return 0, fmt.Errorf("failed to create package grant: %w", err)
	}
	return grant.ID, nil
}

// advanceOrder moves a locked pending order to in_progress and consumes its
// voucher
func (s *PaymentService) advanceOrder(ctx context.Context, repos *repository.Repositories, order *model.Order, now time.Time) (bool, error) {
	if order.Status != model.OrderStatusPending && order.Status != model.OrderStatusPaymentRejected {
		return false, nil
	}

	if err := repos.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusInProgress, now); err != nil {
		return false, fmt.Errorf("failed to advance order: %w", err)
	}

	if order.UserVoucherID != nil {
		grant, err := repos.UserVouchers.GetByID(ctx, *order.UserVoucherID)
		if err != nil {
			return false, fmt.Errorf("failed to get order voucher: %w", err)
		}
		if grant != nil && grant.Status == model.UserVoucherStatusActive {
			if err := repos.UserVouchers.MarkUsed(ctx, grant.ID, order.ID, now); err != nil {
				return false, fmt.Errorf("failed to consume order voucher: %w", err)
			}
		}
	}
	return true, nil
}

// Reject marks the payment rejected so the user can resubmit a receipt
func (s *PaymentService) Reject(ctx context.Context, reviewer model.Actor, paymentID int64, reason string) (*model.Payment, error) {
	if !reviewer.IsAdmin() {
		return nil, domainErrors.NewForbiddenError("admin role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainErrors.NewBadRequestError("rejection reason is required")
	}

	now := s.clock.Now()
	var payment *model.Payment
	var created []*model.Notification
	err := s.uow.Transaction(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var order *model.Order
		var err error
		payment, order, err = lockPayment(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == model.PaymentStatusSuccess {
			return domainErrors.NewConflictError("payment already confirmed")
		}

		meta := payment.Meta()
		meta.RejectedAt = &now
		meta.RejectedBy = reviewer.UserID.String()
		meta.RejectReason = reason
		payment.SetMeta(meta)
		payment.Status = model.PaymentStatusRejected
		payment.UpdatedAt = now
		if err := repos.Payments.Update(ctx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if order != nil && order.Status == model.OrderStatusPending {
			if err := repos.Orders.UpdateStatus(ctx, order.ID, model.OrderStatusPaymentRejected, now); err != nil {
				return fmt.Errorf("failed to update order: %w", err)
			}
		}

		notification, err := s.notifier.Notify(ctx, repos, Message{
			UserID:       payment.UserID,
			Type:         model.NotificationPaymentRejected,
			Title:        "Payment not accepted",
			Body:         fmt.Sprintf("Your payment of %s could not be verified: %s. Please upload a new receipt.", payment.Amount.StringFixed(2), reason),
			ActionURL:    fmt.Sprintf("/payments/%d", payment.ID),
			ReferenceKey: model.PaymentRef(payment.ID),
		})
		if err != nil {
			return err
		}
		created = append(created, notification)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(created)

	s.logger.Info("Payment rejected",
		zap.Int64("payment_id", paymentID),
		zap.String("reviewer_id", reviewer.UserID.String()),
		zap.String("reason", reason))
	return payment, nil
}

// GetPayment returns a payment visible to the actor
func (s *PaymentService) GetPayment(ctx context.Context, actor model.Actor, paymentID int64) (*model.Payment, error) {
	return s.authorizeOwner(ctx, actor, paymentID)
}

// ListMyPayments returns the actor's payments, newest first
func (s *PaymentService) ListMyPayments(ctx context.Context, actor model.Actor, page dto.Page) ([]*model.Payment, error) {
	page.SetDefaults()
	payments, err := s.uow.Repositories().Payments.ListByUser(ctx, actor.UserID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ListPendingReview returns payments a reviewer can act on: receipts awaiting
// verification and cash payments awaiting collection
func (s *PaymentService) ListPendingReview(ctx context.Context, reviewer model.Actor) ([]*model.Payment, error) {
	if !reviewer.IsAdmin() {
		return nil, domainErrors.NewForbiddenError("admin role required")
	}
	payments, err := s.uow.Repositories().Payments.ListByStatus(ctx,
		[]model.PaymentStatus{model.PaymentStatusPendingVerification, model.PaymentStatusPending}, pendingReviewLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	result := make([]*model.Payment, 0, len(payments))
	for _, p := range payments {
		if p.Status == model.PaymentStatusPending && p.Provider != model.ProviderCash {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *PaymentService) pointsFor(amount decimal.Decimal) int64 {
	if !s.earnRate.IsPositive() {
		return 0
	}
	return amount.Mul(s.earnRate).Floor().IntPart()
}

func paymentLink(p *model.Payment) string {
	target := p.Target()
	switch target.Kind {
	case model.TargetPackage:
		return "/profile/packages"
	case model.TargetOrder:
		return fmt.Sprintf("/orders/%d", target.ID)
	default:
		return "/profile/points"
	}
}
