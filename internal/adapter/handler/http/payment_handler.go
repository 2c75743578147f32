package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
)

type PaymentHandler struct {
	payments *usecase.PaymentService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentService, validate *validator.Validate, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		validate: validate,
		logger:   logger,
	}
}

// CreatePayment handles POST /payments
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var req dto.CreatePaymentRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	payment, err := h.payments.CreatePayment(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payment)
}

// CreateCashPayment handles POST /payments/cash
func (h *PaymentHandler) CreateCashPayment(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var req dto.CreateCashPaymentRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	payment, err := h.payments.CreateCashPayment(c.Request().Context(), actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payment)
}

// SubmitProof handles POST /payments/:id/proof
func (h *PaymentHandler) SubmitProof(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.SubmitProofRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	payment, err := h.payments.SubmitProof(c.Request().Context(), actor, id, req.ProofURL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	payment, err := h.payments.GetPayment(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}

// ListMyPayments handles GET /payments
func (h *PaymentHandler) ListMyPayments(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var page dto.Page
	if err := bindAndValidate(c, h.validate, &page); err != nil {
		return err
	}

	payments, err := h.payments.ListMyPayments(c.Request().Context(), actor, page)
	if err != nil {
		return err
	}

	h.logger.Debug("Retrieved user payments",
		zap.String("user_id", actor.UserID.String()),
		zap.Int("payment_count", len(payments)))

	return c.JSON(http.StatusOK, payments)
}

// ListPendingReview handles GET /admin/payments/pending
func (h *PaymentHandler) ListPendingReview(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	payments, err := h.payments.ListPendingReview(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payments)
}

// ConfirmPayment handles POST /admin/payments/:id/confirm
func (h *PaymentHandler) ConfirmPayment(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.ConfirmPaymentRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	result, err := h.payments.Confirm(c.Request().Context(), actor, id, req.TransactionRef, req.Notes)
	if err != nil {
		return err
	}

	h.logger.Info("Payment confirmed by reviewer",
		zap.Int64("payment_id", id),
		zap.String("reviewer_id", actor.UserID.String()),
		zap.Int64("points_earned", result.PointsEarned))

	return c.JSON(http.StatusOK, result)
}

// RejectPayment handles POST /admin/payments/:id/reject
func (h *PaymentHandler) RejectPayment(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.RejectPaymentRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	payment, err := h.payments.Reject(c.Request().Context(), actor, id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payment)
}
