package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type VoucherHandler struct {
	vouchers *usecase.VoucherService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewVoucherHandler(vouchers *usecase.VoucherService, validate *validator.Validate, logger *zap.Logger) *VoucherHandler {
	return &VoucherHandler{
		vouchers: vouchers,
		validate: validate,
		logger:   logger,
	}
}

// RedeemByCode handles POST /vouchers/redeem
func (h *VoucherHandler) RedeemByCode(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var req dto.RedeemByCodeRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	grant, err := h.vouchers.RedeemByCode(c.Request().Context(), actor, req.Code, req.UsePoints)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, grant)
}

// RedeemByID handles POST /vouchers/:id/redeem
func (h *VoucherHandler) RedeemByID(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.RedeemByIDRequest
	if err := bindAndValidate(c, h.validate, &req); err != nil {
		return err
	}

	grant, err := h.vouchers.RedeemByID(c.Request().Context(), actor, id, req.PointsOffered)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, grant)
}

// GetRedeemable handles GET /vouchers/redeemable
func (h *VoucherHandler) GetRedeemable(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	vouchers, err := h.vouchers.GetRedeemableVouchers(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, vouchers)
}

// ListMine handles GET /vouchers/mine?status=active
func (h *VoucherHandler) ListMine(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var status *model.UserVoucherStatus
	if raw := c.QueryParam("status"); raw != "" {
		s := model.UserVoucherStatus(raw)
		switch s {
		case model.UserVoucherStatusActive, model.UserVoucherStatusUsed, model.UserVoucherStatusExpired:
			status = &s
		default:
			return apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid status: "+raw, nil)
		}
	}

	grants, err := h.vouchers.ListUserVouchers(c.Request().Context(), actor, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grants)
}

// PreviewDiscount handles GET /vouchers/mine/:id/preview?amount=80.00
func (h *VoucherHandler) PreviewDiscount(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil || !amount.IsPositive() {
		return apperrors.NewAppError(apperrors.ErrInvalidArgument, "amount must be a positive number", nil)
	}

	preview, err := h.vouchers.PreviewDiscount(c.Request().Context(), actor, id, amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, preview)
}
