package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
)

type PointsHandler struct {
	ledger   *usecase.PointsLedger
	validate *validator.Validate
}

func NewPointsHandler(ledger *usecase.PointsLedger, validate *validator.Validate) *PointsHandler {
	return &PointsHandler{ledger: ledger, validate: validate}
}

// GetBalance handles GET /points
func (h *PointsHandler) GetBalance(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	balance, err := h.ledger.Balance(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balance)
}

// GetHistory handles GET /points/history?limit=&offset=
func (h *PointsHandler) GetHistory(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	var page dto.Page
	if err := bindAndValidate(c, h.validate, &page); err != nil {
		return err
	}

	history, err := h.ledger.History(c.Request().Context(), actor.UserID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}
