package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
)

type AutomationHandler struct {
	automation *usecase.OrderAutomation
	logger     *zap.Logger
}

func NewAutomationHandler(automation *usecase.OrderAutomation, logger *zap.Logger) *AutomationHandler {
	return &AutomationHandler{automation: automation, logger: logger}
}

// Run handles POST /admin/automation/run. The run is shared with any
// automation pass already in flight.
func (h *AutomationHandler) Run(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	h.logger.Info("Manual automation run requested", zap.String("user_id", actor.UserID.String()))

	summary, err := h.automation.Run(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
