package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/middleware/auth"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/usecase"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type NotificationHandler struct {
	notifier *usecase.Notifier
}

func NewNotificationHandler(notifier *usecase.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// List handles GET /notifications?unread=true&limit=50
func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}

	unreadOnly := false
	if raw := c.QueryParam("unread"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid unread parameter", nil)
		}
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return err
	}

	notifications, err := h.notifier.List(c.Request().Context(), actor, unreadOnly, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notifications)
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := auth.RequireActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.notifier.MarkRead(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
