package http

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

// bindAndValidate binds the request body and query into req and runs the
// struct's validate tags
func bindAndValidate(c echo.Context, v *validator.Validate, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperrors.NewAppError(apperrors.ErrInvalidArgument, "malformed request body", err)
	}
	if err := v.Struct(req); err != nil {
		return apperrors.NewAppError(apperrors.ErrInvalidArgument, err.Error(), nil)
	}
	return nil
}

// pathID parses a positive integer path parameter
func pathID(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid "+name+": "+raw, nil)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewAppError(apperrors.ErrInvalidArgument, "invalid "+name+" parameter", nil)
	}
	return v, nil
}
