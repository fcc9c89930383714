package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto its HTTP status. Unexpected
// errors are logged and hidden behind a generic message.
func writeServiceError(ctx echo.Context, logger logrus.FieldLogger, err error, action string) error {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrSignatureInvalid),
		errors.Is(err, service.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrGatewayUnsupported):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDonationNotFound):
		return writeError(ctx, http.StatusNotFound, "donation not found")
	case errors.Is(err, service.ErrInvalidStatus):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGateway):
		factory.LoggerWithContext(logger, ctx).WithError(err).Warn(action + " gateway failure")
		return writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
	default:
		factory.LoggerWithContext(logger, ctx).WithError(err).Error(action + " failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
