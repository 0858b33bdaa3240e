package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datapulse/catalog/common/models"
)

// errJSON maps domain errors onto HTTP statuses and renders a uniform
// error body.
func errJSON(c echo.Context, err error) error {
	return c.JSON(status(err), map[string]any{
		"error": err.Error(),
	})
}

func status(err error) int {
	switch {
	case errors.Is(err, models.ErrPlatformNotFound),
		errors.Is(err, models.ErrDatasetNotFound),
		errors.Is(err, models.ErrBlobNotFound),
		errors.Is(err, models.ErrVersionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDatasetAlreadyDeleted),
		errors.Is(err, models.ErrDatasetNotDeleted):
		return http.StatusConflict
	case errors.Is(err, models.ErrDatasetUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrInvalidPlatformType):
		return http.StatusBadRequest
	}

	var invalidMetric *models.InvalidMetricValueError
	var invalidDomain *models.InvalidDomainValueError
	var llmValidation *models.LLMValidationError
	var llmTransport *models.LLMTransportError
	switch {
	case errors.As(err, &invalidMetric), errors.As(err, &invalidDomain):
		return http.StatusBadRequest
	case errors.As(err, &llmValidation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &llmTransport):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// badRequest renders a 400 with a plain message.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"error": msg,
	})
}
