package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"paygate_app_echo/internal/gateway"
	"paygate_app_echo/internal/services"
)

// JSONErrorHandler maps service errors to the HTTP taxonomy and renders a
// uniform JSON body. Authorization denials come through as not-found so an
// unauthorized caller cannot probe for existence.
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "Something went wrong. Please try again later."

	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidMethod),
		errors.Is(err, services.ErrMalformedPayload):
		code = http.StatusBadRequest
		detail = err.Error()
	case errors.Is(err, services.ErrInvalidSignature):
		code = http.StatusUnauthorized
		detail = err.Error()
	case errors.Is(err, services.ErrPaymentNotFound):
		code = http.StatusNotFound
		detail = err.Error()
	case errors.Is(err, services.ErrAlreadyFinalized):
		code = http.StatusConflict
		detail = err.Error()
	case errors.Is(err, gateway.ErrGatewayAuth), errors.Is(err, gateway.ErrGatewayRequest):
		code = http.StatusBadGateway
		detail = "Payment gateway is unavailable. The payment was not started; retry with the same idempotency key."
	default:
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				detail = msg
			}
		}
	}

	if code >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if jsonErr := c.JSON(code, map[string]string{"detail": detail}); jsonErr != nil {
		c.Logger().Error(jsonErr)
	}
}
