package handler

import (
	"errors"
	"net/http"

	"docview-paywall/internal/client"
	"docview-paywall/internal/dto"
	"docview-paywall/internal/middleware"
	"docview-paywall/internal/paywall"
	"docview-paywall/internal/service"

	"github.com/labstack/echo/v4"
)

type PaywallHandler struct {
	paywallService service.PaywallService
}

func NewPaywallHandler(paywallService service.PaywallService) *PaywallHandler {
	return &PaywallHandler{
		paywallService: paywallService,
	}
}

func (h *PaywallHandler) StartSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	view, err := h.paywallService.StartSession(ctx, req.DocumentID, middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusCreated, view)
}

func (h *PaywallHandler) GetSession(c echo.Context) error {
	view, err := h.paywallService.GetSession(c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) CloseSession(c echo.Context) error {
	if err := h.paywallService.CloseSession(c.Param("id"), middleware.VisitorID(c)); err != nil {
		return paywallError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PaywallHandler) SelectPackage(c echo.Context) error {
	var req dto.SelectPackageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	view, err := h.paywallService.SelectPackage(c.Param("id"), middleware.VisitorID(c), req.PackageID)
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) Confirm(c echo.Context) error {
	view, err := h.paywallService.Confirm(c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) Back(c echo.Context) error {
	view, err := h.paywallService.Back(c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) CreatePaypalOrder(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.paywallService.CreatePaypalOrder(ctx, c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, order)
}

func (h *PaywallHandler) ListAttempts(c echo.Context) error {
	ctx := c.Request().Context()

	attempts, err := h.paywallService.ListAttempts(ctx, c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, attempts)
}

func (h *PaywallHandler) SubmitPayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SubmitPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	view, err := h.paywallService.SubmitPayment(ctx, c.Param("id"), middleware.VisitorID(c), req.PaymentDetails)
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) Retry(c echo.Context) error {
	view, err := h.paywallService.Retry(c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

func (h *PaywallHandler) ViewDocument(c echo.Context) error {
	ctx := c.Request().Context()

	view, err := h.paywallService.ViewDocument(ctx, c.Param("id"), middleware.VisitorID(c))
	if err != nil {
		return paywallError(err)
	}

	return c.JSON(http.StatusOK, view)
}

// paywallError maps flow and service errors onto HTTP responses. Anything
// unrecognised falls through to echo's error handler as a 500.
func paywallError(err error) error {
	var denied *service.AccessDeniedError
	if errors.As(err, &denied) {
		access := denied.Details
		return echo.NewHTTPError(accessStatus(access), &dto.ErrorResponse{
			Error:   "access_denied",
			Message: access.Message,
			Access:  &access,
		})
	}

	code, kind := http.StatusInternalServerError, ""
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		code, kind = http.StatusNotFound, "session_not_found"
	case errors.Is(err, paywall.ErrUnknownPackage):
		code, kind = http.StatusBadRequest, "unknown_package"
	case errors.Is(err, paywall.ErrInvalidPaymentInput):
		code, kind = http.StatusBadRequest, "invalid_payment_details"
	case errors.Is(err, paywall.ErrSubmissionInFlight):
		code, kind = http.StatusConflict, "submission_in_flight"
	case errors.Is(err, paywall.ErrGrantInFlight):
		code, kind = http.StatusConflict, "grant_in_flight"
	case errors.Is(err, service.ErrUnsettledTransaction):
		code, kind = http.StatusConflict, "transaction_unsettled"
	case errors.Is(err, paywall.ErrPaymentNotSuccessful):
		code, kind = http.StatusConflict, "payment_not_successful"
	case errors.Is(err, paywall.ErrInvalidTransition):
		code, kind = http.StatusConflict, "invalid_transition"
	case errors.Is(err, paywall.ErrSessionClosed), errors.Is(err, paywall.ErrStaleResult):
		code, kind = http.StatusGone, "session_closed"
	case errors.Is(err, service.ErrPaypalUnavailable):
		code, kind = http.StatusServiceUnavailable, "paypal_unavailable"
	case errors.Is(err, client.ErrCurrencyUnsupported):
		code, kind = http.StatusUnprocessableEntity, "currency_unsupported"
	default:
		return err
	}

	return echo.NewHTTPError(code, &dto.ErrorResponse{
		Error:   kind,
		Message: err.Error(),
	})
}
