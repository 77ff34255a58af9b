package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"docview-paywall/internal/countdown"
	"docview-paywall/internal/dto"
	"docview-paywall/internal/model"
	"docview-paywall/internal/service"

	"github.com/labstack/echo/v4"
)

type AccessHandler struct {
	accessService service.AccessService
	tickPeriod    time.Duration
	now           func() time.Time
}

func NewAccessHandler(accessService service.AccessService, tickPeriod time.Duration) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
		tickPeriod:    tickPeriod,
		now:           time.Now,
	}
}

func (h *AccessHandler) GetAccess(c echo.Context) error {
	ctx := c.Request().Context()

	details := h.accessService.FetchAccessDetails(ctx, c.Param("id"))
	return h.respond(c, details)
}

func (h *AccessHandler) GetGrant(c echo.Context) error {
	ctx := c.Request().Context()

	details := h.accessService.VerifyGrant(ctx, c.Param("token"))
	return h.respond(c, details)
}

func (h *AccessHandler) respond(c echo.Context, details model.AccessDetails) error {
	resp := &dto.AccessResponse{AccessDetails: details}
	if details.ExpiresAt != nil {
		resp.Countdown = countdownResponse(*details.ExpiresAt, countdown.Compute(*details.ExpiresAt, h.now()))
	}
	return c.JSON(accessStatus(details), resp)
}

// StreamCountdown pushes the time left on a visitor link as server-sent
// events, one per tick, until the link expires or the client goes away.
func (h *AccessHandler) StreamCountdown(c echo.Context) error {
	ctx := c.Request().Context()

	details := h.accessService.FetchAccessDetails(ctx, c.Param("id"))
	if !details.Success {
		return c.JSON(accessStatus(details), &dto.AccessResponse{AccessDetails: details})
	}
	if details.ExpiresAt == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "document access does not expire")
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	cd := countdown.New(*details.ExpiresAt, countdown.WithPeriod(h.tickPeriod), countdown.WithClock(h.now))
	defer cd.Stop()

	err := cd.Start(ctx, func(r countdown.Remaining) error {
		event := "tick"
		if r.Expired {
			event = "expired"
		}
		b, err := json.Marshal(countdownResponse(cd.Target(), r))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, b); err != nil {
			return err
		}
		res.Flush()
		return nil
	})
	if err != nil {
		return err
	}

	<-cd.Done()
	return nil
}

// CreateVisitorLink mints a share link for a link-only document.
func (h *AccessHandler) CreateVisitorLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateVisitorLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	var ttl time.Duration
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, &dto.ErrorResponse{
				Error:   "invalid_link_request",
				Message: fmt.Sprintf("expires_in: %v", err),
			})
		}
		ttl = d
	}

	link, err := h.accessService.CreateVisitorLink(ctx, c.Param("id"), service.VisitorLinkRequest{
		VisitorEmail:    req.VisitorEmail,
		DownloadAllowed: req.DownloadAllowed,
		TTL:             ttl,
	})
	if err != nil {
		code, kind := http.StatusInternalServerError, ""
		switch {
		case errors.Is(err, service.ErrInvalidLinkRequest):
			code, kind = http.StatusBadRequest, "invalid_link_request"
		case errors.Is(err, service.ErrDocumentNotFound):
			code, kind = http.StatusNotFound, "document_not_found"
		case errors.Is(err, service.ErrNotShareable):
			code, kind = http.StatusConflict, "document_not_shareable"
		default:
			return err
		}
		return echo.NewHTTPError(code, &dto.ErrorResponse{Error: kind, Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, link)
}

func countdownResponse(expiresAt time.Time, r countdown.Remaining) *dto.CountdownResponse {
	return &dto.CountdownResponse{
		ExpiresAt:        expiresAt.UTC().Format(time.RFC3339),
		Days:             r.Days,
		Hours:            r.Hours,
		Minutes:          r.Minutes,
		Seconds:          r.Seconds,
		RemainingSeconds: int64(r.Duration() / time.Second),
		Expired:          r.Expired,
		Display:          r.String(),
	}
}

func accessStatus(details model.AccessDetails) int {
	switch {
	case details.Success:
		return http.StatusOK
	case details.Reason == model.ReasonTransientError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusNotFound
	}
}
