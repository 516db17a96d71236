package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/gonntp/internal/domain"
	"github.com/datallboy/gonntp/internal/nntp"
)

// httpError maps provider and protocol errors onto HTTP statuses.
func httpError(err error) error {
	var (
		failure *nntp.FailureError
		connErr *nntp.ConnError
	)
	switch {
	case errors.Is(err, domain.ErrArticleNotFound), errors.Is(err, domain.ErrNoSuchGroup):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrProviderBusy):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &connErr), errors.As(err, &failure):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
