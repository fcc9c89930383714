package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/astrology"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

const astrologySource = "prokerala"

type astrologyClient interface {
	Kundali(ctx context.Context, b astrology.BirthDetails) (json.RawMessage, error)
	Matching(ctx context.Context, first, second astrology.BirthDetails) (json.RawMessage, error)
	KaalSarpDosha(ctx context.Context, b astrology.BirthDetails) (json.RawMessage, error)
	SadeSati(ctx context.Context, b astrology.BirthDetails) (json.RawMessage, error)
	MangalDosha(ctx context.Context, b astrology.BirthDetails) (json.RawMessage, error)
}

type AstrologyController struct {
	client astrologyClient
	logger logrus.FieldLogger
}

func NewAstrologyController(client astrologyClient) *AstrologyController {
	return &AstrologyController{
		client: client,
		logger: factory.NewModuleLogger("astrology-controller"),
	}
}

func (c *AstrologyController) Kundali(ctx echo.Context) error {
	return c.birthLookup(ctx, "kundali", c.client.Kundali)
}

func (c *AstrologyController) KaalSarpDosh(ctx echo.Context) error {
	return c.birthLookup(ctx, "kaal sarp dosh", c.client.KaalSarpDosha)
}

func (c *AstrologyController) SadeSati(ctx echo.Context) error {
	return c.birthLookup(ctx, "sade sati", c.client.SadeSati)
}

func (c *AstrologyController) MangalDosh(ctx echo.Context) error {
	return c.birthLookup(ctx, "mangal dosh", c.client.MangalDosha)
}

func (c *AstrologyController) Matching(ctx echo.Context) error {
	req, err := types.NewMatchingRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	data, err := c.client.Matching(ctx.Request().Context(), req.Person1.Details(), req.Person2.Details())
	return c.respond(ctx, "kundali matching", data, err)
}

func (c *AstrologyController) birthLookup(
	ctx echo.Context,
	name string,
	lookup func(context.Context, astrology.BirthDetails) (json.RawMessage, error),
) error {
	req, err := types.NewBirthDetailsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	data, err := lookup(ctx.Request().Context(), req.Details())
	return c.respond(ctx, name, data, err)
}

func (c *AstrologyController) respond(ctx echo.Context, name string, data json.RawMessage, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, astrology.ErrNotConfigured):
			return writeError(ctx, http.StatusServiceUnavailable, "astrology service not configured")
		case errors.Is(err, astrology.ErrUpstream):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("lookup", name).Warn("Astrology lookup failed")
			return writeError(ctx, http.StatusBadGateway, "astrology provider unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("lookup", name).Error("Astrology lookup failed")
			return writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.AstrologyResponse{Source: astrologySource, Data: data})
}
