package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/mapper"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

// DonationController serves the public donor flow and gateway webhooks.
type DonationController struct {
	donationService *service.DonationService
	logger          logrus.FieldLogger
}

func NewDonationController(donationService *service.DonationService) *DonationController {
	return &DonationController{
		donationService: donationService,
		logger:          factory.NewModuleLogger("donations-controller"),
	}
}

func (c *DonationController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *DonationController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateDonationRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.donationService.CreateDonation(ctx.Request().Context(), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Create donation")
	}

	return ctx.JSON(http.StatusCreated, mapper.CreateOrderToResponse(result))
}

func (c *DonationController) Verify(ctx echo.Context) error {
	req, err := types.NewVerifyDonationRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.donationService.VerifyDonation(ctx.Request().Context(), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Verify donation")
	}

	return ctx.JSON(http.StatusOK, mapper.VerifyToResponse(result))
}

func (c *DonationController) RazorpayWebhook(ctx echo.Context) error {
	return c.handleWebhook(ctx, entity.GatewayRazorpay)
}

func (c *DonationController) CashfreeWebhook(ctx echo.Context) error {
	return c.handleWebhook(ctx, entity.GatewayCashfree)
}

// handleWebhook acknowledges every authentic delivery with 200, including
// duplicates and events for unknown orders, so gateways stop retrying.
func (c *DonationController) handleWebhook(ctx echo.Context, gateway string) error {
	req, err := types.NewWebhookRequestFromContext(ctx, gateway)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.donationService.HandleWebhook(ctx.Request().Context(), req.Gateway, req.Body, req.Headers)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Handle "+gateway+" webhook")
	}

	return ctx.JSON(http.StatusOK, mapper.WebhookToResponse(result))
}
