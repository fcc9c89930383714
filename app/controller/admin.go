package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/mapper"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

// AdminController backs the internal operator panel.
type AdminController struct {
	donationService *service.DonationService
	issuer          *service.CertificateIssuer
	templates       *service.TemplateService
	logger          logrus.FieldLogger
}

func NewAdminController(
	donationService *service.DonationService,
	issuer *service.CertificateIssuer,
	templates *service.TemplateService,
) *AdminController {
	return &AdminController{
		donationService: donationService,
		issuer:          issuer,
		templates:       templates,
		logger:          factory.NewModuleLogger("admin-controller"),
	}
}

func (c *AdminController) ListDonations(ctx echo.Context) error {
	req, err := types.NewListDonationsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	list, err := c.donationService.ListDonations(ctx.Request().Context(), req)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "List donations")
	}

	return ctx.JSON(http.StatusOK, &types.ListDonationsResponse{
		Total:     list.Total,
		Page:      req.GetPage(),
		Limit:     req.GetLimit(),
		Donations: mapper.DonationsToResponse(list.Items),
	})
}

func (c *AdminController) GetDonation(ctx echo.Context) error {
	req, err := types.NewDonationIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	donation, err := c.donationService.GetDonation(ctx.Request().Context(), req.GetId())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Get donation")
	}
	txns, err := c.donationService.ListTransactions(ctx.Request().Context(), donation.ID)
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "List transactions")
	}

	return ctx.JSON(http.StatusOK, &types.DonationEnvelopeResponse{
		Donation:     mapper.DonationToResponse(donation),
		Transactions: mapper.TransactionsToResponse(txns),
	})
}

func (c *AdminController) ResendCertificate(ctx echo.Context) error {
	req, err := types.NewDonationIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	sent, err := c.issuer.Resend(ctx.Request().Context(), req.GetId())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Resend certificate")
	}

	resp := &types.ResendCertificateResponse{Success: sent, Message: "Certificate resent"}
	if !sent {
		resp.Message = "Failed to send"
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *AdminController) RefundDonation(ctx echo.Context) error {
	req, err := types.NewDonationIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	donation, err := c.donationService.RefundDonation(ctx.Request().Context(), req.GetId())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Refund donation")
	}

	return ctx.JSON(http.StatusOK, &types.DonationEnvelopeResponse{Donation: mapper.DonationToResponse(donation)})
}

func (c *AdminController) GetTemplate(ctx echo.Context) error {
	tpl, err := c.templates.Active(ctx.Request().Context())
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Get template")
	}
	return ctx.JSON(http.StatusOK, mapper.TemplateToResponse(tpl))
}

func (c *AdminController) UpdateTemplate(ctx echo.Context) error {
	req, err := types.NewUpdateTemplateRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	tpl, err := c.templates.Update(ctx.Request().Context(), mapper.TemplateUpdateFromRequest(req))
	if err != nil {
		return writeServiceError(ctx, c.logger, err, "Update template")
	}
	return ctx.JSON(http.StatusOK, mapper.TemplateToResponse(tpl))
}
