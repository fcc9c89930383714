package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
	"github.com/vibast-solutions/ms-go-donations/config"
)

type controllerTemplateRepo struct {
	active *entity.CertificateTemplate
}

func (r *controllerTemplateRepo) GetActive(context.Context) (*entity.CertificateTemplate, error) {
	if r.active == nil {
		return nil, nil
	}
	copied := *r.active
	return &copied, nil
}

func (r *controllerTemplateRepo) Create(_ context.Context, tpl *entity.CertificateTemplate) error {
	tpl.ID = 1
	copied := *tpl
	r.active = &copied
	return nil
}

func (r *controllerTemplateRepo) Update(_ context.Context, tpl *entity.CertificateTemplate) error {
	copied := *tpl
	r.active = &copied
	return nil
}

type controllerRenderer struct{}

func (controllerRenderer) Render(*entity.Donation, *entity.CertificateTemplate) ([]byte, error) {
	return []byte("%PDF"), nil
}

type controllerStore struct{}

func (controllerStore) Save(_ context.Context, name string, _ []byte) (string, error) {
	return "/tmp/" + name, nil
}

type controllerMailer struct {
	ok bool
}

func (m controllerMailer) SendDonationReceipt(context.Context, *entity.Donation, []byte, string) bool {
	return m.ok
}

func newAdminControllerForTest(repo *controllerDonationRepo, txns *controllerTxnRepo, mailerOK bool) *AdminController {
	if txns == nil {
		txns = &controllerTxnRepo{}
	}
	svc := service.NewDonationService(
		repo,
		txns,
		&controllerEventRepo{},
		&controllerWebhookRepo{},
		provider.NewRegistry(&controllerProvider{}),
		config.DonationsConfig{},
	)
	templates := service.NewTemplateService(&controllerTemplateRepo{})
	issuer := service.NewCertificateIssuer(
		repo,
		&controllerEventRepo{},
		templates,
		controllerRenderer{},
		controllerStore{},
		controllerMailer{ok: mailerOK},
		config.DonationsConfig{CertificateMaxAttempts: 3},
	)
	return NewAdminController(svc, issuer, templates)
}

func successDonation(id uint64) *entity.Donation {
	d := pendingDonation(id)
	paymentID := "pay_1"
	pan := "ABCDE1234F"
	d.Status = entity.DonationStatusSuccess
	d.GatewayPaymentID = &paymentID
	d.Donor.PAN = &pan
	return d
}

func TestListDonationsMasksPANAndReportsTotal(t *testing.T) {
	var gotFilter repository.DonationFilter
	repo := &controllerDonationRepo{
		listFn: func(_ context.Context, filter repository.DonationFilter) ([]*entity.Donation, error) {
			gotFilter = filter
			return []*entity.Donation{successDonation(3)}, nil
		},
		countFn: func(context.Context, repository.DonationFilter) (int64, error) {
			return 41, nil
		},
	}
	ctrl := newAdminControllerForTest(repo, nil, true)
	ctx, rec := jsonContext(http.MethodGet, "/admin/donations?status=success&page=2&limit=20", "")

	if err := ctrl.ListDonations(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotFilter.Offset != 20 || gotFilter.Limit != 20 || gotFilter.Status != "success" {
		t.Fatalf("unexpected filter %+v", gotFilter)
	}

	var resp types.ListDonationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if resp.Total != 41 || resp.Page != 2 || len(resp.Donations) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Donations[0].DonorPan != "***" {
		t.Fatalf("expected masked pan, got %q", resp.Donations[0].DonorPan)
	}
}

func TestListDonationsInvalidLimit(t *testing.T) {
	ctrl := newAdminControllerForTest(&controllerDonationRepo{}, nil, true)
	ctx, rec := jsonContext(http.MethodGet, "/admin/donations?limit=abc", "")

	if err := ctrl.ListDonations(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetDonationWithTransactions(t *testing.T) {
	repo := &controllerDonationRepo{
		findByIDFn: func(_ context.Context, id uint64) (*entity.Donation, error) {
			return successDonation(id), nil
		},
	}
	txns := &controllerTxnRepo{items: []*entity.PaymentTransaction{{ID: 1, DonationID: 8, Status: entity.TransactionStatusCaptured}}}
	ctrl := newAdminControllerForTest(repo, txns, true)
	ctx, rec := jsonContext(http.MethodGet, "/admin/donations/8", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("8")

	if err := ctrl.GetDonation(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp types.DonationEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if resp.Donation == nil || resp.Donation.Id != 8 || len(resp.Transactions) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetDonationNotFound(t *testing.T) {
	ctrl := newAdminControllerForTest(&controllerDonationRepo{}, nil, true)
	ctx, rec := jsonContext(http.MethodGet, "/admin/donations/8", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("8")

	if err := ctrl.GetDonation(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRefundPendingDonationConflicts(t *testing.T) {
	repo := &controllerDonationRepo{
		findByIDFn: func(_ context.Context, id uint64) (*entity.Donation, error) {
			return pendingDonation(id), nil
		},
	}
	ctrl := newAdminControllerForTest(repo, nil, true)
	ctx, rec := jsonContext(http.MethodPost, "/admin/donations/4/refund", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("4")

	if err := ctrl.RefundDonation(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRefundSuccess(t *testing.T) {
	repo := &controllerDonationRepo{
		findByIDFn: func(_ context.Context, id uint64) (*entity.Donation, error) {
			return successDonation(id), nil
		},
	}
	ctrl := newAdminControllerForTest(repo, nil, true)
	ctx, rec := jsonContext(http.MethodPost, "/admin/donations/4/refund", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("4")

	if err := ctrl.RefundDonation(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.DonationEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if resp.Donation.Status != entity.DonationStatusRefunded {
		t.Fatalf("expected refunded status, got %q", resp.Donation.Status)
	}
}

func TestResendCertificateReportsMailerFailure(t *testing.T) {
	repo := &controllerDonationRepo{
		findByIDFn: func(_ context.Context, id uint64) (*entity.Donation, error) {
			return successDonation(id), nil
		},
	}
	ctrl := newAdminControllerForTest(repo, nil, false)
	ctx, rec := jsonContext(http.MethodPost, "/admin/donations/4/resend-certificate", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("4")

	if err := ctrl.ResendCertificate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp types.ResendCertificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if resp.Success || resp.Message != "Failed to send" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestResendCertificateSent(t *testing.T) {
	repo := &controllerDonationRepo{
		findByIDFn: func(_ context.Context, id uint64) (*entity.Donation, error) {
			return successDonation(id), nil
		},
	}
	ctrl := newAdminControllerForTest(repo, nil, true)
	ctx, rec := jsonContext(http.MethodPost, "/admin/donations/4/resend-certificate", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("4")

	if err := ctrl.ResendCertificate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var resp types.ResendCertificateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if !resp.Success || resp.Message != "Certificate resent" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTemplateGetAndUpdate(t *testing.T) {
	ctrl := newAdminControllerForTest(&controllerDonationRepo{}, nil, true)

	ctx, rec := jsonContext(http.MethodGet, "/admin/template", "")
	if err := ctrl.GetTemplate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var tpl types.CertificateTemplate
	if err := json.Unmarshal(rec.Body.Bytes(), &tpl); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if tpl.PrimaryColor != entity.DefaultPrimaryColor || tpl.HeaderText != entity.DefaultHeaderText {
		t.Fatalf("expected default template, got %+v", tpl)
	}

	ctx, rec = jsonContext(http.MethodPut, "/admin/template", `{"primary_color":"#112233","ngo_name":"Test NGO"}`)
	if err := ctrl.UpdateTemplate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tpl); err != nil {
		t.Fatalf("expected json body, got %v", err)
	}
	if tpl.PrimaryColor != "#112233" || tpl.NGOName != "Test NGO" {
		t.Fatalf("expected updated fields, got %+v", tpl)
	}
	if tpl.SecondaryColor != entity.DefaultSecondaryColor {
		t.Fatalf("expected untouched secondary colour, got %q", tpl.SecondaryColor)
	}
}

func TestTemplateUpdateRejectsBadColour(t *testing.T) {
	ctrl := newAdminControllerForTest(&controllerDonationRepo{}, nil, true)
	ctx, rec := jsonContext(http.MethodPut, "/admin/template", `{"primary_color":"orange"}`)

	if err := ctrl.UpdateTemplate(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
