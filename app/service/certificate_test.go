package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

type memTemplateRepo struct {
	mu      sync.Mutex
	active  *entity.CertificateTemplate
	creates int
	updates int
}

func (r *memTemplateRepo) GetActive(context.Context) (*entity.CertificateTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil, nil
	}
	copyItem := *r.active
	return &copyItem, nil
}

func (r *memTemplateRepo) Create(_ context.Context, tpl *entity.CertificateTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	tpl.ID = uint64(r.creates)
	copyItem := *tpl
	r.active = &copyItem
	return nil
}

func (r *memTemplateRepo) Update(_ context.Context, tpl *entity.CertificateTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	copyItem := *tpl
	r.active = &copyItem
	return nil
}

type fakeRenderer struct {
	err error
}

func (r *fakeRenderer) Render(donation *entity.Donation, _ *entity.CertificateTemplate) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + donation.Donor.Name), nil
}

type fakeStore struct {
	names []string
}

func (s *fakeStore) Save(_ context.Context, name string, _ []byte) (string, error) {
	s.names = append(s.names, name)
	return "/certs/" + name, nil
}

type fakeMailer struct {
	mu          sync.Mutex
	ok          bool
	sent        int
	attachments []string
}

func (m *fakeMailer) SendDonationReceipt(_ context.Context, _ *entity.Donation, _ []byte, attachmentName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ok {
		return false
	}
	m.sent++
	m.attachments = append(m.attachments, attachmentName)
	return true
}

type issuerHarness struct {
	*serviceHarness
	issuer   *CertificateIssuer
	mailer   *fakeMailer
	store    *fakeStore
	renderer *fakeRenderer
}

func newIssuerHarness() *issuerHarness {
	h := &issuerHarness{
		serviceHarness: newServiceHarness(),
		mailer:         &fakeMailer{ok: true},
		store:          &fakeStore{},
		renderer:       &fakeRenderer{},
	}
	h.issuer = NewCertificateIssuer(h.repo, h.events, NewTemplateService(&memTemplateRepo{}), h.renderer, h.store, h.mailer, testDonationsConfig())
	return h
}

func (h *issuerHarness) succeededDonation(t *testing.T) *entity.Donation {
	t.Helper()
	donation := h.createDonation("1000")
	if _, err := h.svc.VerifyDonation(context.Background(), verifyReq{
		id: donation.ID, orderID: *donation.GatewayOrderID, paymentID: "pay_1", signature: "ok",
	}); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	return donation
}

func TestDeliverSendsCertificateOnce(t *testing.T) {
	h := newIssuerHarness()
	donation := h.succeededDonation(t)

	sent, err := h.issuer.Deliver(context.Background(), donation.ID)
	if err != nil || !sent {
		t.Fatalf("expected sent, got sent=%v err=%v", sent, err)
	}

	stored := h.repo.get(donation.ID)
	if !stored.CertificateSent || stored.CertificateSentAt == nil {
		t.Fatal("expected certificate marked sent")
	}
	if stored.CertificateStatus != entity.CertificateDeliverySent {
		t.Fatalf("expected sent status, got %s", stored.CertificateStatus)
	}
	if stored.CertificatePath == nil || *stored.CertificatePath != "/certs/80G_1_pay_1.pdf" {
		t.Fatalf("unexpected certificate path %v", stored.CertificatePath)
	}
	if h.mailer.attachments[0] != "80G_Certificate_pay_1.pdf" {
		t.Fatalf("unexpected attachment name %s", h.mailer.attachments[0])
	}

	sent, err = h.issuer.Deliver(context.Background(), donation.ID)
	if err != nil || sent {
		t.Fatalf("expected second delivery skipped, got sent=%v err=%v", sent, err)
	}
	if h.mailer.sent != 1 {
		t.Fatalf("expected one email, got %d", h.mailer.sent)
	}
}

func TestDeliverConcurrentClaimsSendOnce(t *testing.T) {
	h := newIssuerHarness()
	donation := h.succeededDonation(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.issuer.Deliver(context.Background(), donation.ID)
		}()
	}
	wg.Wait()

	if h.mailer.sent != 1 {
		t.Fatalf("expected exactly one email, got %d", h.mailer.sent)
	}
}

func TestDeliverFailureSchedulesRetryThenGivesUp(t *testing.T) {
	h := newIssuerHarness()
	h.mailer.ok = false
	donation := h.succeededDonation(t)

	sent, err := h.issuer.Deliver(context.Background(), donation.ID)
	if err != nil || sent {
		t.Fatalf("expected failed send without error, got sent=%v err=%v", sent, err)
	}
	stored := h.repo.get(donation.ID)
	if stored.CertificateStatus != entity.CertificateDeliveryPending || stored.CertificateAttempts != 1 {
		t.Fatalf("expected pending retry after one attempt, got %s/%d", stored.CertificateStatus, stored.CertificateAttempts)
	}
	if stored.CertificateNextAt == nil || stored.CertificateLastError == nil {
		t.Fatal("expected retry time and error recorded")
	}
	if stored.Status != entity.DonationStatusSuccess {
		t.Fatal("expected payment status untouched by delivery failure")
	}

	// not due yet
	if sent, _ := h.issuer.Deliver(context.Background(), donation.ID); sent {
		t.Fatal("expected no delivery before retry time")
	}

	for i := 0; i < 2; i++ {
		if _, err := h.issuer.Resend(context.Background(), donation.ID); err != nil {
			t.Fatalf("unexpected resend error: %v", err)
		}
	}
	stored = h.repo.get(donation.ID)
	if stored.CertificateStatus != entity.CertificateDeliveryPending {
		t.Fatalf("expected resend to reset attempts, got %s", stored.CertificateStatus)
	}

	past := stored.CreatedAt
	stored.CertificateAttempts = 2
	stored.CertificateNextAt = &past
	_ = h.repo.UpdateCertificateDelivery(context.Background(), &stored)

	if _, err := h.issuer.Deliver(context.Background(), donation.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored = h.repo.get(donation.ID)
	if stored.CertificateStatus != entity.CertificateDeliveryFailed {
		t.Fatalf("expected failed after max attempts, got %s", stored.CertificateStatus)
	}
	if h.events.count("certificate_failed") < 2 {
		t.Fatal("expected certificate_failed events")
	}
}

func TestDeliverRenderErrorRecordsFailure(t *testing.T) {
	h := newIssuerHarness()
	h.renderer.err = errors.New("font missing")
	donation := h.succeededDonation(t)

	if _, err := h.issuer.Deliver(context.Background(), donation.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := h.repo.get(donation.ID)
	if stored.CertificateLastError == nil || stored.CertificateSent {
		t.Fatal("expected render failure recorded")
	}
	if h.mailer.sent != 0 {
		t.Fatal("expected no email after render failure")
	}
}

func TestResendRequiresSuccessfulDonation(t *testing.T) {
	h := newIssuerHarness()
	donation := h.createDonation("1000")

	if _, err := h.issuer.Resend(context.Background(), donation.ID); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := h.issuer.Resend(context.Background(), 999); !errors.Is(err, ErrDonationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunDispatchBatchDeliversDue(t *testing.T) {
	h := newIssuerHarness()
	first := h.succeededDonation(t)

	if err := h.issuer.RunDispatchBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.repo.get(first.ID).CertificateSent {
		t.Fatal("expected dispatch job to send due certificate")
	}
}

func TestIssuerWorkerPoolDrainsQueue(t *testing.T) {
	h := newIssuerHarness()
	donation := h.succeededDonation(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.issuer.Start(ctx)
	h.issuer.Enqueue(donation.ID)
	h.issuer.Stop()

	// Stop may win the race against the worker; the dispatch job covers that.
	if !h.repo.get(donation.ID).CertificateSent {
		if err := h.issuer.RunDispatchBatch(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if h.mailer.sent != 1 {
		t.Fatalf("expected one email, got %d", h.mailer.sent)
	}

	h.issuer.Enqueue(donation.ID)
}
