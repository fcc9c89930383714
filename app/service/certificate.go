package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/config"
)

type certificateDonationRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Donation, error)
	ClaimCertificateDelivery(ctx context.Context, id uint64, now time.Time, leaseUntil time.Time) (bool, error)
	UpdateCertificateDelivery(ctx context.Context, donation *entity.Donation) error
	ListDueCertificateDelivery(ctx context.Context, now time.Time, limit int32) ([]*entity.Donation, error)
}

type templateSource interface {
	Active(ctx context.Context) (*entity.CertificateTemplate, error)
}

type certificateRenderer interface {
	Render(donation *entity.Donation, tpl *entity.CertificateTemplate) ([]byte, error)
}

type certificateStore interface {
	Save(ctx context.Context, name string, content []byte) (string, error)
}

type receiptMailer interface {
	SendDonationReceipt(ctx context.Context, donation *entity.Donation, attachment []byte, attachmentName string) bool
}

// CertificateIssuer renders and emails 80G certificates. Deliveries are
// claimed with a conditional update, so the in-process pool and the
// dispatch job never send the same certificate twice.
type CertificateIssuer struct {
	donationRepo certificateDonationRepository
	eventRepo    donationEventRepository
	templates    templateSource
	renderer     certificateRenderer
	store        certificateStore
	mailer       receiptMailer
	cfg          config.DonationsConfig

	publisher eventPublisher
	metrics   metricsRecorder
	logger    logrus.FieldLogger

	queue chan uint64
	wg    sync.WaitGroup
	done  chan struct{}
	once  sync.Once
}

func NewCertificateIssuer(
	donationRepo certificateDonationRepository,
	eventRepo donationEventRepository,
	templates templateSource,
	renderer certificateRenderer,
	store certificateStore,
	mailer receiptMailer,
	cfg config.DonationsConfig,
) *CertificateIssuer {
	size := cfg.DispatcherQueueSize
	if size <= 0 {
		size = 64
	}
	return &CertificateIssuer{
		donationRepo: donationRepo,
		eventRepo:    eventRepo,
		templates:    templates,
		renderer:     renderer,
		store:        store,
		mailer:       mailer,
		cfg:          cfg,
		publisher:    noopPublisher{},
		metrics:      noopMetrics{},
		logger:       factory.NewModuleLogger("certificate-issuer"),
		queue:        make(chan uint64, size),
		done:         make(chan struct{}),
	}
}

func (s *CertificateIssuer) SetPublisher(publisher eventPublisher) {
	if publisher != nil {
		s.publisher = publisher
	}
}

func (s *CertificateIssuer) SetMetrics(metrics metricsRecorder) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// Start launches the worker pool. Workers exit when ctx is done or Stop is called.
func (s *CertificateIssuer) Start(ctx context.Context) {
	workers := s.cfg.DispatcherWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.work(ctx)
	}
}

func (s *CertificateIssuer) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Enqueue never blocks. When the queue is full the delivery stays due and
// the dispatch job picks it up.
func (s *CertificateIssuer) Enqueue(donationID uint64) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.queue <- donationID:
	default:
		s.logger.WithField("donation_id", donationID).Warn("certificate queue full, leaving for dispatch job")
	}
}

func (s *CertificateIssuer) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case id := <-s.queue:
			if _, err := s.Deliver(ctx, id); err != nil {
				s.logger.WithError(err).WithField("donation_id", id).Warn("certificate delivery attempt failed")
			}
		}
	}
}

// Deliver claims a due delivery and attempts it. It reports false without
// error when another worker holds the claim.
func (s *CertificateIssuer) Deliver(ctx context.Context, donationID uint64) (bool, error) {
	now := time.Now().UTC()
	claimed, err := s.donationRepo.ClaimCertificateDelivery(ctx, donationID, now, now.Add(s.lease()))
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	donation, err := s.donationRepo.FindByID(ctx, donationID)
	if err != nil {
		return false, err
	}
	if donation == nil {
		return false, ErrDonationNotFound
	}
	return s.issue(ctx, donation, entity.EventSourceSystem)
}

// Resend re-renders and re-sends a certificate on operator request.
func (s *CertificateIssuer) Resend(ctx context.Context, donationID uint64) (bool, error) {
	donation, err := s.donationRepo.FindByID(ctx, donationID)
	if err != nil {
		return false, err
	}
	if donation == nil {
		return false, ErrDonationNotFound
	}
	if donation.Status != entity.DonationStatusSuccess {
		return false, ErrInvalidStatus
	}
	donation.CertificateAttempts = 0
	return s.issue(ctx, donation, entity.EventSourceAdmin)
}

func (s *CertificateIssuer) RunDispatchBatch(ctx context.Context) error {
	limit := s.cfg.JobBatchSize
	if limit <= 0 {
		limit = defaultBatchSize
	}
	items, err := s.donationRepo.ListDueCertificateDelivery(ctx, time.Now().UTC(), limit)
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil {
			continue
		}
		if _, err := s.Deliver(ctx, donation.ID); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}
	return firstErr
}

// issue renders, stores and mails the certificate, then records the
// delivery outcome. The donation's payment status is never touched.
func (s *CertificateIssuer) issue(ctx context.Context, donation *entity.Donation, source string) (bool, error) {
	sent, issueErr := s.renderAndSend(ctx, donation)

	now := time.Now().UTC()
	donation.CertificateAttempts++
	donation.UpdatedAt = now
	if sent {
		donation.CertificateSent = true
		donation.CertificateSentAt = &now
		donation.CertificateStatus = entity.CertificateDeliverySent
		donation.CertificateNextAt = nil
		donation.CertificateLastError = nil
	} else {
		msg := ErrDeliveryFailure.Error()
		if issueErr != nil {
			msg = capUTF8(issueErr.Error(), webhookErrorLimit)
		}
		donation.CertificateLastError = &msg
		if donation.CertificateAttempts >= s.maxAttempts() {
			donation.CertificateStatus = entity.CertificateDeliveryFailed
			donation.CertificateNextAt = nil
		} else {
			next := now.Add(s.retryInterval())
			donation.CertificateStatus = entity.CertificateDeliveryPending
			donation.CertificateNextAt = &next
		}
	}

	if err := s.donationRepo.UpdateCertificateDelivery(ctx, donation); err != nil {
		return sent, err
	}

	if sent {
		s.recordEvent(ctx, donation, "certificate_sent", source)
		s.metrics.CertificateDelivery("sent")
		s.publisher.CertificateSent(ctx, donation)
		return true, nil
	}

	s.recordEvent(ctx, donation, "certificate_failed", source)
	s.metrics.CertificateDelivery(donation.CertificateStatus)
	s.logger.WithFields(logrus.Fields{
		"donation_id": donation.ID,
		"attempts":    donation.CertificateAttempts,
		"status":      donation.CertificateStatus,
	}).Warn("certificate delivery failed")
	return false, nil
}

func (s *CertificateIssuer) renderAndSend(ctx context.Context, donation *entity.Donation) (bool, error) {
	tpl, err := s.templates.Active(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: template: %v", ErrDeliveryFailure, err)
	}

	pdf, err := s.renderer.Render(donation, tpl)
	if err != nil {
		return false, fmt.Errorf("%w: render: %v", ErrDeliveryFailure, err)
	}

	txnRef := donation.TransactionReference()
	path, err := s.store.Save(ctx, fmt.Sprintf("80G_%d_%s.pdf", donation.ID, txnRef), pdf)
	if err != nil {
		return false, fmt.Errorf("%w: store: %v", ErrDeliveryFailure, err)
	}
	donation.CertificatePath = &path

	if !s.mailer.SendDonationReceipt(ctx, donation, pdf, fmt.Sprintf("80G_Certificate_%s.pdf", txnRef)) {
		return false, fmt.Errorf("%w: email not sent", ErrDeliveryFailure)
	}
	return true, nil
}

func (s *CertificateIssuer) recordEvent(ctx context.Context, donation *entity.Donation, eventType, source string) {
	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID: donation.ID,
		EventType:  eventType,
		Source:     source,
		NewStatus:  donation.Status,
		CreatedAt:  time.Now().UTC(),
	})
}

func (s *CertificateIssuer) maxAttempts() int32 {
	if s.cfg.CertificateMaxAttempts > 0 {
		return s.cfg.CertificateMaxAttempts
	}
	return 5
}

func (s *CertificateIssuer) retryInterval() time.Duration {
	if s.cfg.CertificateRetryInterval > 0 {
		return s.cfg.CertificateRetryInterval
	}
	return 10 * time.Minute
}

func (s *CertificateIssuer) lease() time.Duration {
	if s.cfg.CertificateLease > 0 {
		return s.cfg.CertificateLease
	}
	return 5 * time.Minute
}
