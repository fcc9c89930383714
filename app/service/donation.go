package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
	"github.com/vibast-solutions/ms-go-donations/config"
)

const (
	defaultListLimit = int32(20)
	maxListLimit     = int32(100)
	defaultBatchSize = int32(100)
)

type createDonationRequest interface {
	GetName() string
	GetEmail() string
	GetPhone() string
	GetPan() string
	GetFatherName() string
	GetAddress() string
	GetCity() string
	GetState() string
	GetPincode() string
	GetCountry() string
	GetOnBehalfOf() bool
	GetAmount() string
	GetCause() string
	GetDonationType() string
	GetGateway() string
}

type listDonationsRequest interface {
	GetStatus() string
	GetGateway() string
	GetEmail() string
	GetLimit() int32
	GetOffset() int32
}

type donationRepository interface {
	Create(ctx context.Context, donation *entity.Donation) error
	FindByID(ctx context.Context, id uint64) (*entity.Donation, error)
	FindByOrderOrSubscriptionID(ctx context.Context, reference string) (*entity.Donation, error)
	AttachOrder(ctx context.Context, id uint64, orderID string, subscriptionID *string, now time.Time) error
	MarkSucceeded(ctx context.Context, id uint64, paymentID string, signature *string, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint64, now time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id uint64, now time.Time) (bool, error)
	List(ctx context.Context, filter repository.DonationFilter) ([]*entity.Donation, error)
	Count(ctx context.Context, filter repository.DonationFilter) (int64, error)
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Donation, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Donation, error)
}

type transactionRepository interface {
	Create(ctx context.Context, txn *entity.PaymentTransaction) error
	ListByDonation(ctx context.Context, donationID uint64) ([]*entity.PaymentTransaction, error)
}

type donationEventRepository interface {
	Create(ctx context.Context, event *entity.DonationEvent) error
}

type webhookDeliveryRepository interface {
	Create(ctx context.Context, delivery *entity.WebhookDelivery) error
}

type webhookDedupe interface {
	Seen(ctx context.Context, gateway, eventID string) (bool, error)
	Mark(ctx context.Context, gateway, eventID string) error
}

type certificateTrigger interface {
	Enqueue(donationID uint64)
}

type eventPublisher interface {
	DonationSucceeded(ctx context.Context, donation *entity.Donation)
	DonationRefunded(ctx context.Context, donation *entity.Donation)
	CertificateSent(ctx context.Context, donation *entity.Donation)
}

type metricsRecorder interface {
	DonationTransition(gateway, status, source string)
	WebhookReceived(gateway, result string)
	AmountMismatch(gateway string)
	LatePayment(gateway string)
	CertificateDelivery(result string)
	GatewayError(gateway, op string)
}

type CreateOrderResult struct {
	Donation         *entity.Donation
	OrderID          string
	SubscriptionID   *string
	ShortURL         *string
	PaymentSessionID *string
	KeyID            *string
}

type DonationList struct {
	Items []*entity.Donation
	Total int64
}

type DonationService struct {
	donationRepo donationRepository
	txnRepo      transactionRepository
	eventRepo    donationEventRepository
	webhookRepo  webhookDeliveryRepository
	providerReg  *provider.Registry
	cfg          config.DonationsConfig

	dedupe    webhookDedupe
	trigger   certificateTrigger
	publisher eventPublisher
	metrics   metricsRecorder
	logger    logrus.FieldLogger
}

func NewDonationService(
	donationRepo donationRepository,
	txnRepo transactionRepository,
	eventRepo donationEventRepository,
	webhookRepo webhookDeliveryRepository,
	providerReg *provider.Registry,
	cfg config.DonationsConfig,
) *DonationService {
	return &DonationService{
		donationRepo: donationRepo,
		txnRepo:      txnRepo,
		eventRepo:    eventRepo,
		webhookRepo:  webhookRepo,
		providerReg:  providerReg,
		cfg:          cfg,
		dedupe:       noopDedupe{},
		trigger:      noopTrigger{},
		publisher:    noopPublisher{},
		metrics:      noopMetrics{},
		logger:       factory.NewModuleLogger("donation-service"),
	}
}

func (s *DonationService) SetWebhookDedupe(dedupe webhookDedupe) {
	if dedupe != nil {
		s.dedupe = dedupe
	}
}

func (s *DonationService) SetCertificateTrigger(trigger certificateTrigger) {
	if trigger != nil {
		s.trigger = trigger
	}
}

func (s *DonationService) SetPublisher(publisher eventPublisher) {
	if publisher != nil {
		s.publisher = publisher
	}
}

func (s *DonationService) SetMetrics(metrics metricsRecorder) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// CreateDonation persists a pending donation, opens the gateway order or
// subscription and attaches it. A gateway failure leaves the donation
// pending with no order id.
func (s *DonationService) CreateDonation(ctx context.Context, req createDonationRequest) (*CreateOrderResult, error) {
	donation, err := buildDonation(req)
	if err != nil {
		return nil, err
	}

	gateway, err := s.providerFor(donation.Gateway)
	if err != nil {
		return nil, err
	}
	var recurring provider.RecurringProvider
	if donation.Type == entity.DonationTypeMonthly {
		rp, ok := gateway.(provider.RecurringProvider)
		if !ok {
			return nil, fmt.Errorf("%w: monthly donations are not available on %s", ErrValidation, donation.Gateway)
		}
		recurring = rp
	}

	now := time.Now().UTC()
	donation.Status = entity.DonationStatusPending
	donation.CreatedAt = now
	donation.UpdatedAt = now
	if err := s.donationRepo.Create(ctx, donation); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, donation.ID, "donation_created", entity.EventSourceSystem, nil, donation.Status, nil, nil)

	result := &CreateOrderResult{Donation: donation}
	if recurring != nil {
		err = s.openSubscription(ctx, recurring, donation, result)
	} else {
		err = s.openOrder(ctx, gateway, donation, result)
	}
	if err != nil {
		s.metrics.GatewayError(donation.Gateway, "create_order")
		s.logger.WithError(err).WithField("donation_id", donation.ID).Warn("gateway order creation failed")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	subscriptionID := result.SubscriptionID
	if err := s.donationRepo.AttachOrder(ctx, donation.ID, result.OrderID, subscriptionID, time.Now().UTC()); err != nil {
		return nil, err
	}
	orderID := result.OrderID
	donation.GatewayOrderID = &orderID
	donation.SubscriptionID = subscriptionID
	s.recordEvent(ctx, donation.ID, "order_attached", entity.EventSourceSystem, nil, donation.Status, nil, nil)

	return result, nil
}

func (s *DonationService) openOrder(ctx context.Context, gateway provider.Provider, donation *entity.Donation, result *CreateOrderResult) error {
	out, err := gateway.CreateOrder(ctx, &provider.OrderInput{
		DonationID: donation.ID,
		Receipt:    fmt.Sprintf("DFG_%d", donation.ID),
		Amount:     donation.Amount,
		Currency:   donation.Currency,
		Cause:      donation.Cause,
		DonorName:  donation.Donor.Name,
		DonorEmail: donation.Donor.Email,
		DonorPhone: donation.Donor.Phone,
		ReturnURL:  s.cfg.FrontendURL + "/donate/success",
	})
	if err != nil {
		return err
	}
	result.OrderID = out.OrderID
	result.PaymentSessionID = out.PaymentSessionID
	result.KeyID = out.KeyID
	return nil
}

func (s *DonationService) openSubscription(ctx context.Context, recurring provider.RecurringProvider, donation *entity.Donation, result *CreateOrderResult) error {
	planID, err := recurring.CreatePlan(ctx, donation.Amount, donation.Currency, "Monthly Donation - "+causeTitle(donation.Cause))
	if err != nil {
		return err
	}

	email := donation.Donor.Email
	out, err := recurring.CreateSubscription(ctx, &provider.SubscriptionInput{
		DonationID:  donation.ID,
		PlanID:      planID,
		NotifyEmail: &email,
	})
	if err != nil {
		return err
	}

	subscriptionID := out.SubscriptionID
	result.OrderID = subscriptionID
	result.SubscriptionID = &subscriptionID
	result.ShortURL = out.ShortURL
	result.KeyID = out.KeyID
	return nil
}

func (s *DonationService) GetDonation(ctx context.Context, id uint64) (*entity.Donation, error) {
	donation, err := s.donationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, ErrDonationNotFound
	}
	return donation, nil
}

func (s *DonationService) ListTransactions(ctx context.Context, donationID uint64) ([]*entity.PaymentTransaction, error) {
	return s.txnRepo.ListByDonation(ctx, donationID)
}

func (s *DonationService) ListDonations(ctx context.Context, req listDonationsRequest) (*DonationList, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.GetOffset()
	if offset < 0 {
		offset = 0
	}

	status := strings.TrimSpace(req.GetStatus())
	if status != "" && !entity.IsValidDonationStatus(status) {
		return nil, fmt.Errorf("%w: status is invalid", ErrValidation)
	}
	gateway := strings.TrimSpace(req.GetGateway())
	if gateway != "" && !entity.IsValidGateway(gateway) {
		return nil, fmt.Errorf("%w: gateway is invalid", ErrValidation)
	}

	filter := repository.DonationFilter{
		Status:     status,
		Gateway:    gateway,
		DonorEmail: strings.ToLower(strings.TrimSpace(req.GetEmail())),
		Limit:      limit,
		Offset:     offset,
	}
	items, err := s.donationRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.donationRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DonationList{Items: items, Total: total}, nil
}

func (s *DonationService) recordEvent(
	ctx context.Context,
	donationID uint64,
	eventType string,
	source string,
	oldStatus *string,
	newStatus string,
	gatewayEventID *string,
	payload *string,
) {
	_ = s.eventRepo.Create(ctx, &entity.DonationEvent{
		DonationID:     donationID,
		EventType:      eventType,
		Source:         source,
		OldStatus:      oldStatus,
		NewStatus:      newStatus,
		GatewayEventID: gatewayEventID,
		PayloadJSON:    payload,
		CreatedAt:      time.Now().UTC(),
	})
}

func buildDonation(req createDonationRequest) (*entity.Donation, error) {
	name := strings.TrimSpace(req.GetName())
	email := strings.ToLower(strings.TrimSpace(req.GetEmail()))
	phone := strings.TrimSpace(req.GetPhone())
	if name == "" {
		return nil, fmt.Errorf("%w: donor name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, fmt.Errorf("%w: donor email is invalid", ErrValidation)
	}
	if phone == "" {
		return nil, fmt.Errorf("%w: donor phone is required", ErrValidation)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.GetAmount()))
	if err != nil {
		return nil, fmt.Errorf("%w: amount is invalid", ErrValidation)
	}
	if _, err := provider.ToMinor(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cause := strings.ToLower(strings.TrimSpace(req.GetCause()))
	if cause == "" {
		cause = entity.CauseGeneral
	}
	if !entity.IsValidCause(cause) {
		return nil, fmt.Errorf("%w: cause is invalid", ErrValidation)
	}
	donationType := strings.ToLower(strings.TrimSpace(req.GetDonationType()))
	if donationType == "" {
		donationType = entity.DonationTypeOneTime
	}
	if !entity.IsValidDonationType(donationType) {
		return nil, fmt.Errorf("%w: donation type is invalid", ErrValidation)
	}
	gateway := strings.ToLower(strings.TrimSpace(req.GetGateway()))
	if gateway == "" {
		gateway = entity.GatewayRazorpay
	}
	if !entity.IsValidGateway(gateway) {
		return nil, fmt.Errorf("%w: gateway is invalid", ErrValidation)
	}
	if gateway == entity.GatewayCashfree && donationType == entity.DonationTypeMonthly {
		return nil, fmt.Errorf("%w: monthly donations are only available via razorpay", ErrValidation)
	}

	country := strings.TrimSpace(req.GetCountry())
	if country == "" {
		country = "India"
	}

	pan := optionalString(strings.ToUpper(req.GetPan()))
	return &entity.Donation{
		Donor: entity.Donor{
			Name:       name,
			Email:      email,
			Phone:      phone,
			PAN:        pan,
			FatherName: optionalString(req.GetFatherName()),
			Address:    optionalString(req.GetAddress()),
			City:       optionalString(req.GetCity()),
			State:      optionalString(req.GetState()),
			Pincode:    optionalString(req.GetPincode()),
			Country:    country,
			OnBehalfOf: req.GetOnBehalfOf(),
		},
		Amount:   amount,
		Currency: entity.DefaultCurrency,
		Cause:    cause,
		Type:     donationType,
		Gateway:  gateway,
	}, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func causeTitle(cause string) string {
	if cause == "" {
		return ""
	}
	return strings.ToUpper(cause[:1]) + cause[1:]
}

func (s *DonationService) providerFor(gateway string) (provider.Provider, error) {
	p, err := s.providerReg.Get(gateway)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}
	return p, nil
}

type noopDedupe struct{}

func (noopDedupe) Seen(context.Context, string, string) (bool, error) { return false, nil }
func (noopDedupe) Mark(context.Context, string, string) error         { return nil }

type noopTrigger struct{}

func (noopTrigger) Enqueue(uint64) {}

type noopPublisher struct{}

func (noopPublisher) DonationSucceeded(context.Context, *entity.Donation) {}
func (noopPublisher) DonationRefunded(context.Context, *entity.Donation)  {}
func (noopPublisher) CertificateSent(context.Context, *entity.Donation)   {}

type noopMetrics struct{}

func (noopMetrics) DonationTransition(string, string, string) {}
func (noopMetrics) WebhookReceived(string, string)            {}
func (noopMetrics) AmountMismatch(string)                     {}
func (noopMetrics) LatePayment(string)                        {}
func (noopMetrics) CertificateDelivery(string)                {}
func (noopMetrics) GatewayError(string, string)               {}
