package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
)

type memDonationRepo struct {
	mu        sync.Mutex
	donations map[uint64]*entity.Donation
	nextID    uint64
}

func newMemDonationRepo() *memDonationRepo {
	return &memDonationRepo{donations: map[uint64]*entity.Donation{}, nextID: 1}
}

func (r *memDonationRepo) Create(_ context.Context, donation *entity.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	donation.ID = r.nextID
	r.nextID++
	donation.CertificateStatus = entity.CertificateDeliveryNone
	copyItem := *donation
	r.donations[donation.ID] = &copyItem
	return nil
}

func (r *memDonationRepo) FindByID(_ context.Context, id uint64) (*entity.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *memDonationRepo) FindByOrderOrSubscriptionID(_ context.Context, reference string) (*entity.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.donations {
		if (item.GatewayOrderID != nil && *item.GatewayOrderID == reference) ||
			(item.SubscriptionID != nil && *item.SubscriptionID == reference) {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *memDonationRepo) AttachOrder(_ context.Context, id uint64, orderID string, subscriptionID *string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok || item.Status != entity.DonationStatusPending || item.GatewayOrderID != nil {
		return repository.ErrOrderAttached
	}
	item.GatewayOrderID = &orderID
	item.SubscriptionID = subscriptionID
	item.UpdatedAt = now
	return nil
}

func (r *memDonationRepo) MarkSucceeded(_ context.Context, id uint64, paymentID string, signature *string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok || item.Status != entity.DonationStatusPending {
		return false, nil
	}
	item.Status = entity.DonationStatusSuccess
	item.GatewayPaymentID = &paymentID
	item.GatewaySignature = signature
	item.CertificateStatus = entity.CertificateDeliveryPending
	item.CertificateAttempts = 0
	item.CertificateNextAt = &now
	item.UpdatedAt = now
	return true, nil
}

func (r *memDonationRepo) cas(id uint64, from, to string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok || item.Status != from {
		return false
	}
	item.Status = to
	item.UpdatedAt = now
	return true
}

func (r *memDonationRepo) MarkFailed(_ context.Context, id uint64, now time.Time) (bool, error) {
	return r.cas(id, entity.DonationStatusPending, entity.DonationStatusFailed, now), nil
}

func (r *memDonationRepo) MarkRefunded(_ context.Context, id uint64, now time.Time) (bool, error) {
	return r.cas(id, entity.DonationStatusSuccess, entity.DonationStatusRefunded, now), nil
}

func (r *memDonationRepo) filtered(match func(*entity.Donation) bool) []*entity.Donation {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Donation, 0)
	for _, item := range r.donations {
		if match(item) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items
}

func (r *memDonationRepo) List(_ context.Context, filter repository.DonationFilter) ([]*entity.Donation, error) {
	items := r.filtered(func(d *entity.Donation) bool {
		return (filter.Status == "" || d.Status == filter.Status) &&
			(filter.Gateway == "" || d.Gateway == filter.Gateway) &&
			(filter.DonorEmail == "" || d.Donor.Email == filter.DonorEmail)
	})
	start := int(filter.Offset)
	if start > len(items) {
		return []*entity.Donation{}, nil
	}
	end := start + int(filter.Limit)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

func (r *memDonationRepo) Count(ctx context.Context, filter repository.DonationFilter) (int64, error) {
	filter.Limit = 1 << 30
	filter.Offset = 0
	items, _ := r.List(ctx, filter)
	return int64(len(items)), nil
}

func (r *memDonationRepo) ListForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.Donation, error) {
	return limitItems(r.filtered(func(d *entity.Donation) bool {
		return d.Status == entity.DonationStatusPending && d.GatewayOrderID != nil && d.SubscriptionID == nil && !d.UpdatedAt.After(before)
	}), limit), nil
}

func (r *memDonationRepo) ListExpiredPending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Donation, error) {
	return limitItems(r.filtered(func(d *entity.Donation) bool {
		return d.Status == entity.DonationStatusPending && !d.CreatedAt.After(cutoff)
	}), limit), nil
}

func (r *memDonationRepo) ClaimCertificateDelivery(_ context.Context, id uint64, now time.Time, leaseUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[id]
	if !ok || item.Status != entity.DonationStatusSuccess || item.CertificateStatus != entity.CertificateDeliveryPending ||
		item.CertificateNextAt == nil || item.CertificateNextAt.After(now) {
		return false, nil
	}
	item.CertificateNextAt = &leaseUntil
	return true, nil
}

func (r *memDonationRepo) UpdateCertificateDelivery(_ context.Context, donation *entity.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.donations[donation.ID]
	if !ok {
		return repository.ErrDonationNotFound
	}
	item.CertificateSent = donation.CertificateSent
	item.CertificateSentAt = donation.CertificateSentAt
	item.CertificatePath = donation.CertificatePath
	item.CertificateStatus = donation.CertificateStatus
	item.CertificateAttempts = donation.CertificateAttempts
	item.CertificateNextAt = donation.CertificateNextAt
	item.CertificateLastError = donation.CertificateLastError
	return nil
}

func (r *memDonationRepo) ListDueCertificateDelivery(_ context.Context, now time.Time, limit int32) ([]*entity.Donation, error) {
	return limitItems(r.filtered(func(d *entity.Donation) bool {
		return d.Status == entity.DonationStatusSuccess && d.CertificateStatus == entity.CertificateDeliveryPending &&
			d.CertificateNextAt != nil && !d.CertificateNextAt.After(now)
	}), limit), nil
}

func (r *memDonationRepo) get(id uint64) entity.Donation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.donations[id]
}

func (r *memDonationRepo) age(id uint64, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.donations[id].CreatedAt = r.donations[id].CreatedAt.Add(-d)
	r.donations[id].UpdatedAt = r.donations[id].UpdatedAt.Add(-d)
}

func limitItems(items []*entity.Donation, limit int32) []*entity.Donation {
	if limit > 0 && int(limit) < len(items) {
		return items[:limit]
	}
	return items
}

// memTxnRepo enforces the (donation, payment, status) unique key. createErr
// fails the next insert once.
type memTxnRepo struct {
	mu        sync.Mutex
	items     []*entity.PaymentTransaction
	createErr error
}

func (r *memTxnRepo) Create(_ context.Context, txn *entity.PaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErr; err != nil {
		r.createErr = nil
		return err
	}
	if txn.GatewayPaymentID != nil {
		for _, item := range r.items {
			if item.DonationID == txn.DonationID && item.Status == txn.Status &&
				item.GatewayPaymentID != nil && *item.GatewayPaymentID == *txn.GatewayPaymentID {
				return repository.ErrTransactionExists
			}
		}
	}
	txn.ID = uint64(len(r.items) + 1)
	copyItem := *txn
	r.items = append(r.items, &copyItem)
	return nil
}

func (r *memTxnRepo) ListByDonation(_ context.Context, donationID uint64) ([]*entity.PaymentTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.PaymentTransaction, 0)
	for _, item := range r.items {
		if item.DonationID == donationID {
			copyItem := *item
			out = append(out, &copyItem)
		}
	}
	return out, nil
}

func (r *memTxnRepo) countStatus(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Status == status {
			n++
		}
	}
	return n
}

type memEventRepo struct {
	mu     sync.Mutex
	events []*entity.DonationEvent
}

func (r *memEventRepo) Create(_ context.Context, event *entity.DonationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memEventRepo) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type memWebhookRepo struct {
	mu    sync.Mutex
	items []*entity.WebhookDelivery
}

func (r *memWebhookRepo) Create(_ context.Context, delivery *entity.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, delivery)
	return nil
}

func (r *memWebhookRepo) last() *entity.WebhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[len(r.items)-1]
}

type memDedupe struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedupe) Seen(_ context.Context, gateway, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[gateway+eventID], nil
}

func (d *memDedupe) Mark(_ context.Context, gateway, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[gateway+eventID] = true
	return nil
}

type countingTrigger struct {
	mu  sync.Mutex
	ids []uint64
}

func (t *countingTrigger) Enqueue(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = append(t.ids, id)
}

func (t *countingTrigger) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

type fakeMetrics struct {
	noopMetrics
	mu           sync.Mutex
	mismatches   int
	latePayments int
}

func (m *fakeMetrics) LatePayment(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latePayments++
}

func (m *fakeMetrics) AmountMismatch(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mismatches++
}

// fakeGateway signs with "ok" and accepts webhooks carrying the header X-Test-Valid.
type fakeGateway struct {
	name        string
	paid        bool
	paymentID   string
	payment     map[string]interface{}
	createErr   error
	refunds     int
	recurring   bool
	pollCalls   int
	lastPolled  string
	mu          sync.Mutex
	lastOrderIn *provider.OrderInput
}

func (g *fakeGateway) Gateway() string { return g.name }

func (g *fakeGateway) CreateOrder(_ context.Context, input *provider.OrderInput) (*provider.OrderOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastOrderIn = input
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &provider.OrderOutput{OrderID: "order_" + input.Receipt}, nil
}

func (g *fakeGateway) GetOrderStatus(_ context.Context, orderID string) (*provider.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pollCalls++
	g.lastPolled = orderID
	return &provider.OrderStatus{Paid: g.paid, PaymentID: g.paymentID, Payment: g.payment}, nil
}

func (g *fakeGateway) FetchPayment(context.Context, string, string) map[string]interface{} {
	return g.payment
}

func (g *fakeGateway) VerifyWebhookSignature(_ []byte, headers http.Header) bool {
	return headers.Get("X-Test-Valid") == "1"
}

func (g *fakeGateway) ParseWebhook(body []byte, headers http.Header) (*provider.WebhookEvent, error) {
	switch string(body) {
	case "captured":
		amount := decimal.RequireFromString(headers.Get("X-Test-Amount"))
		return &provider.WebhookEvent{
			EventID:        headers.Get("X-Test-Event"),
			EventType:      "payment.captured",
			Outcome:        provider.WebhookOutcomeSucceeded,
			OrderID:        headers.Get("X-Test-Order"),
			SubscriptionID: headers.Get("X-Test-Subscription"),
			PaymentID:      "pay_hook",
			Amount:         &amount,
			Payment:        map[string]interface{}{"fee": float64(2000), "tax": float64(360), "method": "upi"},
		}, nil
	case "failed":
		return &provider.WebhookEvent{
			EventID:   headers.Get("X-Test-Event"),
			EventType: "payment.failed",
			Outcome:   provider.WebhookOutcomeAttemptFailed,
			OrderID:   headers.Get("X-Test-Order"),
			PaymentID: "pay_failed",
			Payment:   map[string]interface{}{"method": "card", "error_code": "BAD_REQUEST_ERROR", "error_reason": "payment_failed"},
		}, nil
	}
	return nil, errors.New("unknown body")
}

func (g *fakeGateway) Refund(context.Context, *provider.RefundInput) (*provider.RefundOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return &provider.RefundOutput{RefundID: "rfnd_1", Status: "processed"}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(_ provider.PaymentReference, signature string) bool {
	return signature == "ok"
}

type fakeRecurringGateway struct {
	*fakeGateway
}

func (g *fakeRecurringGateway) CreatePlan(context.Context, decimal.Decimal, string, string) (string, error) {
	return "plan_1", nil
}

func (g *fakeRecurringGateway) CreateSubscription(context.Context, *provider.SubscriptionInput) (*provider.SubscriptionOutput, error) {
	url := "https://rzp.io/i/sub"
	return &provider.SubscriptionOutput{SubscriptionID: "sub_1", ShortURL: &url}, nil
}

type createReq struct {
	name, email, phone, pan, amount, cause, donationType, gateway string
}

func (r createReq) GetName() string         { return r.name }
func (r createReq) GetEmail() string        { return r.email }
func (r createReq) GetPhone() string        { return r.phone }
func (r createReq) GetPan() string          { return r.pan }
func (r createReq) GetFatherName() string   { return "" }
func (r createReq) GetAddress() string      { return "" }
func (r createReq) GetCity() string         { return "" }
func (r createReq) GetState() string        { return "" }
func (r createReq) GetPincode() string      { return "" }
func (r createReq) GetCountry() string      { return "" }
func (r createReq) GetOnBehalfOf() bool     { return false }
func (r createReq) GetAmount() string       { return r.amount }
func (r createReq) GetCause() string        { return r.cause }
func (r createReq) GetDonationType() string { return r.donationType }
func (r createReq) GetGateway() string      { return r.gateway }

type verifyReq struct {
	id                                     uint64
	orderID, paymentID, signature, gateway string
}

func (r verifyReq) GetDonationId() uint64 { return r.id }
func (r verifyReq) GetOrderId() string    { return r.orderID }
func (r verifyReq) GetPaymentId() string  { return r.paymentID }
func (r verifyReq) GetSignature() string  { return r.signature }
func (r verifyReq) GetGateway() string    { return r.gateway }

type serviceHarness struct {
	svc      *DonationService
	repo     *memDonationRepo
	txns     *memTxnRepo
	events   *memEventRepo
	webhooks *memWebhookRepo
	trigger  *countingTrigger
	metrics  *fakeMetrics
	gateway  *fakeGateway
}

func newServiceHarness() *serviceHarness {
	h := &serviceHarness{
		repo:     newMemDonationRepo(),
		txns:     &memTxnRepo{},
		events:   &memEventRepo{},
		webhooks: &memWebhookRepo{},
		trigger:  &countingTrigger{},
		metrics:  &fakeMetrics{},
		gateway:  &fakeGateway{name: entity.GatewayRazorpay},
	}
	registry := provider.NewRegistry(&fakeRecurringGateway{fakeGateway: h.gateway}, &fakeGateway{name: entity.GatewayCashfree})
	h.svc = NewDonationService(h.repo, h.txns, h.events, h.webhooks, registry, testDonationsConfig())
	h.svc.SetCertificateTrigger(h.trigger)
	h.svc.SetMetrics(h.metrics)
	h.svc.SetWebhookDedupe(&memDedupe{})
	return h
}

func (h *serviceHarness) createDonation(amount string) *entity.Donation {
	res, err := h.svc.CreateDonation(context.Background(), createReq{
		name: "Asha Devi", email: "asha@example.com", phone: "9999999999", amount: amount, cause: "gausewa",
	})
	if err != nil {
		panic(err)
	}
	return res.Donation
}

func (h *serviceHarness) createMonthlyDonation(amount string) *entity.Donation {
	res, err := h.svc.CreateDonation(context.Background(), createReq{
		name: "Ravi Kumar", email: "ravi@example.com", phone: "9888888888", amount: amount, cause: "annadaan", donationType: "monthly",
	})
	if err != nil {
		panic(err)
	}
	return res.Donation
}

func webhookHeaders(orderID, eventID, amount string) http.Header {
	h := http.Header{}
	h.Set("X-Test-Valid", "1")
	h.Set("X-Test-Order", orderID)
	h.Set("X-Test-Event", eventID)
	h.Set("X-Test-Amount", amount)
	return h
}
