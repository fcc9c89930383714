package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
)

const webhookErrorLimit = 1024

type WebhookResult struct {
	Status     int32
	DonationID *uint64
	EventType  string
	Duplicate  bool
}

// HandleWebhook applies a gateway notification. The signature is checked
// against the raw body before anything in it is parsed.
func (s *DonationService) HandleWebhook(ctx context.Context, gateway string, body []byte, headers http.Header) (*WebhookResult, error) {
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	p, err := s.providerFor(gateway)
	if err != nil {
		return nil, err
	}

	signature := webhookSignature(headers)
	if !p.VerifyWebhookSignature(body, headers) {
		s.metrics.WebhookReceived(gateway, "rejected")
		s.persistDelivery(ctx, &entity.WebhookDelivery{
			Gateway:     gateway,
			Signature:   signature,
			PayloadJSON: capUTF8(string(body), rawResponseLimit),
			Status:      entity.WebhookDeliveryRejected,
		}, "signature invalid")
		return nil, ErrSignatureInvalid
	}

	event, err := p.ParseWebhook(body, headers)
	if err != nil {
		s.metrics.WebhookReceived(gateway, "rejected")
		s.persistDelivery(ctx, &entity.WebhookDelivery{
			Gateway:     gateway,
			Signature:   signature,
			PayloadJSON: capUTF8(string(body), rawResponseLimit),
			Status:      entity.WebhookDeliveryRejected,
		}, "payload could not be parsed: "+err.Error())
		return nil, ErrValidation
	}

	delivery := &entity.WebhookDelivery{
		Gateway:     gateway,
		EventType:   event.EventType,
		DedupeKey:   event.EventID,
		Signature:   signature,
		PayloadJSON: capUTF8(string(body), rawResponseLimit),
		Status:      entity.WebhookDeliveryIgnored,
	}
	result := &WebhookResult{Status: entity.WebhookDeliveryIgnored, EventType: event.EventType}

	seen, err := s.dedupe.Seen(ctx, gateway, event.EventID)
	if err != nil {
		s.logger.WithError(err).Warn("webhook dedupe lookup failed")
	}
	if seen {
		result.Duplicate = true
		s.metrics.WebhookReceived(gateway, "duplicate")
		s.persistDelivery(ctx, delivery, "duplicate delivery")
		return result, nil
	}

	refs := event.References()
	if event.Outcome == provider.WebhookOutcomeIgnored || len(refs) == 0 {
		s.metrics.WebhookReceived(gateway, "ignored")
		s.persistDelivery(ctx, delivery, "event not handled")
		s.markSeen(ctx, gateway, event.EventID)
		return result, nil
	}

	donation, err := s.findByReferences(ctx, refs)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		s.metrics.WebhookReceived(gateway, "ignored")
		s.persistDelivery(ctx, delivery, "donation not found for "+strings.Join(refs, ", "))
		return result, nil
	}
	donationID := donation.ID
	delivery.DonationID = &donationID
	result.DonationID = &donationID

	var reason string
	switch event.Outcome {
	case provider.WebhookOutcomeSucceeded:
		reason, err = s.applyWebhookSuccess(ctx, p, donation, event, body)
	case provider.WebhookOutcomeAttemptFailed:
		reason, err = s.recordFailedAttempt(ctx, donation, event)
	}
	if err != nil {
		return nil, err
	}

	if reason == "" {
		delivery.Status = entity.WebhookDeliveryProcessed
		result.Status = entity.WebhookDeliveryProcessed
	}
	s.metrics.WebhookReceived(gateway, webhookResultLabel(result.Status))
	s.persistDelivery(ctx, delivery, reason)
	s.markSeen(ctx, gateway, event.EventID)
	return result, nil
}

func (s *DonationService) applyWebhookSuccess(
	ctx context.Context,
	p provider.Provider,
	donation *entity.Donation,
	event *provider.WebhookEvent,
	body []byte,
) (string, error) {
	if event.PaymentID == "" {
		return "payment id missing", nil
	}
	switch donation.Status {
	case entity.DonationStatusPending:
	case entity.DonationStatusSuccess:
		return s.backfillCapture(ctx, donation, event)
	default:
		return s.recordLatePayment(ctx, donation, event, body)
	}

	payload := capUTF8(string(body), rawResponseLimit)
	eventID := event.EventID
	_, err := s.applySuccess(ctx, p, donation, successInput{
		paymentID:      event.PaymentID,
		payment:        event.Payment,
		source:         entity.EventSourceWebhook,
		gatewayEventID: &eventID,
		payload:        &payload,
		reportedAmount: event.Amount,
	})
	if errors.Is(err, ErrInvalidStatus) {
		return "donation is no longer pending", nil
	}
	return "", err
}

// findByReferences returns the first donation stored under any of refs.
func (s *DonationService) findByReferences(ctx context.Context, refs []string) (*entity.Donation, error) {
	for _, ref := range refs {
		donation, err := s.donationRepo.FindByOrderOrSubscriptionID(ctx, ref)
		if err != nil || donation != nil {
			return donation, err
		}
	}
	return nil, nil
}

// backfillCapture records the captured row for a settled donation whose
// transition committed without one. Any other success report for a settled
// donation is ignored.
func (s *DonationService) backfillCapture(ctx context.Context, donation *entity.Donation, event *provider.WebhookEvent) (string, error) {
	ignored := "donation already " + donation.Status
	if donation.GatewayPaymentID == nil || *donation.GatewayPaymentID != event.PaymentID {
		return ignored, nil
	}

	txns, err := s.txnRepo.ListByDonation(ctx, donation.ID)
	if err != nil {
		return "", err
	}
	for _, txn := range txns {
		if txn.Status == entity.TransactionStatusCaptured {
			return ignored, nil
		}
	}

	now := time.Now().UTC()
	paymentID := event.PaymentID
	txn := s.newTransaction(donation, entity.TransactionStatusCaptured, now)
	txn.GatewayPaymentID = &paymentID
	txn.GatewaySignature = donation.GatewaySignature
	txn.CapturedAt = &now
	ReconcileFees(event.Payment, donation.Amount, donation.Currency).applyTo(txn)
	if event.Amount != nil && !event.Amount.Equal(donation.Amount) {
		txn.NeedsReview = true
		s.metrics.AmountMismatch(donation.Gateway)
	}

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrTransactionExists) {
			return ignored, nil
		}
		return "", err
	}
	s.logger.WithField("donation_id", donation.ID).Info("backfilled captured transaction")
	return "", nil
}

// recordLatePayment keeps a capture reported for a donation that already
// failed or was refunded. The status is left alone and the row is flagged
// for manual review.
func (s *DonationService) recordLatePayment(ctx context.Context, donation *entity.Donation, event *provider.WebhookEvent, body []byte) (string, error) {
	now := time.Now().UTC()
	paymentID := event.PaymentID
	txn := s.newTransaction(donation, entity.TransactionStatusCaptured, now)
	txn.GatewayPaymentID = &paymentID
	txn.CapturedAt = &now
	txn.NeedsReview = true
	ReconcileFees(event.Payment, donation.Amount, donation.Currency).applyTo(txn)

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrTransactionExists) {
			return "late payment already recorded", nil
		}
		return "", err
	}

	status := donation.Status
	eventID := event.EventID
	payload := capUTF8(string(body), rawResponseLimit)
	s.recordEvent(ctx, donation.ID, "late_payment_review", entity.EventSourceWebhook, &status, status, &eventID, &payload)
	s.metrics.LatePayment(donation.Gateway)
	s.logger.WithFields(logrus.Fields{
		"donation_id": donation.ID,
		"status":      status,
		"payment_id":  paymentID,
	}).Warn("payment captured for a donation that is no longer pending")
	return "", nil
}

// recordFailedAttempt appends a failed transaction row. The donation stays
// pending because the donor may retry. A replayed failure for the same
// payment is absorbed by the transaction unique key.
func (s *DonationService) recordFailedAttempt(ctx context.Context, donation *entity.Donation, event *provider.WebhookEvent) (string, error) {
	now := time.Now().UTC()
	txn := s.newTransaction(donation, entity.TransactionStatusFailed, now)
	txn.FailedAt = &now
	if event.PaymentID != "" {
		paymentID := event.PaymentID
		txn.GatewayPaymentID = &paymentID
	}

	breakdown := ReconcileFees(event.Payment, donation.Amount, donation.Currency)
	breakdown.applyTo(txn)
	txn.ErrorCode = breakdown.ErrorCode
	txn.ErrorDescription = breakdown.ErrorDescription
	txn.ErrorSource = breakdown.ErrorSource
	txn.ErrorStep = breakdown.ErrorStep
	txn.ErrorReason = breakdown.ErrorReason

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrTransactionExists) {
			return "failed attempt already recorded", nil
		}
		return "", err
	}

	eventID := event.EventID
	s.recordEvent(ctx, donation.ID, "payment_attempt_failed", entity.EventSourceWebhook, nil, donation.Status, &eventID, nil)
	return "", nil
}

func (s *DonationService) persistDelivery(ctx context.Context, delivery *entity.WebhookDelivery, reason string) {
	delivery.CreatedAt = time.Now().UTC()
	if reason = strings.TrimSpace(reason); reason != "" {
		trimmed := capUTF8(reason, webhookErrorLimit)
		delivery.Error = &trimmed
	}
	if err := s.webhookRepo.Create(ctx, delivery); err != nil {
		s.logger.WithError(err).WithField("gateway", delivery.Gateway).Warn("failed to persist webhook delivery")
	}
}

func (s *DonationService) markSeen(ctx context.Context, gateway, eventID string) {
	if err := s.dedupe.Mark(ctx, gateway, eventID); err != nil {
		s.logger.WithError(err).Warn("webhook dedupe mark failed")
	}
}

func webhookSignature(headers http.Header) string {
	for _, key := range []string{"X-Razorpay-Signature", "X-Webhook-Signature"} {
		if v := strings.TrimSpace(headers.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func webhookResultLabel(status int32) string {
	switch status {
	case entity.WebhookDeliveryProcessed:
		return "processed"
	case entity.WebhookDeliveryRejected:
		return "rejected"
	}
	return "ignored"
}
