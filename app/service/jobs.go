package service

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

// RunReconcileBatch polls the gateway for stale pending one-time donations
// and applies the success transition for orders reported paid.
func (s *DonationService) RunReconcileBatch(ctx context.Context) error {
	before := time.Now().UTC().Add(-s.cfg.ReconcileStaleAfter)
	items, err := s.donationRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil || donation.GatewayOrderID == nil {
			continue
		}
		if _, err := s.settleFromGateway(ctx, donation, entity.EventSourceReconcile); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpirePendingBatch fails donations pending past the timeout. A final
// poll of the order or subscription runs first so a late payment is still
// recorded as success.
func (s *DonationService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.donationRepo.ListExpiredPending(ctx, now.Add(-s.cfg.PendingTimeout), s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, donation := range items {
		if donation == nil || donation.Status != entity.DonationStatusPending {
			continue
		}

		if donation.GatewayOrderID != nil {
			paid, err := s.settleFromGateway(ctx, donation, entity.EventSourceExpire)
			if err != nil {
				firstErr = keepFirstErr(firstErr, err)
				continue
			}
			if paid {
				continue
			}
		}

		ok, err := s.donationRepo.MarkFailed(ctx, donation.ID, now)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !ok {
			continue
		}

		oldStatus := donation.Status
		s.recordEvent(ctx, donation.ID, "donation_failed", entity.EventSourceExpire, &oldStatus, entity.DonationStatusFailed, nil, nil)
		s.metrics.DonationTransition(donation.Gateway, entity.DonationStatusFailed, entity.EventSourceExpire)
	}

	return firstErr
}

// settleFromGateway reports whether the gateway considers the donation paid.
// The success transition is applied only once a captured payment is known;
// a paid subscription without one stays pending for its webhook.
func (s *DonationService) settleFromGateway(ctx context.Context, donation *entity.Donation, source string) (bool, error) {
	p, err := s.providerFor(donation.Gateway)
	if err != nil {
		return false, err
	}

	reference := *donation.GatewayOrderID
	if donation.SubscriptionID != nil {
		reference = *donation.SubscriptionID
	}
	status, err := p.GetOrderStatus(ctx, reference)
	if err != nil {
		s.metrics.GatewayError(donation.Gateway, "order_status")
		return false, err
	}
	if !status.Paid {
		return false, nil
	}
	if status.PaymentID == "" {
		s.logger.WithField("donation_id", donation.ID).Info("gateway reports paid without a captured payment")
		return true, nil
	}

	_, err = s.applySuccess(ctx, p, donation, successInput{
		paymentID: status.PaymentID,
		payment:   status.Payment,
		source:    source,
	})
	if errors.Is(err, ErrInvalidStatus) {
		return true, nil
	}
	return err == nil, err
}

func (s *DonationService) batchSize() int32 {
	if s.cfg.JobBatchSize > 0 {
		return s.cfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current error, next error) error {
	if current != nil {
		return current
	}
	return next
}
