package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
)

// RefundDonation refunds the full amount through the gateway and moves the
// donation from success to refunded.
func (s *DonationService) RefundDonation(ctx context.Context, id uint64) (*entity.Donation, error) {
	donation, err := s.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(donation.Status, entity.DonationStatusRefunded) {
		return nil, ErrInvalidStatus
	}

	p, err := s.providerFor(donation.Gateway)
	if err != nil {
		return nil, err
	}

	input := &provider.RefundInput{
		RefundID: uuid.NewString(),
		Amount:   donation.Amount,
	}
	if donation.GatewayOrderID != nil {
		input.OrderID = *donation.GatewayOrderID
	}
	if donation.GatewayPaymentID != nil {
		input.PaymentID = *donation.GatewayPaymentID
	}

	out, err := p.Refund(ctx, input)
	if err != nil {
		s.metrics.GatewayError(donation.Gateway, "refund")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	now := time.Now().UTC()
	ok, err := s.donationRepo.MarkRefunded(ctx, donation.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidStatus
	}

	oldStatus := donation.Status
	donation.Status = entity.DonationStatusRefunded
	donation.UpdatedAt = now

	txn := s.newTransaction(donation, entity.TransactionStatusRefunded, now)
	txn.GatewayPaymentID = donation.GatewayPaymentID
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		s.logger.WithError(err).WithField("donation_id", donation.ID).Error("failed to record refund transaction")
	}

	refundID := out.RefundID
	s.recordEvent(ctx, donation.ID, "donation_refunded", entity.EventSourceAdmin, &oldStatus, donation.Status, &refundID, nil)
	s.metrics.DonationTransition(donation.Gateway, donation.Status, entity.EventSourceAdmin)
	s.publisher.DonationRefunded(ctx, donation)

	return donation, nil
}
