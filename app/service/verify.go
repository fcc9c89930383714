package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/provider"
	"github.com/vibast-solutions/ms-go-donations/app/repository"
)

type verifyDonationRequest interface {
	GetDonationId() uint64
	GetOrderId() string
	GetPaymentId() string
	GetSignature() string
	GetGateway() string
}

type VerifyResult struct {
	Donation         *entity.Donation
	Transaction      *entity.PaymentTransaction
	AlreadyProcessed bool
}

// successInput carries what a confirmed payment contributes to the
// transition. Payment may be nil, in which case it is fetched best effort.
type successInput struct {
	paymentID      string
	signature      *string
	payment        map[string]interface{}
	source         string
	gatewayEventID *string
	payload        *string
	reportedAmount *decimal.Decimal
}

// VerifyDonation confirms a client-reported payment. A failed check leaves
// the donation pending so the donor can retry.
func (s *DonationService) VerifyDonation(ctx context.Context, req verifyDonationRequest) (*VerifyResult, error) {
	donation, err := s.GetDonation(ctx, req.GetDonationId())
	if err != nil {
		return nil, err
	}

	gateway := strings.ToLower(strings.TrimSpace(req.GetGateway()))
	if gateway != "" && gateway != donation.Gateway {
		return nil, fmt.Errorf("%w: gateway does not match donation", ErrValidation)
	}

	switch donation.Status {
	case entity.DonationStatusSuccess:
		return s.alreadyProcessed(ctx, donation)
	case entity.DonationStatusPending:
	default:
		return nil, ErrInvalidStatus
	}

	if donation.GatewayOrderID == nil {
		return nil, fmt.Errorf("%w: donation has no gateway order", ErrInvalidStatus)
	}
	orderID := strings.TrimSpace(req.GetOrderId())
	if orderID != *donation.GatewayOrderID && (donation.SubscriptionID == nil || orderID != *donation.SubscriptionID) {
		return nil, fmt.Errorf("%w: order id does not match donation", ErrValidation)
	}

	p, err := s.providerFor(donation.Gateway)
	if err != nil {
		return nil, err
	}

	in := successInput{
		paymentID: strings.TrimSpace(req.GetPaymentId()),
		source:    entity.EventSourceVerify,
	}
	signature := strings.TrimSpace(req.GetSignature())
	signer, canSign := p.(provider.PaymentSigner)

	if canSign && signature != "" {
		ref := provider.PaymentReference{OrderID: *donation.GatewayOrderID, PaymentID: in.paymentID}
		if donation.SubscriptionID != nil {
			ref.SubscriptionID = *donation.SubscriptionID
		}
		if !signer.VerifyPaymentSignature(ref, signature) {
			s.logger.WithField("donation_id", donation.ID).Warn("payment signature rejected")
			return nil, ErrSignatureInvalid
		}
		in.signature = &signature
	} else {
		status, err := p.GetOrderStatus(ctx, *donation.GatewayOrderID)
		if err != nil {
			s.metrics.GatewayError(donation.Gateway, "order_status")
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		// A paid order without a captured payment is not trusted with the
		// client's payment id.
		if !status.Paid || status.PaymentID == "" {
			return nil, ErrPaymentNotCompleted
		}
		in.paymentID = status.PaymentID
		in.payment = status.Payment
	}

	if in.paymentID == "" {
		return nil, ErrPaymentNotCompleted
	}
	return s.applySuccess(ctx, p, donation, in)
}

// applySuccess runs the pending->success transition. The conditional update
// is the only barrier, so a caller that loses the race reports the winner's
// result without creating another transaction row or certificate dispatch.
func (s *DonationService) applySuccess(ctx context.Context, p provider.Provider, donation *entity.Donation, in successInput) (*VerifyResult, error) {
	now := time.Now().UTC()
	won, err := s.donationRepo.MarkSucceeded(ctx, donation.ID, in.paymentID, in.signature, now)
	if err != nil {
		return nil, err
	}
	if !won {
		current, err := s.GetDonation(ctx, donation.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != entity.DonationStatusSuccess {
			return nil, ErrInvalidStatus
		}
		return s.alreadyProcessed(ctx, current)
	}

	oldStatus := donation.Status
	donation.Status = entity.DonationStatusSuccess
	donation.GatewayPaymentID = &in.paymentID
	donation.GatewaySignature = in.signature
	donation.CertificateStatus = entity.CertificateDeliveryPending
	donation.UpdatedAt = now

	payment := in.payment
	if payment == nil {
		orderID := ""
		if donation.GatewayOrderID != nil {
			orderID = *donation.GatewayOrderID
		}
		payment = p.FetchPayment(ctx, orderID, in.paymentID)
	}

	txn := s.newTransaction(donation, entity.TransactionStatusCaptured, now)
	txn.GatewayPaymentID = &in.paymentID
	txn.GatewaySignature = in.signature
	txn.CapturedAt = &now
	ReconcileFees(payment, donation.Amount, donation.Currency).applyTo(txn)

	if in.reportedAmount != nil && !in.reportedAmount.Equal(donation.Amount) {
		txn.NeedsReview = true
		s.metrics.AmountMismatch(donation.Gateway)
		s.logger.WithFields(logrus.Fields{
			"donation_id": donation.ID,
			"expected":    donation.Amount.StringFixed(2),
			"reported":    in.reportedAmount.StringFixed(2),
		}).Warn("webhook amount does not match donation")
	}

	txnErr := s.txnRepo.Create(ctx, txn)
	if errors.Is(txnErr, repository.ErrTransactionExists) {
		// A concurrent redelivery backfilled the same row.
		txnErr = nil
	}
	if txnErr != nil {
		s.logger.WithError(txnErr).WithField("donation_id", donation.ID).Error("failed to record payment transaction")
	}

	// The transition has committed, so its side effects run even when the
	// row is missing. A later webhook for the same payment backfills it.
	s.recordEvent(ctx, donation.ID, "donation_succeeded", in.source, &oldStatus, donation.Status, in.gatewayEventID, in.payload)
	s.metrics.DonationTransition(donation.Gateway, donation.Status, in.source)
	s.publisher.DonationSucceeded(ctx, donation)
	s.trigger.Enqueue(donation.ID)

	if txnErr != nil {
		return nil, fmt.Errorf("record payment transaction: %w", txnErr)
	}
	return &VerifyResult{Donation: donation, Transaction: txn}, nil
}

func (s *DonationService) alreadyProcessed(ctx context.Context, donation *entity.Donation) (*VerifyResult, error) {
	result := &VerifyResult{Donation: donation, AlreadyProcessed: true}
	s.logger.WithField("donation_id", donation.ID).WithError(ErrAlreadyProcessed).Debug("verify on settled donation")

	txns, err := s.txnRepo.ListByDonation(ctx, donation.ID)
	if err != nil {
		s.logger.WithError(err).WithField("donation_id", donation.ID).Warn("list transactions for settled donation failed")
		return result, nil
	}
	for _, txn := range txns {
		if txn.Status == entity.TransactionStatusCaptured {
			result.Transaction = txn
			break
		}
	}
	return result, nil
}

func (s *DonationService) newTransaction(donation *entity.Donation, status string, now time.Time) *entity.PaymentTransaction {
	return &entity.PaymentTransaction{
		DonationID:     donation.ID,
		Gateway:        donation.Gateway,
		GatewayOrderID: donation.GatewayOrderID,
		SubscriptionID: donation.SubscriptionID,
		GrossAmount:    donation.Amount,
		Currency:       donation.Currency,
		Status:         status,
		InitiatedAt:    now,
	}
}

// IsVerificationError reports whether err should be shown to the donor as a
// failed verification rather than a server fault.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrSignatureInvalid) || errors.Is(err, ErrPaymentNotCompleted)
}
