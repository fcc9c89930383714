package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-donations/app/mapper"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	donationService *service.DonationService
	issuer          *service.CertificateIssuer
}

func NewServer(donationService *service.DonationService, issuer *service.CertificateIssuer) *Server {
	return &Server{donationService: donationService, issuer: issuer}
}

func (s *Server) Health(_ context.Context, _ *types.HealthRequest) (*types.HealthResponse, error) {
	return &types.HealthResponse{Status: "ok"}, nil
}

func (s *Server) GetDonation(ctx context.Context, req *types.DonationIDRequest) (*types.DonationEnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	donation, err := s.donationService.GetDonation(ctx, req.GetId())
	if err != nil {
		return nil, grpcError(ctx, err, "Get donation")
	}
	txns, err := s.donationService.ListTransactions(ctx, donation.ID)
	if err != nil {
		return nil, grpcError(ctx, err, "List transactions")
	}

	return &types.DonationEnvelopeResponse{
		Donation:     mapper.DonationToResponse(donation),
		Transactions: mapper.TransactionsToResponse(txns),
	}, nil
}

func (s *Server) ListDonations(ctx context.Context, req *types.ListDonationsRequest) (*types.ListDonationsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	list, err := s.donationService.ListDonations(ctx, req)
	if err != nil {
		return nil, grpcError(ctx, err, "List donations")
	}

	return &types.ListDonationsResponse{
		Total:     list.Total,
		Page:      req.GetPage(),
		Limit:     req.GetLimit(),
		Donations: mapper.DonationsToResponse(list.Items),
	}, nil
}

func (s *Server) VerifyDonation(ctx context.Context, req *types.VerifyDonationRequest) (*types.VerifyDonationResponse, error) {
	l := loggerWithContext(ctx)
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Verify donation validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.donationService.VerifyDonation(ctx, req)
	if err != nil {
		return nil, grpcError(ctx, err, "Verify donation")
	}

	return mapper.VerifyToResponse(result), nil
}

func (s *Server) ResendCertificate(ctx context.Context, req *types.DonationIDRequest) (*types.ResendCertificateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sent, err := s.issuer.Resend(ctx, req.GetId())
	if err != nil {
		return nil, grpcError(ctx, err, "Resend certificate")
	}

	resp := &types.ResendCertificateResponse{Success: sent, Message: "Certificate resent"}
	if !sent {
		resp.Message = "Failed to send"
	}
	return resp, nil
}

func grpcError(ctx context.Context, err error, action string) error {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrSignatureInvalid),
		errors.Is(err, service.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrGatewayUnsupported):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrDonationNotFound):
		return status.Error(codes.NotFound, "donation not found")
	case errors.Is(err, service.ErrInvalidStatus):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrGateway):
		loggerWithContext(ctx).WithError(err).Warn(action + " gateway failure")
		return status.Error(codes.Unavailable, "payment gateway unavailable")
	default:
		loggerWithContext(ctx).WithError(err).Error(action + " failed")
		return status.Error(codes.Internal, "internal server error")
	}
}
