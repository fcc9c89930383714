package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/service"
	"github.com/vibast-solutions/ms-go-donations/app/types"
)

const maskedPAN = "***"

// DonationToResponse never exposes the donor PAN; a present PAN is masked.
func DonationToResponse(item *entity.Donation) *types.Donation {
	if item == nil {
		return nil
	}

	result := &types.Donation{
		Id:                  item.ID,
		DonorName:           item.Donor.Name,
		DonorEmail:          item.Donor.Email,
		DonorPhone:          item.Donor.Phone,
		DonorCity:           derefString(item.Donor.City),
		DonorState:          derefString(item.Donor.State),
		DonorCountry:        item.Donor.Country,
		OnBehalfOf:          item.Donor.OnBehalfOf,
		Amount:              item.Amount.StringFixed(2),
		Currency:            item.Currency,
		Cause:               item.Cause,
		DonationType:        item.Type,
		Gateway:             item.Gateway,
		Status:              item.Status,
		GatewayOrderId:      derefString(item.GatewayOrderID),
		GatewayPaymentId:    derefString(item.GatewayPaymentID),
		SubscriptionId:      derefString(item.SubscriptionID),
		TransactionId:       derefString(item.GatewayPaymentID),
		CertificateSent:     item.CertificateSent,
		CertificateStatus:   item.CertificateStatus,
		CertificateAttempts: item.CertificateAttempts,
		CertificateSentAt:   formatTime(item.CertificateSentAt),
		CertificateError:    derefString(item.CertificateLastError),
		CreatedAt:           item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.Donor.PAN != nil && *item.Donor.PAN != "" {
		result.DonorPan = maskedPAN
	}
	return result
}

func DonationsToResponse(items []*entity.Donation) []*types.Donation {
	result := make([]*types.Donation, 0, len(items))
	for _, item := range items {
		result = append(result, DonationToResponse(item))
	}
	return result
}

func TransactionToResponse(item *entity.PaymentTransaction) *types.Transaction {
	if item == nil {
		return nil
	}

	return &types.Transaction{
		Id:                    item.ID,
		DonationId:            item.DonationID,
		Gateway:               item.Gateway,
		GatewayOrderId:        derefString(item.GatewayOrderID),
		GatewayPaymentId:      derefString(item.GatewayPaymentID),
		SubscriptionId:        derefString(item.SubscriptionID),
		Status:                item.Status,
		GrossAmount:           item.GrossAmount.StringFixed(2),
		GatewayFee:            formatDecimal(item.GatewayFee),
		GatewayTax:            formatDecimal(item.GatewayTax),
		GatewayTotalDeduction: formatDecimal(item.GatewayTotalDeduction),
		NetReceivable:         formatDecimal(item.NetReceivable),
		Currency:              item.Currency,
		PaymentMethod:         derefString(item.PaymentMethod),
		Bank:                  derefString(item.Bank),
		CardNetwork:           derefString(item.CardNetwork),
		CardLast4:             derefString(item.CardLast4),
		UpiVpa:                derefString(item.UPIVPA),
		Wallet:                derefString(item.Wallet),
		International:         item.International,
		ErrorCode:             derefString(item.ErrorCode),
		ErrorDescription:      derefString(item.ErrorDescription),
		NeedsReview:           item.NeedsReview,
		InitiatedAt:           item.InitiatedAt.UTC().Format(time.RFC3339),
		CapturedAt:            formatTime(item.CapturedAt),
		FailedAt:              formatTime(item.FailedAt),
	}
}

func TransactionsToResponse(items []*entity.PaymentTransaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToResponse(item))
	}
	return result
}

func CreateOrderToResponse(result *service.CreateOrderResult) *types.CreateOrderResponse {
	if result == nil || result.Donation == nil {
		return nil
	}

	resp := &types.CreateOrderResponse{
		DonationId:       result.Donation.ID,
		SubscriptionId:   derefString(result.SubscriptionID),
		ShortUrl:         derefString(result.ShortURL),
		PaymentSessionId: derefString(result.PaymentSessionID),
		KeyId:            derefString(result.KeyID),
		Amount:           result.Donation.Amount.StringFixed(2),
		Currency:         result.Donation.Currency,
		Gateway:          result.Donation.Gateway,
	}
	if resp.SubscriptionId == "" {
		resp.OrderId = result.OrderID
	}
	return resp
}

func VerifyToResponse(result *service.VerifyResult) *types.VerifyDonationResponse {
	if result == nil || result.Donation == nil {
		return nil
	}

	resp := &types.VerifyDonationResponse{
		Success:       true,
		Message:       "Payment verified",
		DonationId:    result.Donation.ID,
		TransactionId: result.Donation.TransactionReference(),
		GrossAmount:   result.Donation.Amount.StringFixed(2),
		Certificate:   "will be emailed shortly",
	}
	if result.AlreadyProcessed {
		resp.Message = "Already verified"
		if result.Donation.CertificateSent {
			resp.Certificate = "sent"
		}
	}
	if txn := result.Transaction; txn != nil {
		resp.GatewayFee = formatDecimal(txn.GatewayFee)
		resp.GatewayTax = formatDecimal(txn.GatewayTax)
		resp.NetReceivable = formatDecimal(txn.NetReceivable)
	}
	return resp
}

func WebhookToResponse(result *service.WebhookResult) *types.WebhookResponse {
	resp := &types.WebhookResponse{Status: "ok", Result: "ignored"}
	if result == nil {
		return resp
	}
	if result.Status == entity.WebhookDeliveryProcessed {
		resp.Result = "processed"
	}
	resp.Duplicate = result.Duplicate
	return resp
}

func TemplateToResponse(item *entity.CertificateTemplate) *types.CertificateTemplate {
	if item == nil {
		return nil
	}

	return &types.CertificateTemplate{
		Id:              item.ID,
		Name:            item.Name,
		IsActive:        item.IsActive,
		LogoPath:        derefString(item.LogoPath),
		SignaturePath:   derefString(item.SignaturePath),
		PrimaryColor:    item.PrimaryColor,
		SecondaryColor:  item.SecondaryColor,
		FontFamily:      item.FontFamily,
		NGOName:         derefString(item.NGOName),
		NGOPan:          derefString(item.NGOPAN),
		NGO80GReg:       derefString(item.NGO80GReg),
		NGO12AReg:       derefString(item.NGO12AReg),
		NGOAddress:      derefString(item.NGOAddress),
		NGOPhone:        derefString(item.NGOPhone),
		NGOEmail:        derefString(item.NGOEmail),
		HeaderText:      item.HeaderText,
		FooterText:      item.FooterText,
		ThankYouMessage: item.ThankYouMessage,
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func TemplateUpdateFromRequest(req *types.UpdateTemplateRequest) entity.TemplateUpdate {
	if req == nil {
		return entity.TemplateUpdate{}
	}

	return entity.TemplateUpdate{
		Name:            req.Name,
		LogoPath:        req.LogoPath,
		SignaturePath:   req.SignaturePath,
		PrimaryColor:    req.PrimaryColor,
		SecondaryColor:  req.SecondaryColor,
		FontFamily:      req.FontFamily,
		NGOName:         req.NGOName,
		NGOPAN:          req.NGOPan,
		NGO80GReg:       req.NGO80GReg,
		NGO12AReg:       req.NGO12AReg,
		NGOAddress:      req.NGOAddress,
		NGOPhone:        req.NGOPhone,
		NGOEmail:        req.NGOEmail,
		HeaderText:      req.HeaderText,
		FooterText:      req.FooterText,
		ThankYouMessage: req.ThankYouMessage,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatDecimal(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
