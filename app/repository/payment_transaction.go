package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

// ErrTransactionExists is returned when the same payment already has a row
// with the same status for the donation.
var ErrTransactionExists = errors.New("payment transaction already recorded")

type PaymentTransactionRepository struct {
	db DBTX
}

func NewPaymentTransactionRepository(db DBTX) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

func (r *PaymentTransactionRepository) Create(ctx context.Context, txn *entity.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (
			donation_id, gateway, gateway_order_id, gateway_payment_id, gateway_signature, subscription_id,
			gross_amount, gateway_fee, gateway_tax, gateway_total_deduction, net_receivable, currency,
			status, payment_method, bank, card_network, card_last4, upi_vpa, wallet, international,
			error_code, error_description, error_source, error_step, error_reason,
			needs_review, raw_response, initiated_at, captured_at, failed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		txn.DonationID,
		txn.Gateway,
		nullableStringValue(txn.GatewayOrderID),
		nullableStringValue(txn.GatewayPaymentID),
		nullableStringValue(txn.GatewaySignature),
		nullableStringValue(txn.SubscriptionID),
		txn.GrossAmount.StringFixed(2),
		nullableDecimalValue(txn.GatewayFee),
		nullableDecimalValue(txn.GatewayTax),
		nullableDecimalValue(txn.GatewayTotalDeduction),
		nullableDecimalValue(txn.NetReceivable),
		txn.Currency,
		txn.Status,
		nullableStringValue(txn.PaymentMethod),
		nullableStringValue(txn.Bank),
		nullableStringValue(txn.CardNetwork),
		nullableStringValue(txn.CardLast4),
		nullableStringValue(txn.UPIVPA),
		nullableStringValue(txn.Wallet),
		txn.International,
		nullableStringValue(txn.ErrorCode),
		nullableStringValue(txn.ErrorDescription),
		nullableStringValue(txn.ErrorSource),
		nullableStringValue(txn.ErrorStep),
		nullableStringValue(txn.ErrorReason),
		txn.NeedsReview,
		nullableStringValue(txn.RawResponse),
		txn.InitiatedAt,
		nullableTimeValue(txn.CapturedAt),
		nullableTimeValue(txn.FailedAt),
	)
	if isDuplicateEntryError(err) {
		return ErrTransactionExists
	}
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)

	return nil
}

func (r *PaymentTransactionRepository) ListByDonation(ctx context.Context, donationID uint64) ([]*entity.PaymentTransaction, error) {
	query := `
		SELECT
			id, donation_id, gateway, gateway_order_id, gateway_payment_id, gateway_signature, subscription_id,
			gross_amount, gateway_fee, gateway_tax, gateway_total_deduction, net_receivable, currency,
			status, payment_method, bank, card_network, card_last4, upi_vpa, wallet, international,
			error_code, error_description, error_source, error_step, error_reason,
			needs_review, raw_response, initiated_at, captured_at, failed_at
		FROM payment_transactions
		WHERE donation_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, donationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]*entity.PaymentTransaction, 0)
	for rows.Next() {
		txn := &entity.PaymentTransaction{}
		if err := scanPaymentTransaction(rows, txn); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

func scanPaymentTransaction(row rowScanner, txn *entity.PaymentTransaction) error {
	var (
		orderID, paymentID, signature, subscriptionID sql.NullString
		fee, tax, total, net                          decimal.NullDecimal
		method, bank, network, last4, vpa, wallet     sql.NullString
		code, description, source, step, reason       sql.NullString
		raw                                           sql.NullString
		capturedAt, failedAt                          sql.NullTime
	)

	err := row.Scan(
		&txn.ID,
		&txn.DonationID,
		&txn.Gateway,
		&orderID,
		&paymentID,
		&signature,
		&subscriptionID,
		&txn.GrossAmount,
		&fee,
		&tax,
		&total,
		&net,
		&txn.Currency,
		&txn.Status,
		&method,
		&bank,
		&network,
		&last4,
		&vpa,
		&wallet,
		&txn.International,
		&code,
		&description,
		&source,
		&step,
		&reason,
		&txn.NeedsReview,
		&raw,
		&txn.InitiatedAt,
		&capturedAt,
		&failedAt,
	)
	if err != nil {
		return err
	}

	txn.GatewayOrderID = stringPtrFromNull(orderID)
	txn.GatewayPaymentID = stringPtrFromNull(paymentID)
	txn.GatewaySignature = stringPtrFromNull(signature)
	txn.SubscriptionID = stringPtrFromNull(subscriptionID)
	txn.GatewayFee = decimalPtrFromNull(fee)
	txn.GatewayTax = decimalPtrFromNull(tax)
	txn.GatewayTotalDeduction = decimalPtrFromNull(total)
	txn.NetReceivable = decimalPtrFromNull(net)
	txn.PaymentMethod = stringPtrFromNull(method)
	txn.Bank = stringPtrFromNull(bank)
	txn.CardNetwork = stringPtrFromNull(network)
	txn.CardLast4 = stringPtrFromNull(last4)
	txn.UPIVPA = stringPtrFromNull(vpa)
	txn.Wallet = stringPtrFromNull(wallet)
	txn.ErrorCode = stringPtrFromNull(code)
	txn.ErrorDescription = stringPtrFromNull(description)
	txn.ErrorSource = stringPtrFromNull(source)
	txn.ErrorStep = stringPtrFromNull(step)
	txn.ErrorReason = stringPtrFromNull(reason)
	txn.RawResponse = stringPtrFromNull(raw)
	txn.CapturedAt = timePtrFromNull(capturedAt)
	txn.FailedAt = timePtrFromNull(failedAt)

	return nil
}
