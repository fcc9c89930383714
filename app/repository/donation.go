package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var (
	ErrDonationNotFound = errors.New("donation not found")
	ErrOrderAttached    = errors.New("donation already has an order attached")
)

const donationColumns = `
	id, donor_name, donor_email, donor_phone, donor_pan, donor_father_name,
	donor_address, donor_city, donor_state, donor_pincode, donor_country, on_behalf_of,
	amount, currency, cause, donation_type, gateway, status,
	gateway_order_id, gateway_payment_id, gateway_signature, subscription_id,
	certificate_sent, certificate_sent_at, certificate_path,
	certificate_status, certificate_attempts, certificate_next_at, certificate_last_error,
	created_at, updated_at
`

type DonationFilter struct {
	Status     string
	Gateway    string
	DonorEmail string
	Limit      int32
	Offset     int32
}

type DonationRepository struct {
	db DBTX
}

func NewDonationRepository(db DBTX) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, donation *entity.Donation) error {
	query := `
		INSERT INTO donations (
			donor_name, donor_email, donor_phone, donor_pan, donor_father_name,
			donor_address, donor_city, donor_state, donor_pincode, donor_country, on_behalf_of,
			amount, currency, cause, donation_type, gateway, status,
			certificate_sent, certificate_status, certificate_attempts,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.Donor.Name,
		donation.Donor.Email,
		donation.Donor.Phone,
		nullableStringValue(donation.Donor.PAN),
		nullableStringValue(donation.Donor.FatherName),
		nullableStringValue(donation.Donor.Address),
		nullableStringValue(donation.Donor.City),
		nullableStringValue(donation.Donor.State),
		nullableStringValue(donation.Donor.Pincode),
		donation.Donor.Country,
		donation.Donor.OnBehalfOf,
		donation.Amount.StringFixed(2),
		donation.Currency,
		donation.Cause,
		donation.Type,
		donation.Gateway,
		donation.Status,
		false,
		entity.CertificateDeliveryNone,
		0,
		donation.CreatedAt,
		donation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	donation.ID = uint64(id)
	donation.CertificateStatus = entity.CertificateDeliveryNone
	return nil
}

func (r *DonationRepository) FindByID(ctx context.Context, id uint64) (*entity.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = ?`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, id), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return donation, nil
}

// FindByOrderOrSubscriptionID resolves a gateway reference. Monthly charges
// report the subscription id rather than a one-time order id.
func (r *DonationRepository) FindByOrderOrSubscriptionID(ctx context.Context, reference string) (*entity.Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE gateway_order_id = ? OR subscription_id = ?
		ORDER BY id ASC
		LIMIT 1
	`

	donation := &entity.Donation{}
	if err := scanDonation(r.db.QueryRowContext(ctx, query, reference, reference), donation); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return donation, nil
}

func (r *DonationRepository) AttachOrder(ctx context.Context, id uint64, orderID string, subscriptionID *string, now time.Time) error {
	query := `
		UPDATE donations SET
			gateway_order_id = ?,
			subscription_id = ?,
			updated_at = ?
		WHERE id = ? AND status = ? AND gateway_order_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, orderID, nullableStringValue(subscriptionID), now, id, entity.DonationStatusPending)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAttached
		}
		return err
	}

	ok, err := rowsAffectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderAttached
	}
	return nil
}

// MarkSucceeded is the idempotency barrier for the success transition. It
// returns false when the donation was no longer pending.
func (r *DonationRepository) MarkSucceeded(ctx context.Context, id uint64, paymentID string, signature *string, now time.Time) (bool, error) {
	query := `
		UPDATE donations SET
			status = ?,
			gateway_payment_id = ?,
			gateway_signature = ?,
			certificate_status = ?,
			certificate_attempts = 0,
			certificate_next_at = ?,
			certificate_last_error = NULL,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.DonationStatusSuccess,
		paymentID,
		nullableStringValue(signature),
		entity.CertificateDeliveryPending,
		now,
		now,
		id,
		entity.DonationStatusPending,
	)
	if err != nil {
		return false, err
	}
	return rowsAffectedOne(result)
}

func (r *DonationRepository) MarkFailed(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.transition(ctx, id, entity.DonationStatusPending, entity.DonationStatusFailed, now)
}

func (r *DonationRepository) MarkRefunded(ctx context.Context, id uint64, now time.Time) (bool, error) {
	return r.transition(ctx, id, entity.DonationStatusSuccess, entity.DonationStatusRefunded, now)
}

func (r *DonationRepository) transition(ctx context.Context, id uint64, from, to string, now time.Time) (bool, error) {
	if !entity.CanTransition(from, to) {
		return false, nil
	}

	query := `UPDATE donations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, query, to, now, id, from)
	if err != nil {
		return false, err
	}
	return rowsAffectedOne(result)
}

// ClaimCertificateDelivery leases a due delivery so only one worker sends it.
func (r *DonationRepository) ClaimCertificateDelivery(ctx context.Context, id uint64, now time.Time, leaseUntil time.Time) (bool, error) {
	query := `
		UPDATE donations SET
			certificate_next_at = ?,
			updated_at = ?
		WHERE id = ?
		  AND status = ?
		  AND certificate_status = ?
		  AND certificate_next_at IS NOT NULL
		  AND certificate_next_at <= ?
	`

	result, err := r.db.ExecContext(ctx, query,
		leaseUntil,
		now,
		id,
		entity.DonationStatusSuccess,
		entity.CertificateDeliveryPending,
		now,
	)
	if err != nil {
		return false, err
	}
	return rowsAffectedOne(result)
}

func (r *DonationRepository) UpdateCertificateDelivery(ctx context.Context, donation *entity.Donation) error {
	query := `
		UPDATE donations SET
			certificate_sent = ?,
			certificate_sent_at = ?,
			certificate_path = ?,
			certificate_status = ?,
			certificate_attempts = ?,
			certificate_next_at = ?,
			certificate_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		donation.CertificateSent,
		nullableTimeValue(donation.CertificateSentAt),
		nullableStringValue(donation.CertificatePath),
		donation.CertificateStatus,
		donation.CertificateAttempts,
		nullableTimeValue(donation.CertificateNextAt),
		nullableStringValue(donation.CertificateLastError),
		donation.UpdatedAt,
		donation.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDonationNotFound
	}
	return nil
}

func (r *DonationRepository) List(ctx context.Context, filter DonationFilter) ([]*entity.Donation, error) {
	where, args := filter.conditions()
	query := `SELECT ` + donationColumns + ` FROM donations` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	return r.query(ctx, query, args...)
}

func (r *DonationRepository) Count(ctx context.Context, filter DonationFilter) (int64, error) {
	where, args := filter.conditions()
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *DonationRepository) ListDueCertificateDelivery(ctx context.Context, now time.Time, limit int32) ([]*entity.Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE status = ?
		  AND certificate_status = ?
		  AND certificate_next_at IS NOT NULL
		  AND certificate_next_at <= ?
		ORDER BY certificate_next_at ASC
		LIMIT ?
	`
	return r.query(ctx, query, entity.DonationStatusSuccess, entity.CertificateDeliveryPending, now, limit)
}

// ListForReconcile returns one-time donations still pending with an order
// attached. Subscriptions are settled by webhooks only.
func (r *DonationRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE status = ?
		  AND gateway_order_id IS NOT NULL
		  AND subscription_id IS NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.query(ctx, query, entity.DonationStatusPending, before, limit)
}

func (r *DonationRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return r.query(ctx, query, entity.DonationStatusPending, cutoff, limit)
}

func (r *DonationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Donation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donations := make([]*entity.Donation, 0)
	for rows.Next() {
		item := &entity.Donation{}
		if err := scanDonation(rows, item); err != nil {
			return nil, err
		}
		donations = append(donations, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return donations, nil
}

func (f DonationFilter) conditions() (string, []interface{}) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if s := strings.TrimSpace(f.Status); s != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, s)
	}
	if s := strings.TrimSpace(f.Gateway); s != "" {
		conditions = append(conditions, "gateway = ?")
		args = append(args, s)
	}
	if s := strings.TrimSpace(f.DonorEmail); s != "" {
		conditions = append(conditions, "donor_email = ?")
		args = append(args, s)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanDonation(row rowScanner, donation *entity.Donation) error {
	var (
		pan            sql.NullString
		fatherName     sql.NullString
		address        sql.NullString
		city           sql.NullString
		state          sql.NullString
		pincode        sql.NullString
		orderID        sql.NullString
		paymentID      sql.NullString
		signature      sql.NullString
		subscriptionID sql.NullString
		sentAt         sql.NullTime
		certPath       sql.NullString
		nextAt         sql.NullTime
		lastErr        sql.NullString
		amount         decimal.Decimal
	)

	err := row.Scan(
		&donation.ID,
		&donation.Donor.Name,
		&donation.Donor.Email,
		&donation.Donor.Phone,
		&pan,
		&fatherName,
		&address,
		&city,
		&state,
		&pincode,
		&donation.Donor.Country,
		&donation.Donor.OnBehalfOf,
		&amount,
		&donation.Currency,
		&donation.Cause,
		&donation.Type,
		&donation.Gateway,
		&donation.Status,
		&orderID,
		&paymentID,
		&signature,
		&subscriptionID,
		&donation.CertificateSent,
		&sentAt,
		&certPath,
		&donation.CertificateStatus,
		&donation.CertificateAttempts,
		&nextAt,
		&lastErr,
		&donation.CreatedAt,
		&donation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	donation.Amount = amount
	donation.Donor.PAN = stringPtrFromNull(pan)
	donation.Donor.FatherName = stringPtrFromNull(fatherName)
	donation.Donor.Address = stringPtrFromNull(address)
	donation.Donor.City = stringPtrFromNull(city)
	donation.Donor.State = stringPtrFromNull(state)
	donation.Donor.Pincode = stringPtrFromNull(pincode)
	donation.GatewayOrderID = stringPtrFromNull(orderID)
	donation.GatewayPaymentID = stringPtrFromNull(paymentID)
	donation.GatewaySignature = stringPtrFromNull(signature)
	donation.SubscriptionID = stringPtrFromNull(subscriptionID)
	donation.CertificateSentAt = timePtrFromNull(sentAt)
	donation.CertificatePath = stringPtrFromNull(certPath)
	donation.CertificateNextAt = timePtrFromNull(nextAt)
	donation.CertificateLastError = stringPtrFromNull(lastErr)

	return nil
}
