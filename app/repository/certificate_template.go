package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

var ErrTemplateNotFound = errors.New("certificate template not found")

const templateColumns = `
	id, name, is_active, logo_path, signature_path, primary_color, secondary_color, font_family,
	ngo_name, ngo_pan, ngo_80g_reg, ngo_12a_reg, ngo_address, ngo_phone, ngo_email,
	header_text, footer_text, thank_you_message, created_at, updated_at
`

type CertificateTemplateRepository struct {
	db DBTX
}

func NewCertificateTemplateRepository(db DBTX) *CertificateTemplateRepository {
	return &CertificateTemplateRepository{db: db}
}

// GetActive returns the most recently created active template, or nil when none exists.
func (r *CertificateTemplateRepository) GetActive(ctx context.Context) (*entity.CertificateTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM certificate_templates WHERE is_active = 1 ORDER BY id DESC LIMIT 1`

	tpl := &entity.CertificateTemplate{}
	if err := scanCertificateTemplate(r.db.QueryRowContext(ctx, query), tpl); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return tpl, nil
}

func (r *CertificateTemplateRepository) Create(ctx context.Context, tpl *entity.CertificateTemplate) error {
	query := `
		INSERT INTO certificate_templates (
			name, is_active, logo_path, signature_path, primary_color, secondary_color, font_family,
			ngo_name, ngo_pan, ngo_80g_reg, ngo_12a_reg, ngo_address, ngo_phone, ngo_email,
			header_text, footer_text, thank_you_message, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, append([]interface{}{tpl.Name, tpl.IsActive}, templateValues(tpl)...)...)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tpl.ID = uint64(id)
	return nil
}

func (r *CertificateTemplateRepository) Update(ctx context.Context, tpl *entity.CertificateTemplate) error {
	query := `
		UPDATE certificate_templates SET
			name = ?,
			is_active = ?,
			logo_path = ?,
			signature_path = ?,
			primary_color = ?,
			secondary_color = ?,
			font_family = ?,
			ngo_name = ?,
			ngo_pan = ?,
			ngo_80g_reg = ?,
			ngo_12a_reg = ?,
			ngo_address = ?,
			ngo_phone = ?,
			ngo_email = ?,
			header_text = ?,
			footer_text = ?,
			thank_you_message = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	args := append([]interface{}{tpl.Name, tpl.IsActive}, templateValues(tpl)...)
	args = append(args, tpl.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func templateValues(tpl *entity.CertificateTemplate) []interface{} {
	return []interface{}{
		nullableStringValue(tpl.LogoPath),
		nullableStringValue(tpl.SignaturePath),
		tpl.PrimaryColor,
		tpl.SecondaryColor,
		tpl.FontFamily,
		nullableStringValue(tpl.NGOName),
		nullableStringValue(tpl.NGOPAN),
		nullableStringValue(tpl.NGO80GReg),
		nullableStringValue(tpl.NGO12AReg),
		nullableStringValue(tpl.NGOAddress),
		nullableStringValue(tpl.NGOPhone),
		nullableStringValue(tpl.NGOEmail),
		tpl.HeaderText,
		tpl.FooterText,
		tpl.ThankYouMessage,
		tpl.CreatedAt,
		tpl.UpdatedAt,
	}
}

func scanCertificateTemplate(row rowScanner, tpl *entity.CertificateTemplate) error {
	var logo, signature, name, pan, reg80G, reg12A, address, phone, email sql.NullString

	err := row.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.IsActive,
		&logo,
		&signature,
		&tpl.PrimaryColor,
		&tpl.SecondaryColor,
		&tpl.FontFamily,
		&name,
		&pan,
		&reg80G,
		&reg12A,
		&address,
		&phone,
		&email,
		&tpl.HeaderText,
		&tpl.FooterText,
		&tpl.ThankYouMessage,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return err
	}

	tpl.LogoPath = stringPtrFromNull(logo)
	tpl.SignaturePath = stringPtrFromNull(signature)
	tpl.NGOName = stringPtrFromNull(name)
	tpl.NGOPAN = stringPtrFromNull(pan)
	tpl.NGO80GReg = stringPtrFromNull(reg80G)
	tpl.NGO12AReg = stringPtrFromNull(reg12A)
	tpl.NGOAddress = stringPtrFromNull(address)
	tpl.NGOPhone = stringPtrFromNull(phone)
	tpl.NGOEmail = stringPtrFromNull(email)
	return nil
}
