package entity

import "time"

const (
	DefaultTemplateName    = "Default Template"
	DefaultPrimaryColor    = "#FF6B00"
	DefaultSecondaryColor  = "#2D6A4F"
	DefaultFontFamily      = "Helvetica"
	DefaultHeaderText      = "DONATION RECEIPT CUM CERTIFICATE"
	DefaultFooterText      = "This donation is eligible for deduction under Section 80G of the Income Tax Act, 1961. The organization is registered under Section 80G of the Income Tax Act."
	DefaultThankYouMessage = "Thank you for your generous contribution towards Gau Seva. Your support helps us rescue and care for cows and Nandis across Assam."
)

type CertificateTemplate struct {
	ID       uint64
	Name     string
	IsActive bool

	LogoPath       *string
	SignaturePath  *string
	PrimaryColor   string
	SecondaryColor string
	FontFamily     string

	NGOName    *string
	NGOPAN     *string
	NGO80GReg  *string
	NGO12AReg  *string
	NGOAddress *string
	NGOPhone   *string
	NGOEmail   *string

	HeaderText      string
	FooterText      string
	ThankYouMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewDefaultCertificateTemplate(now time.Time) *CertificateTemplate {
	return &CertificateTemplate{
		Name:            DefaultTemplateName,
		IsActive:        true,
		PrimaryColor:    DefaultPrimaryColor,
		SecondaryColor:  DefaultSecondaryColor,
		FontFamily:      DefaultFontFamily,
		HeaderText:      DefaultHeaderText,
		FooterText:      DefaultFooterText,
		ThankYouMessage: DefaultThankYouMessage,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TemplateUpdate carries a partial admin edit. Nil fields are left untouched.
type TemplateUpdate struct {
	Name            *string
	LogoPath        *string
	SignaturePath   *string
	PrimaryColor    *string
	SecondaryColor  *string
	FontFamily      *string
	NGOName         *string
	NGOPAN          *string
	NGO80GReg       *string
	NGO12AReg       *string
	NGOAddress      *string
	NGOPhone        *string
	NGOEmail        *string
	HeaderText      *string
	FooterText      *string
	ThankYouMessage *string
}

// Apply merges every non-nil field of u into t and reports whether anything changed.
func (u TemplateUpdate) Apply(t *CertificateTemplate) bool {
	changed := false
	setString := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setOptional := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *dst != nil && **dst == *src {
			return
		}
		v := *src
		*dst = &v
		changed = true
	}

	setString(&t.Name, u.Name)
	setOptional(&t.LogoPath, u.LogoPath)
	setOptional(&t.SignaturePath, u.SignaturePath)
	setString(&t.PrimaryColor, u.PrimaryColor)
	setString(&t.SecondaryColor, u.SecondaryColor)
	setString(&t.FontFamily, u.FontFamily)
	setOptional(&t.NGOName, u.NGOName)
	setOptional(&t.NGOPAN, u.NGOPAN)
	setOptional(&t.NGO80GReg, u.NGO80GReg)
	setOptional(&t.NGO12AReg, u.NGO12AReg)
	setOptional(&t.NGOAddress, u.NGOAddress)
	setOptional(&t.NGOPhone, u.NGOPhone)
	setOptional(&t.NGOEmail, u.NGOEmail)
	setString(&t.HeaderText, u.HeaderText)
	setString(&t.FooterText, u.FooterText)
	setString(&t.ThankYouMessage, u.ThankYouMessage)

	return changed
}
