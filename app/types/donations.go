package types

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-donations/app/astrology"
)

const (
	defaultListLimit = int32(50)
	maxListLimit     = int32(100)
)

type DonorDetails struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email,max=200"`
	Phone      string `json:"phone" validate:"required,max=20"`
	PanNumber  string `json:"pan_number,omitempty" validate:"omitempty,len=10,alphanum"`
	FatherName string `json:"father_name,omitempty" validate:"max=200"`
	Address    string `json:"address,omitempty" validate:"max=500"`
	City       string `json:"city,omitempty" validate:"max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	Pincode    string `json:"pincode,omitempty" validate:"omitempty,max=10,numeric"`
	Country    string `json:"country,omitempty" validate:"max=100"`
	OnBehalfOf bool   `json:"on_behalf_of,omitempty"`
}

type CreateDonationRequest struct {
	Amount       json.Number  `json:"amount" validate:"required"`
	Cause        string       `json:"cause,omitempty" validate:"omitempty,oneof=gausewa medical feed rescue general"`
	DonationType string       `json:"donation_type,omitempty" validate:"omitempty,oneof=one_time monthly"`
	Gateway      string       `json:"gateway,omitempty" validate:"omitempty,oneof=razorpay cashfree"`
	Donor        DonorDetails `json:"donor"`
}

func NewCreateDonationRequestFromContext(ctx echo.Context) (*CreateDonationRequest, error) {
	var body CreateDonationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Amount = json.Number(strings.TrimSpace(body.Amount.String()))
	body.Cause = strings.ToLower(strings.TrimSpace(body.Cause))
	body.DonationType = strings.ToLower(strings.TrimSpace(body.DonationType))
	body.Gateway = strings.ToLower(strings.TrimSpace(body.Gateway))
	body.Donor.Name = strings.TrimSpace(body.Donor.Name)
	body.Donor.Email = strings.ToLower(strings.TrimSpace(body.Donor.Email))
	body.Donor.Phone = strings.TrimSpace(body.Donor.Phone)
	body.Donor.PanNumber = strings.ToUpper(strings.TrimSpace(body.Donor.PanNumber))
	body.Donor.FatherName = strings.TrimSpace(body.Donor.FatherName)
	body.Donor.Address = strings.TrimSpace(body.Donor.Address)
	body.Donor.City = strings.TrimSpace(body.Donor.City)
	body.Donor.State = strings.TrimSpace(body.Donor.State)
	body.Donor.Pincode = strings.TrimSpace(body.Donor.Pincode)
	body.Donor.Country = strings.TrimSpace(body.Donor.Country)

	return &body, nil
}

func (r *CreateDonationRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(r.GetAmount())
	if err != nil {
		return errors.New("amount must be a number")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be > 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return errors.New("amount must have at most two decimal places")
	}
	if r.GetGateway() == "cashfree" && r.GetDonationType() == "monthly" {
		return errors.New("monthly donations are only available via razorpay")
	}
	return nil
}

func (r *CreateDonationRequest) GetAmount() string {
	if r == nil {
		return ""
	}
	return r.Amount.String()
}

func (r *CreateDonationRequest) GetCause() string {
	if r == nil {
		return ""
	}
	return r.Cause
}

func (r *CreateDonationRequest) GetDonationType() string {
	if r == nil {
		return ""
	}
	return r.DonationType
}

func (r *CreateDonationRequest) GetGateway() string {
	if r == nil {
		return ""
	}
	return r.Gateway
}

func (r *CreateDonationRequest) GetName() string {
	if r == nil {
		return ""
	}
	return r.Donor.Name
}

func (r *CreateDonationRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Donor.Email
}

func (r *CreateDonationRequest) GetPhone() string {
	if r == nil {
		return ""
	}
	return r.Donor.Phone
}

func (r *CreateDonationRequest) GetPan() string {
	if r == nil {
		return ""
	}
	return r.Donor.PanNumber
}

func (r *CreateDonationRequest) GetFatherName() string {
	if r == nil {
		return ""
	}
	return r.Donor.FatherName
}

func (r *CreateDonationRequest) GetAddress() string {
	if r == nil {
		return ""
	}
	return r.Donor.Address
}

func (r *CreateDonationRequest) GetCity() string {
	if r == nil {
		return ""
	}
	return r.Donor.City
}

func (r *CreateDonationRequest) GetState() string {
	if r == nil {
		return ""
	}
	return r.Donor.State
}

func (r *CreateDonationRequest) GetPincode() string {
	if r == nil {
		return ""
	}
	return r.Donor.Pincode
}

func (r *CreateDonationRequest) GetCountry() string {
	if r == nil {
		return ""
	}
	return r.Donor.Country
}

func (r *CreateDonationRequest) GetOnBehalfOf() bool {
	if r == nil {
		return false
	}
	return r.Donor.OnBehalfOf
}

type VerifyDonationRequest struct {
	DonationId       uint64 `json:"donation_id" validate:"required"`
	GatewayOrderId   string `json:"gateway_order_id" validate:"required,max=100"`
	GatewayPaymentId string `json:"gateway_payment_id,omitempty" validate:"max=100"`
	GatewaySignature string `json:"gateway_signature,omitempty" validate:"max=256"`
	Gateway          string `json:"gateway,omitempty" validate:"omitempty,oneof=razorpay cashfree"`
}

func NewVerifyDonationRequestFromContext(ctx echo.Context) (*VerifyDonationRequest, error) {
	var body VerifyDonationRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.normalize()
	return &body, nil
}

func (r *VerifyDonationRequest) normalize() {
	r.GatewayOrderId = strings.TrimSpace(r.GatewayOrderId)
	r.GatewayPaymentId = strings.TrimSpace(r.GatewayPaymentId)
	r.GatewaySignature = strings.TrimSpace(r.GatewaySignature)
	r.Gateway = strings.ToLower(strings.TrimSpace(r.Gateway))
}

func (r *VerifyDonationRequest) Validate() error {
	r.normalize()
	return validateStruct(r)
}

func (r *VerifyDonationRequest) GetDonationId() uint64 {
	if r == nil {
		return 0
	}
	return r.DonationId
}

func (r *VerifyDonationRequest) GetOrderId() string {
	if r == nil {
		return ""
	}
	return r.GatewayOrderId
}

func (r *VerifyDonationRequest) GetPaymentId() string {
	if r == nil {
		return ""
	}
	return r.GatewayPaymentId
}

func (r *VerifyDonationRequest) GetSignature() string {
	if r == nil {
		return ""
	}
	return r.GatewaySignature
}

func (r *VerifyDonationRequest) GetGateway() string {
	if r == nil {
		return ""
	}
	return r.Gateway
}

// DonationIDRequest addresses a single donation by path id.
type DonationIDRequest struct {
	Id uint64 `json:"id" validate:"required"`
}

func NewDonationIDRequestFromContext(ctx echo.Context) (*DonationIDRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &DonationIDRequest{Id: id}, nil
}

func (r *DonationIDRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid donation id")
	}
	return nil
}

func (r *DonationIDRequest) GetId() uint64 {
	if r == nil {
		return 0
	}
	return r.Id
}

type ListDonationsRequest struct {
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=pending success failed refunded"`
	Gateway string `json:"gateway,omitempty" validate:"omitempty,oneof=razorpay cashfree"`
	Email   string `json:"email,omitempty" validate:"max=200"`
	Page    int32  `json:"page,omitempty"`
	Limit   int32  `json:"limit,omitempty"`
}

func NewListDonationsRequestFromContext(ctx echo.Context) (*ListDonationsRequest, error) {
	req := &ListDonationsRequest{
		Status:  strings.ToLower(strings.TrimSpace(ctx.QueryParam("status"))),
		Gateway: strings.ToLower(strings.TrimSpace(ctx.QueryParam("gateway"))),
		Email:   strings.ToLower(strings.TrimSpace(ctx.QueryParam("email"))),
		Page:    1,
		Limit:   defaultListLimit,
	}

	if pageRaw := strings.TrimSpace(ctx.QueryParam("page")); pageRaw != "" {
		page, err := strconv.ParseInt(pageRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Page = int32(page)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	return req, nil
}

func (r *ListDonationsRequest) Validate() error {
	if r.Page == 0 {
		r.Page = 1
	}
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.GetPage() < 1 {
		return errors.New("page must be >= 1")
	}
	if r.GetLimit() < 1 || r.GetLimit() > maxListLimit {
		return errors.New("limit must be between 1 and 100")
	}
	return validateStruct(r)
}

func (r *ListDonationsRequest) GetStatus() string {
	if r == nil {
		return ""
	}
	return r.Status
}

func (r *ListDonationsRequest) GetGateway() string {
	if r == nil {
		return ""
	}
	return r.Gateway
}

func (r *ListDonationsRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

func (r *ListDonationsRequest) GetPage() int32 {
	if r == nil {
		return 0
	}
	return r.Page
}

func (r *ListDonationsRequest) GetLimit() int32 {
	if r == nil {
		return 0
	}
	return r.Limit
}

func (r *ListDonationsRequest) GetOffset() int32 {
	if r == nil || r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.Limit
}

// WebhookRequest is the raw gateway notification. The body is kept byte for
// byte because signatures are computed over it.
type WebhookRequest struct {
	Gateway string
	Body    []byte
	Headers http.Header
}

func NewWebhookRequestFromContext(ctx echo.Context, gateway string) (*WebhookRequest, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}
	return &WebhookRequest{
		Gateway: gateway,
		Body:    body,
		Headers: ctx.Request().Header.Clone(),
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if len(r.Body) == 0 {
		return errors.New("empty webhook body")
	}
	return nil
}

type UpdateTemplateRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	LogoPath        *string `json:"logo_path,omitempty" validate:"omitempty,max=500"`
	SignaturePath   *string `json:"signature_path,omitempty" validate:"omitempty,max=500"`
	PrimaryColor    *string `json:"primary_color,omitempty" validate:"omitempty,hexcolor"`
	SecondaryColor  *string `json:"secondary_color,omitempty" validate:"omitempty,hexcolor"`
	FontFamily      *string `json:"font_family,omitempty" validate:"omitempty,oneof=Helvetica Courier Times Arial"`
	NGOName         *string `json:"ngo_name,omitempty" validate:"omitempty,max=200"`
	NGOPan          *string `json:"ngo_pan,omitempty" validate:"omitempty,len=10,alphanum"`
	NGO80GReg       *string `json:"ngo_80g_reg,omitempty" validate:"omitempty,max=100"`
	NGO12AReg       *string `json:"ngo_12a_reg,omitempty" validate:"omitempty,max=100"`
	NGOAddress      *string `json:"ngo_address,omitempty" validate:"omitempty,max=500"`
	NGOPhone        *string `json:"ngo_phone,omitempty" validate:"omitempty,max=20"`
	NGOEmail        *string `json:"ngo_email,omitempty" validate:"omitempty,email"`
	HeaderText      *string `json:"header_text,omitempty" validate:"omitempty,max=200"`
	FooterText      *string `json:"footer_text,omitempty" validate:"omitempty,max=1000"`
	ThankYouMessage *string `json:"thank_you_message,omitempty" validate:"omitempty,max=1000"`
}

func NewUpdateTemplateRequestFromContext(ctx echo.Context) (*UpdateTemplateRequest, error) {
	var body UpdateTemplateRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	for _, field := range []**string{
		&body.Name, &body.LogoPath, &body.SignaturePath, &body.PrimaryColor, &body.SecondaryColor,
		&body.FontFamily, &body.NGOName, &body.NGOPan, &body.NGO80GReg, &body.NGO12AReg,
		&body.NGOAddress, &body.NGOPhone, &body.NGOEmail, &body.HeaderText, &body.FooterText,
		&body.ThankYouMessage,
	} {
		if *field != nil {
			trimmed := strings.TrimSpace(**field)
			*field = &trimmed
		}
	}
	if body.NGOPan != nil {
		upper := strings.ToUpper(*body.NGOPan)
		body.NGOPan = &upper
	}
	return &body, nil
}

func (r *UpdateTemplateRequest) Validate() error {
	return validateStruct(r)
}

const defaultBirthTZ = 5.5

type BirthDetailsRequest struct {
	DOB string   `json:"dob" validate:"required,datetime=2006-01-02"`
	TOB string   `json:"tob" validate:"required,datetime=15:04"`
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
	TZ  *float64 `json:"tz,omitempty" validate:"omitempty,min=-12,max=14"`
}

func NewBirthDetailsRequestFromContext(ctx echo.Context) (*BirthDetailsRequest, error) {
	var body BirthDetailsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.normalize()
	return &body, nil
}

func (r *BirthDetailsRequest) normalize() {
	r.DOB = strings.TrimSpace(r.DOB)
	r.TOB = strings.TrimSpace(r.TOB)
	if r.TZ == nil {
		tz := defaultBirthTZ
		r.TZ = &tz
	}
}

func (r *BirthDetailsRequest) Validate() error {
	return validateStruct(r)
}

func (r *BirthDetailsRequest) Details() astrology.BirthDetails {
	b := astrology.BirthDetails{DOB: r.DOB, TOB: r.TOB, TZ: defaultBirthTZ}
	if r.Lat != nil {
		b.Lat = *r.Lat
	}
	if r.Lon != nil {
		b.Lon = *r.Lon
	}
	if r.TZ != nil {
		b.TZ = *r.TZ
	}
	return b
}

type MatchingRequest struct {
	Person1 *BirthDetailsRequest `json:"person1" validate:"required"`
	Person2 *BirthDetailsRequest `json:"person2" validate:"required"`
}

func NewMatchingRequestFromContext(ctx echo.Context) (*MatchingRequest, error) {
	var body MatchingRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	for _, person := range []*BirthDetailsRequest{body.Person1, body.Person2} {
		if person != nil {
			person.normalize()
		}
	}
	return &body, nil
}

func (r *MatchingRequest) Validate() error {
	return validateStruct(r)
}

type HealthRequest struct{}
