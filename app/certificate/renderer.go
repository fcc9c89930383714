package certificate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/config"
)

const (
	notProvided    = "Not Provided"
	appliedPending = "Applied/Pending"
)

var (
	grey      = &props.Color{Red: 120, Green: 120, Blue: 120}
	lightGrey = &props.Color{Red: 210, Green: 210, Blue: 210}
)

// Renderer draws the donation receipt cum 80G certificate. Template fields
// win over the NGO configuration when set.
type Renderer struct {
	ngo      config.NGOConfig
	logoPath string
}

func NewRenderer(ngo config.NGOConfig, logoPath string) *Renderer {
	return &Renderer{ngo: ngo, logoPath: logoPath}
}

type organisation struct {
	Name    string
	PAN     string
	Reg80G  string
	Reg12A  string
	Address string
	Phone   string
	Email   string
	Website string
}

type content struct {
	ReceiptNumber string
	Date          string
	Transaction   string
	PaymentMode   string

	DonorName  string
	FatherName string
	PAN        string
	Address    string
	Phone      string
	Email      string

	Amount string
	Cause  string

	Org organisation

	Header    string
	ThankYou  string
	Footer    string
	LogoPath  string
	SignPath  string
	Family    string
	Primary   *props.Color
	Secondary *props.Color
}

// ReceiptNumber formats the printed receipt number, e.g. DFG/2026/00042.
func ReceiptNumber(donationID uint64, date time.Time) string {
	return fmt.Sprintf("DFG/%d/%05d", date.Year(), donationID)
}

func (r *Renderer) Render(donation *entity.Donation, tpl *entity.CertificateTemplate) ([]byte, error) {
	if donation == nil {
		return nil, fmt.Errorf("donation is required")
	}
	if tpl == nil {
		tpl = entity.NewDefaultCertificateTemplate(time.Now().UTC())
	}
	c := r.buildContent(donation, tpl)

	cfg := marotoconfig.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(20).
		WithTopMargin(15).
		WithRightMargin(20).
		Build()
	m := maroto.New(cfg)

	addHeader(m, c)
	addMeta(m, c)
	addDonor(m, c)
	addAmount(m, c)
	addOrganisation(m, c)
	addSignatures(m, c)
	addFooter(m, c)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	return doc.GetBytes(), nil
}

func (r *Renderer) buildContent(donation *entity.Donation, tpl *entity.CertificateTemplate) content {
	date := donation.CreatedAt
	if date.IsZero() {
		date = time.Now().UTC()
	}
	gateway := strings.ToUpper(donation.Gateway)

	logo := valueOr(tpl.LogoPath, r.logoPath)
	return content{
		ReceiptNumber: ReceiptNumber(donation.ID, date),
		Date:          date.Format("02 January 2006"),
		Transaction:   gateway + ": " + donation.TransactionReference(),
		PaymentMode:   gateway,

		DonorName:  donation.Donor.Name,
		FatherName: valueOr(donation.Donor.FatherName, "N/A"),
		PAN:        valueOr(donation.Donor.PAN, notProvided),
		Address:    donorAddress(donation.Donor),
		Phone:      donation.Donor.Phone,
		Email:      donation.Donor.Email,

		Amount: "Rs. " + entity.FormatAmount(donation.Amount, 2),
		Cause:  titleCase(donation.Cause),

		Org: organisation{
			Name:    valueOr(tpl.NGOName, r.ngo.Name),
			PAN:     valueOr(tpl.NGOPAN, r.ngo.PAN),
			Reg80G:  nonEmpty(valueOr(tpl.NGO80GReg, r.ngo.Reg80G), appliedPending),
			Reg12A:  nonEmpty(valueOr(tpl.NGO12AReg, r.ngo.Reg12A), appliedPending),
			Address: valueOr(tpl.NGOAddress, r.ngo.Address),
			Phone:   valueOr(tpl.NGOPhone, r.ngo.Phone),
			Email:   valueOr(tpl.NGOEmail, r.ngo.Email),
			Website: r.ngo.Website,
		},

		Header:    nonEmpty(tpl.HeaderText, entity.DefaultHeaderText),
		ThankYou:  nonEmpty(tpl.ThankYouMessage, entity.DefaultThankYouMessage),
		Footer:    nonEmpty(tpl.FooterText, entity.DefaultFooterText),
		LogoPath:  existingFile(logo),
		SignPath:  existingFile(valueOr(tpl.SignaturePath, "")),
		Family:    fontFamily(tpl.FontFamily),
		Primary:   parseHexColor(tpl.PrimaryColor, entity.DefaultPrimaryColor),
		Secondary: parseHexColor(tpl.SecondaryColor, entity.DefaultSecondaryColor),
	}
}

func addHeader(m core.Maroto, c content) {
	if c.LogoPath != "" {
		m.AddRow(22, col.New(4), image.NewFromFileCol(4, c.LogoPath, props.Rect{Center: true, Percent: 100}), col.New(4))
	}
	m.AddRow(10, col.New(12).Add(text.New(strings.ToUpper(c.Org.Name), props.Text{
		Family: c.Family, Size: 18, Style: fontstyle.Bold, Align: align.Center, Color: c.Primary,
	})))
	m.AddRow(8, col.New(12).Add(text.New(c.Header, props.Text{
		Family: c.Family, Size: 11, Align: align.Center, Color: c.Secondary,
	})))
	m.AddRow(6, line.NewCol(12, props.Line{Color: c.Primary, Thickness: 2}))
}

func addMeta(m core.Maroto, c content) {
	m.AddRow(7, labelCol(2, c, "Receipt No:"), valueCol(4, c, c.ReceiptNumber), labelCol(2, c, "Date:"), valueCol(4, c, c.Date))
	m.AddRow(7, labelCol(2, c, "Transaction ID:"), valueCol(4, c, c.Transaction), labelCol(2, c, "Payment Mode:"), valueCol(4, c, c.PaymentMode))
	m.AddRow(4)
}

func addDonor(m core.Maroto, c content) {
	sectionTitle(m, c, "DONOR DETAILS")
	detailRow(m, c, "Full Name:", c.DonorName)
	detailRow(m, c, "Father's Name:", c.FatherName)
	detailRow(m, c, "PAN Number:", c.PAN)
	detailRow(m, c, "Address:", c.Address)
	detailRow(m, c, "Phone:", c.Phone)
	detailRow(m, c, "Email:", c.Email)
	m.AddRow(4)
}

func addAmount(m core.Maroto, c content) {
	m.AddRow(4, line.NewCol(12, props.Line{Color: c.Primary, Thickness: 1}))
	m.AddRow(12, col.New(12).Add(text.New("Donation Amount: "+c.Amount, props.Text{
		Family: c.Family, Size: 20, Style: fontstyle.Bold, Align: align.Center, Color: c.Secondary,
	})))
	m.AddRow(6, col.New(12).Add(text.New("Purpose: "+c.Cause, props.Text{
		Family: c.Family, Size: 10, Align: align.Center, Color: grey,
	})))
	m.AddRow(5, line.NewCol(12, props.Line{Color: c.Primary, Thickness: 1}))
}

func addOrganisation(m core.Maroto, c content) {
	sectionTitle(m, c, "ORGANISATION DETAILS")
	detailRow(m, c, "Organisation:", c.Org.Name)
	detailRow(m, c, "PAN:", c.Org.PAN)
	detailRow(m, c, "80G Registration:", c.Org.Reg80G)
	detailRow(m, c, "12A Registration:", c.Org.Reg12A)
	detailRow(m, c, "Address:", c.Org.Address)
	detailRow(m, c, "Phone:", c.Org.Phone)
	detailRow(m, c, "Email:", c.Org.Email)
	m.AddRow(8)
}

func addSignatures(m core.Maroto, c content) {
	if c.SignPath != "" {
		m.AddRow(15, image.NewFromFileCol(6, c.SignPath, props.Rect{Center: true, Percent: 80}), col.New(6))
	} else {
		m.AddRow(15)
	}
	m.AddRow(6,
		col.New(6).Add(text.New("Authorised Signatory", labelProps(c, align.Center))),
		col.New(6).Add(text.New("Donor's Signature", labelProps(c, align.Center))),
	)
	m.AddRow(8)
}

func addFooter(m core.Maroto, c content) {
	m.AddRow(3, line.NewCol(12, props.Line{Color: lightGrey, Thickness: 1}))
	footer := props.Text{Family: c.Family, Size: 8, Align: align.Center, Color: grey}
	m.AddRow(8, col.New(12).Add(text.New(c.ThankYou, footer)))
	m.AddRow(10, col.New(12).Add(text.New(c.Footer, footer)))
	verify := "This certificate is computer generated and valid without physical signature."
	if c.Org.Website != "" {
		verify += " Verify at: " + c.Org.Website
	}
	m.AddRow(8, col.New(12).Add(text.New(verify, footer)))
}

func sectionTitle(m core.Maroto, c content, title string) {
	m.AddRow(7, col.New(12).Add(text.New(title, props.Text{
		Family: c.Family, Size: 10, Style: fontstyle.Bold, Color: c.Secondary,
	})))
}

func detailRow(m core.Maroto, c content, label, value string) {
	m.AddRow(6, labelCol(3, c, label), valueCol(9, c, value))
}

func labelCol(size int, c content, label string) core.Col {
	return col.New(size).Add(text.New(label, labelProps(c, align.Left)))
}

func valueCol(size int, c content, value string) core.Col {
	return col.New(size).Add(text.New(value, props.Text{Family: c.Family, Size: 10}))
}

func labelProps(c content, a align.Type) props.Text {
	return props.Text{Family: c.Family, Size: 9, Style: fontstyle.Bold, Align: a, Color: grey}
}

func donorAddress(d entity.Donor) string {
	parts := make([]string, 0, 3)
	for _, p := range []*string{d.Address, d.City, d.State} {
		if v := valueOr(p, ""); v != "" {
			parts = append(parts, v)
		}
	}
	out := strings.Join(parts, ", ")
	if pin := valueOr(d.Pincode, ""); pin != "" {
		if out == "" {
			out = pin
		} else {
			out += " - " + pin
		}
	}
	return nonEmpty(out, notProvided)
}

func fontFamily(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arial":
		return fontfamily.Arial
	case "courier":
		return fontfamily.Courier
	default:
		return fontfamily.Helvetica
	}
}

func parseHexColor(value, fallback string) *props.Color {
	if c, ok := hexColor(value); ok {
		return c
	}
	c, _ := hexColor(fallback)
	return c
}

func hexColor(value string) (*props.Color, bool) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return nil, false
	}
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return nil, false
	}
	return &props.Color{Red: int(n >> 16 & 0xff), Green: int(n >> 8 & 0xff), Blue: int(n & 0xff)}, true
}

func titleCase(v string) string {
	if v == "" {
		return "General"
	}
	return strings.ToUpper(v[:1]) + v[1:]
}

func valueOr(v *string, fallback string) string {
	if v != nil && strings.TrimSpace(*v) != "" {
		return strings.TrimSpace(*v)
	}
	return fallback
}

func nonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func existingFile(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
