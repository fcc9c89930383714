package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-donations/app/entity"
	"github.com/vibast-solutions/ms-go-donations/app/factory"
	"github.com/vibast-solutions/ms-go-donations/config"
	"golang.org/x/time/rate"
	mail "gopkg.in/mail.v2"
)

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer sends donation receipts over SMTP. Failures are logged and
// reported as false, never returned to the payment path.
type Mailer struct {
	cfg     config.EmailConfig
	ngo     config.NGOConfig
	sender  sender
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

func NewMailer(cfg config.EmailConfig, ngo config.NGOConfig) *Mailer {
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Port == 465
	dialer.StartTLSPolicy = mail.OpportunisticStartTLS
	return newMailer(cfg, ngo, dialer)
}

func newMailer(cfg config.EmailConfig, ngo config.NGOConfig, s sender) *Mailer {
	perMinute := cfg.SendPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Mailer{
		cfg:     cfg,
		ngo:     ngo,
		sender:  s,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
		logger:  factory.NewModuleLogger("mailer"),
	}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.fromAddress() != ""
}

func (m *Mailer) SendDonationReceipt(ctx context.Context, donation *entity.Donation, attachment []byte, attachmentName string) bool {
	if donation == nil {
		return false
	}
	log := m.logger.WithField("donation_id", donation.ID)
	if !m.Enabled() {
		log.Warn("smtp not configured, receipt not sent")
		return false
	}

	body, err := m.receiptBody(donation)
	if err != nil {
		log.WithError(err).Error("failed to render receipt email")
		return false
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.fromAddress(), m.fromName())
	msg.SetHeader("To", donation.Donor.Email)
	if bcc := m.bcc(); bcc != "" {
		msg.SetHeader("Bcc", bcc)
	}
	msg.SetHeader("Subject", m.receiptSubject(donation))
	msg.SetBody("text/html", body)
	if len(attachment) > 0 {
		msg.AttachReader(attachmentName, bytes.NewReader(attachment))
	}

	if err := m.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("receipt email not sent")
		return false
	}
	if err := m.sender.DialAndSend(msg); err != nil {
		log.WithError(err).Warn("failed to send receipt email")
		return false
	}
	log.Info("receipt email sent")
	return true
}

func (m *Mailer) receiptSubject(donation *entity.Donation) string {
	return fmt.Sprintf("Donation Receipt — %s (₹%s)", m.orgName(), entity.FormatAmount(donation.Amount, 0))
}

func (m *Mailer) receiptBody(donation *entity.Donation) (string, error) {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, map[string]string{
		"DonorName":   donation.Donor.Name,
		"Amount":      entity.FormatAmount(donation.Amount, 0),
		"Transaction": donation.TransactionReference(),
		"OrgName":     m.orgName(),
		"OrgPAN":      m.ngo.PAN,
		"OrgAddress":  m.ngo.Address,
		"OrgEmail":    m.ngo.Email,
		"OrgPhone":    m.ngo.Phone,
		"OrgWebsite":  m.ngo.Website,
	})
	return buf.String(), err
}

func (m *Mailer) fromAddress() string {
	if m.cfg.FromAddress != "" {
		return m.cfg.FromAddress
	}
	return m.cfg.Username
}

func (m *Mailer) fromName() string {
	if m.cfg.FromName != "" {
		return m.cfg.FromName
	}
	return m.orgName()
}

func (m *Mailer) bcc() string {
	if m.cfg.OpsBCC != "" {
		return m.cfg.OpsBCC
	}
	return m.fromAddress()
}

func (m *Mailer) orgName() string {
	if m.ngo.Name != "" {
		return m.ngo.Name
	}
	return "Donations"
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; color: #333;">
  <div style="background: #FF6B00; padding: 30px; text-align: center; border-radius: 8px 8px 0 0;">
    <h1 style="color: white; margin: 0; font-size: 24px;">Thank You, {{.DonorName}}!</h1>
  </div>
  <div style="background: #fff8f0; padding: 30px; border: 1px solid #ffe0b2; border-top: none;">
    <p>Dear <strong>{{.DonorName}}</strong>,</p>
    <p>Your donation of <strong>&#8377;{{.Amount}}</strong> has been received successfully.</p>
    <div style="background: white; border: 1px solid #ddd; border-radius: 6px; padding: 16px; margin: 20px 0;">
      <p style="margin: 4px 0;"><strong>Transaction ID:</strong> {{.Transaction}}</p>
      <p style="margin: 4px 0;"><strong>Amount:</strong> &#8377;{{.Amount}}</p>
      <p style="margin: 4px 0;"><strong>Organization:</strong> {{.OrgName}}</p>
      {{if .OrgPAN}}<p style="margin: 4px 0;"><strong>PAN:</strong> {{.OrgPAN}}</p>{{end}}
    </div>
    <p>Your 80G donation certificate is attached to this email. Please save it for your tax records.</p>
    <p style="color: #666; font-size: 14px;">This donation is eligible for tax deduction under Section 80G of the Income Tax Act, 1961.</p>
    <hr style="border: none; border-top: 1px solid #eee; margin: 24px 0;">
    <p style="font-size: 13px; color: #888;">
      {{.OrgName}}{{if .OrgAddress}} | {{.OrgAddress}}{{end}}<br>
      {{if .OrgEmail}}Email: {{.OrgEmail}}{{end}}{{if .OrgPhone}} | Phone: {{.OrgPhone}}{{end}}<br>
      {{if .OrgWebsite}}Website: <a href="{{.OrgWebsite}}">{{.OrgWebsite}}</a>{{end}}
    </p>
  </div>
</body>
</html>
`))
