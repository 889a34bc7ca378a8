package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"civildocs_backend/platform/config"
)

// SMTPSender implements the Sender interface via a direct SMTP connection
// using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// SendWelcome greets a freshly registered citizen.
func (s *SMTPSender) SendWelcome(ctx context.Context, toEmail, recipientName string) error {
	content, err := renderEmailTemplate("welcome.html", welcomeEmailData{
		baseEmailData: baseEmailData{
			Title:   "Bienvenue",
			Heading: "Bienvenue sur la plateforme des documents d'état civil",
		},
		RecipientName: recipientName,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Bienvenue sur la plateforme", content)
}

// SendRequestCompleted tells the citizen their document is ready.
func (s *SMTPSender) SendRequestCompleted(ctx context.Context, toEmail string, data RequestEmailData) error {
	content, err := renderEmailTemplate("request_completed.html", requestEmailData{
		baseEmailData: baseEmailData{
			Title:    "Demande traitée",
			Heading:  "Votre demande a été traitée",
			CTALabel: "Voir ma demande",
			CTAURL:   data.DownloadURL,
		},
		RequestEmailData: data,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Votre demande a été traitée", content)
}

// SendRequestRejected tells the citizen their request was rejected and why.
func (s *SMTPSender) SendRequestRejected(ctx context.Context, toEmail string, data RequestEmailData) error {
	content, err := renderEmailTemplate("request_rejected.html", requestEmailData{
		baseEmailData: baseEmailData{
			Title:   "Demande rejetée",
			Heading: "Votre demande a été rejetée",
		},
		RequestEmailData: data,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Votre demande a été rejetée", content)
}

// SendDocumentReady delivers the download link for a generated certificate.
func (s *SMTPSender) SendDocumentReady(ctx context.Context, toEmail string, data RequestEmailData) error {
	content, err := renderEmailTemplate("document_ready.html", requestEmailData{
		baseEmailData: baseEmailData{
			Title:    "Document disponible",
			Heading:  "Votre document est disponible",
			CTALabel: "Télécharger mon document",
			CTAURL:   data.DownloadURL,
		},
		RequestEmailData: data,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Votre document est disponible", content)
}

var _ Sender = (*SMTPSender)(nil)
