// Package email renders and delivers the platform's transactional emails.
package email

import "context"

// RequestEmailData carries the request fields the templates render.
type RequestEmailData struct {
	RecipientName string
	DocumentType  string
	RequestID     string
	Reason        string
	DownloadURL   string
}

// Sender delivers transactional emails. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendWelcome(ctx context.Context, toEmail, recipientName string) error
	SendRequestCompleted(ctx context.Context, toEmail string, data RequestEmailData) error
	SendRequestRejected(ctx context.Context, toEmail string, data RequestEmailData) error
	SendDocumentReady(ctx context.Context, toEmail string, data RequestEmailData) error
}

// NoopSender discards all emails. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendWelcome(context.Context, string, string) error { return nil }

func (NoopSender) SendRequestCompleted(context.Context, string, RequestEmailData) error {
	return nil
}

func (NoopSender) SendRequestRejected(context.Context, string, RequestEmailData) error {
	return nil
}

func (NoopSender) SendDocumentReady(context.Context, string, RequestEmailData) error {
	return nil
}

var _ Sender = NoopSender{}
