package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
	"github.com/AnTengye/rollingquote/pkg/logger"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one email to one recipient.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Notifier is the outbound notification capability.
//
// Send returns a *PartialFailure when only some messages went out; the
// recipients in Delivered must not be sent to again.
type Notifier interface {
	Send(ctx context.Context, msgs []Message) error
}

// PartialFailure reports which recipients were reached before sending failed.
type PartialFailure struct {
	Delivered []string
	Failed    map[string]error
}

func (p *PartialFailure) Error() string {
	failed := make([]string, 0, len(p.Failed))
	for to := range p.Failed {
		failed = append(failed, to)
	}
	sort.Strings(failed)
	return fmt.Sprintf("notification failed for %s (%d delivered)", strings.Join(failed, ", "), len(p.Delivered))
}

func (p *PartialFailure) Unwrap() error { return model.ErrUpstreamUnavailable }

// DeliveredRecipients extracts the reached recipients from a Send error.
// A nil error means every message in msgs was delivered.
func DeliveredRecipients(msgs []Message, err error) []string {
	if err == nil {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.To
		}
		return out
	}
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return pf.Delivered
	}
	return nil
}

// sendgridClient abstracts sendgrid.Client for testability.
type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers messages through the SendGrid v3 API, one
// request per recipient.
type SendGridNotifier struct {
	client sendgridClient
	from   *mail.Email
}

func NewSendGridNotifier(cfg config.NotifyConfig) *SendGridNotifier {
	return NewSendGridNotifierWith(sendgrid.NewSendClient(cfg.SendGridAPIKey), cfg)
}

// NewSendGridNotifierWith is only for tests to inject a fake client.
func NewSendGridNotifierWith(c sendgridClient, cfg config.NotifyConfig) *SendGridNotifier {
	return &SendGridNotifier{client: c, from: mail.NewEmail(cfg.FromName, cfg.FromAddress)}
}

func (n *SendGridNotifier) Send(ctx context.Context, msgs []Message) error {
	pf := &PartialFailure{Failed: map[string]error{}}
	for _, m := range msgs {
		if err := n.send(ctx, m); err != nil {
			pf.Failed[m.To] = err
			logger.Warn(ctx, "email not sent", "to", m.To, "subject", m.Subject, "error", err)
			continue
		}
		pf.Delivered = append(pf.Delivered, m.To)
	}
	if len(pf.Failed) > 0 {
		return pf
	}
	return nil
}

func (n *SendGridNotifier) send(ctx context.Context, m Message) error {
	v3 := mail.NewV3Mail()
	v3.SetFrom(n.from)
	v3.Subject = m.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", m.To))
	v3.AddPersonalizations(p)
	v3.AddContent(mail.NewContent("text/html", m.HTML))

	for _, a := range m.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		v3.AddAttachment(att)
	}

	resp, err := n.client.SendWithContext(ctx, v3)
	if err != nil {
		return model.Upstream("sendgrid send", err)
	}
	if resp.StatusCode >= 300 {
		return model.Upstream("sendgrid send", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// LogNotifier writes messages to the log instead of sending them. It is the
// development default.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		logger.Info(ctx, "notification",
			"to", m.To,
			"subject", m.Subject,
			"html_bytes", len(m.HTML),
			"attachments", len(m.Attachments),
		)
	}
	return nil
}
