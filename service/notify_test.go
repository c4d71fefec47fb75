package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
)

type fakeSendGrid struct {
	mu     sync.Mutex
	mails  []*mail.SGMailV3
	status map[string]int
	errFor map[string]error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	to := m.Personalizations[0].To[0].Address
	if err := f.errFor[to]; err != nil {
		return nil, err
	}
	f.mails = append(f.mails, m)
	code := 202
	if c, ok := f.status[to]; ok {
		code = c
	}
	return &rest.Response{StatusCode: code}, nil
}

func testNotifyConfig() config.NotifyConfig {
	return config.NotifyConfig{FromAddress: "no-reply@example.com", FromName: "Rolling Translations"}
}

func TestSendGridNotifierSend(t *testing.T) {
	client := &fakeSendGrid{}
	n := NewSendGridNotifierWith(client, testNotifyConfig())

	err := n.Send(context.Background(), []Message{
		{
			To:          "client@example.com",
			Subject:     "Confirmed",
			HTML:        "<p>hi</p>",
			Attachments: []Attachment{{Filename: "receipt.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}},
		},
		{To: "ops@example.com", Subject: "Paid order", HTML: "<p>ops</p>"},
	})
	require.NoError(t, err)
	require.Len(t, client.mails, 2)

	m := client.mails[0]
	assert.Equal(t, "no-reply@example.com", m.From.Address)
	assert.Equal(t, "Rolling Translations", m.From.Name)
	assert.Equal(t, "Confirmed", m.Subject)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/html", m.Content[0].Type)
	assert.Equal(t, "<p>hi</p>", m.Content[0].Value)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "receipt.pdf", m.Attachments[0].Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), m.Attachments[0].Content)
	assert.Empty(t, client.mails[1].Attachments)
}

func TestSendGridNotifierPartialFailure(t *testing.T) {
	client := &fakeSendGrid{
		status: map[string]int{"ops@example.com": 500},
		errFor: map[string]error{"third@example.com": errors.New("connection refused")},
	}
	n := NewSendGridNotifierWith(client, testNotifyConfig())
	msgs := []Message{
		{To: "client@example.com"},
		{To: "ops@example.com"},
		{To: "third@example.com"},
	}

	err := n.Send(context.Background(), msgs)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, []string{"client@example.com"}, pf.Delivered)
	assert.Len(t, pf.Failed, 2)
	assert.Equal(t, []string{"client@example.com"}, DeliveredRecipients(msgs, err))
	assert.Contains(t, err.Error(), "ops@example.com, third@example.com")
}

func TestDeliveredRecipients(t *testing.T) {
	msgs := []Message{{To: "a@example.com"}, {To: "b@example.com"}}
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, DeliveredRecipients(msgs, nil))
	assert.Nil(t, DeliveredRecipients(msgs, errors.New("boom")))
}

func TestLogNotifierSend(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), []Message{{To: "a@example.com"}}))
}
