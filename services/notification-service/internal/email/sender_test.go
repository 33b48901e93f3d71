package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender("mailpit", "1025", "")
	var (
		addr, from string
		to         []string
		body       string
	)
	s.send = func(a string, _ smtp.Auth, f string, rcpt []string, msg []byte) error {
		addr, from, to, body = a, f, rcpt, string(msg)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "ana@example.com", ToName: "Ana", Subject: "Reminder", Body: "Tomorrow 09:00"})
	require.NoError(t, err)
	assert.Equal(t, "mailpit:1025", addr)
	assert.Equal(t, "no-reply@clinicflow.local", from)
	assert.Equal(t, []string{"ana@example.com"}, to)
	assert.True(t, strings.HasPrefix(body, "From: no-reply@clinicflow.local\r\nTo: Ana <ana@example.com>\r\nSubject: Reminder\r\n"))
	assert.True(t, strings.HasSuffix(body, "\r\n\r\nTomorrow 09:00\r\n"))
}

func TestSMTPSenderHonorsCancellation(t *testing.T) {
	s := NewSMTPSender("localhost", "25", "clinic@example.com")
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "x@example.com"}), context.Canceled)
}

func TestSendGridSenderRequiresKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(" ", "a@example.com", ""))
	s := NewSendGridSender("SG.key", "a@example.com", "")
	require.NotNil(t, s)
	assert.Equal(t, "ClinicFlow", s.fromName)
	assert.Equal(t, "sendgrid", s.ProviderID())
}
