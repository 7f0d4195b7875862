package mail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSenderSelectsDriver(t *testing.T) {
	s, err := NewSender(Config{Driver: DriverLog})
	require.NoError(t, err)
	assert.IsType(t, LogSender{}, s)

	s, err = NewSender(Config{Driver: DriverSMTP, SMTPHost: "smtp.local", SMTPPort: "25"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	s, err = NewSender(Config{Driver: DriverPostmark, PostmarkServerToken: "tok", From: "hi@serviapp.test"})
	require.NoError(t, err)
	assert.IsType(t, &PostmarkSender{}, s)

	_, err = NewSender(Config{Driver: DriverSMTP})
	assert.Error(t, err)
	_, err = NewSender(Config{Driver: DriverPostmark, From: "hi@serviapp.test"})
	assert.Error(t, err)
	_, err = NewSender(Config{Driver: "pigeon"})
	assert.Error(t, err)
}

func TestMessageValidate(t *testing.T) {
	assert.ErrorIs(t, Message{Subject: "x"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@b.c"}.Validate(), ErrInvalidMessage)
	assert.NoError(t, Message{To: "a@b.c", Subject: "x"}.Validate())
	assert.Error(t, LogSender{}.Send(context.Background(), Message{}))
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s, err := NewSMTPSender(Config{SMTPHost: "smtp.local", SMTPPort: "2525", From: "no-reply@serviapp.test"})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendFn = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err = s.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hello", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, "no-reply@serviapp.test", gotFrom)
	assert.Equal(t, []string{"ana@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(string(gotMsg), "<p>hi</p>"))
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	s, err := NewSMTPSender(Config{SMTPHost: "smtp.local", SMTPPort: "25"})
	require.NoError(t, err)
	s.sendFn = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be attempted")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Send(ctx, Message{To: "a@b.c", Subject: "x"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPostmarkSender(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"ana@example.com","MessageID":"abc","ErrorCode":0,"Message":"OK"}`))
	}))
	defer srv.Close()

	s, err := NewPostmarkSender(Config{PostmarkServerToken: "server-token", From: "hi@serviapp.test"})
	require.NoError(t, err)
	s.client.BaseURL = srv.URL

	err = s.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hello", HTMLBody: "<p>hi</p>", Tag: "test"})
	require.NoError(t, err)
	assert.Equal(t, "hi@serviapp.test", got["From"])
	assert.Equal(t, "ana@example.com", got["To"])
	assert.Equal(t, "test", got["Tag"])
}

func TestPostmarkSenderErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer srv.Close()

	s, err := NewPostmarkSender(Config{PostmarkServerToken: "server-token", From: "hi@serviapp.test"})
	require.NoError(t, err)
	s.client.BaseURL = srv.URL

	err = s.Send(context.Background(), Message{To: "ana@example.com", Subject: "Hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "300")
}

func TestVerificationResultEmail(t *testing.T) {
	msg, err := VerificationResultEmail("ana@example.com", VerificationResultData{Name: "Ana", Verified: true})
	require.NoError(t, err)
	assert.Equal(t, "Your identity is verified", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "Hi Ana")
	assert.Contains(t, msg.HTMLBody, "verified")

	msg, err = VerificationResultEmail("ana@example.com", VerificationResultData{Reason: "<b>blurry</b>"})
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "not approved")
	assert.Contains(t, msg.HTMLBody, "&lt;b&gt;blurry&lt;/b&gt;", "reason is escaped")
	assert.Contains(t, msg.HTMLBody, "Hi there")
}
