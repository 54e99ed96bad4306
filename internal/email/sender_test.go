package email

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender_Defaults(t *testing.T) {
	s := NewSMTPSender("", "")
	require.Equal(t, "localhost:1025", s.Addr)
	require.Equal(t, "no-reply@img2prompt.local", s.From)
}

func TestStdoutSender_Send(t *testing.T) {
	var buf bytes.Buffer
	s := StdoutSender{Log: zerolog.New(&buf)}
	require.NoError(t, s.Send("user@example.com", "Test subject", "<p>Test</p>"))
	require.Contains(t, buf.String(), `"to":"user@example.com"`)
	require.ErrorIs(t, s.Send(" ", "subj", "body"), ErrNoRecipient)
}

func TestSMTPSender_Send_EmptyRecipient(t *testing.T) {
	s := NewSMTPSender("localhost:1025", "from@example.com")
	require.ErrorIs(t, s.Send("", "subj", "body"), ErrNoRecipient)
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := string(buildMessage("a@example.com", "b@example.com", "Your\nlink", "<p>hi</p>", date))

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	require.Equal(t, "<p>hi</p>", body)
	require.Contains(t, head, "Subject: Your link\r\n")
	require.Contains(t, head, "Content-Type: text/html")
	require.Contains(t, head, "Date: Sat, 01 Mar 2025 12:00:00 +0000")
}

// Needs MailHog on localhost:1025/8025; skipped otherwise.
func TestSMTPSender_MailHog_SendAndCleanup(t *testing.T) {
	client := &http.Client{Timeout: 2 * time.Second}
	_ = doMailHogDelete(client)

	sender := NewSMTPSender("localhost:1025", "test-from@example.com")
	if err := sender.Send("recipient@example.com", "Test MailHog", "<p>Hello MailHog</p>"); err != nil {
		t.Skipf("MailHog SMTP not available or send failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	resp, err := client.Get("http://localhost:8025/api/v2/messages")
	if err != nil {
		t.Skipf("MailHog HTTP API not available: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("MailHog API returned non-200: %d", resp.StatusCode)
	}

	require.NoError(t, doMailHogDelete(client))
}

func doMailHogDelete(client *http.Client) error {
	req, _ := http.NewRequest(http.MethodDelete, "http://localhost:8025/api/v1/messages", nil)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
