package twiliosms

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without account SID and auth token")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without a from number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromNumber("+15550001111")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMockClientRecordsMessages(t *testing.T) {
	m := NewMockClient()
	if err := m.SendSMS(context.Background(), "+15550002222", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.SentMessages) != 1 || m.SentMessages[0].To != "+15550002222" || m.SentMessages[0].Body != "hello" {
		t.Errorf("message not recorded: %+v", m.SentMessages)
	}
}
