package twiliowhatsapp

import (
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	// Keep ambient TWILIO_* out of the picture.
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	_, err := NewClient()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}

	_, err = NewClient(WithAccountSID("AC123"), WithAuthToken("token"))
	if !errors.Is(err, ErrMissingSender) {
		t.Errorf("Expected ErrMissingSender, got %v", err)
	}
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_FROM_NUMBER", "15550001111")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.from != "whatsapp:+15550001111" {
		t.Errorf("Expected prefixed sender, got %q", client.from)
	}
}

func TestWhatsappAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"15550001111", "whatsapp:+15550001111"},
		{"+15550001111", "whatsapp:+15550001111"},
		{"whatsapp:+15550001111", "whatsapp:+15550001111"},
	}
	for _, tt := range tests {
		if got := whatsappAddress(tt.input); got != tt.expected {
			t.Errorf("whatsappAddress(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
