package models

import "testing"

func TestCredentialFromToken(t *testing.T) {
	cases := []struct {
		token string
		set   bool
	}{
		{"", false},
		{"xxx", false},
		{"xxx-not-a-real-token", false},
		{"REAL_TOKEN_ABC123", true},
	}
	for _, tc := range cases {
		cred := CredentialFromToken(tc.token)
		if cred.IsSet() != tc.set {
			t.Errorf("CredentialFromToken(%q).IsSet() = %v, want %v", tc.token, cred.IsSet(), tc.set)
		}
		if tc.set && cred.Token() != tc.token {
			t.Errorf("CredentialFromToken(%q).Token() = %q", tc.token, cred.Token())
		}
		if !tc.set && cred.Token() != "" {
			t.Errorf("unset credential leaked token %q", cred.Token())
		}
	}
}

func TestSleepSessionQualifies(t *testing.T) {
	dur := 25200.0
	if !(SleepSession{Type: SleepTypeLongSleep, TotalSleepDuration: &dur}).Qualifies() {
		t.Error("long_sleep with duration should qualify")
	}
	if (SleepSession{Type: "late_nap", TotalSleepDuration: &dur}).Qualifies() {
		t.Error("nap sessions should not qualify")
	}
	if (SleepSession{Type: SleepTypeLongSleep}).Qualifies() {
		t.Error("sessions without a duration should not qualify")
	}
}

func TestWindowConstants(t *testing.T) {
	if WindowNights != BaselineNights+1 {
		t.Errorf("window must be baseline plus the most recent night, got %d and %d", WindowNights, BaselineNights)
	}
}
