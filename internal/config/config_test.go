package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/SleepEMA/internal/models"
)

func TestLoadMissingFileReturnsSkeleton(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if !errors.Is(err, models.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
	if cfg == nil {
		t.Fatal("missing file must still yield a usable skeleton")
	}
	if len(cfg.Patients) != 1 || cfg.Patients[0].ID != "sample" {
		t.Errorf("unexpected skeleton patients: %+v", cfg.Patients)
	}
	if cfg.Patients[0].Credential.IsSet() {
		t.Error("skeleton credential must be unset")
	}
	if models.CredentialFromToken(cfg.Qualtrics.APIToken).IsSet() {
		t.Error("skeleton qualtrics token must be a placeholder")
	}
}

func TestLoadCorruptFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil || errors.Is(err, models.ErrConfigMissing) {
		t.Errorf("expected fatal parse error, got %v", err)
	}
	if cfg != nil {
		t.Error("corrupt configuration must not yield a config")
	}
}

func TestParsePreservesPatientOrder(t *testing.T) {
	raw := []byte(`{
		"oura_api_tokens": {
			"zeta": "TOKEN_Z",
			"alpha": "xxx",
			"mid": "TOKEN_M"
		}
	}`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOrder := []string{"zeta", "alpha", "mid"}
	if len(cfg.Patients) != len(wantOrder) {
		t.Fatalf("expected %d patients, got %d", len(wantOrder), len(cfg.Patients))
	}
	for i, id := range wantOrder {
		if cfg.Patients[i].ID != id {
			t.Errorf("patient %d: expected %s, got %s", i, id, cfg.Patients[i].ID)
		}
	}
	if !cfg.Patients[0].Credential.IsSet() {
		t.Error("zeta has a real token")
	}
	if cfg.Patients[1].Credential.IsSet() {
		t.Error("alpha has a placeholder token")
	}
}

func TestParseQualtricsContacts(t *testing.T) {
	raw := []byte(`{
		"oura_api_tokens": {"patient1": "xxx"},
		"qualtrics": {
			"api_token": "QT_TOKEN",
			"mailinglist_id": "ML_1",
			"survey_id": "SV_1",
			"patient1": "CID_1",
			"patient2": "CID_2"
		}
	}`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qc := cfg.Qualtrics
	if qc.APIToken != "QT_TOKEN" || qc.MailingListID != "ML_1" || qc.SurveyID != "SV_1" {
		t.Errorf("unexpected qualtrics block: %+v", qc)
	}
	if qc.Contacts["patient1"] != "CID_1" || qc.Contacts["patient2"] != "CID_2" {
		t.Errorf("unexpected contacts: %v", qc.Contacts)
	}
}

func TestParseEmptyDocumentFallsBackToSample(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Patients) != 1 || cfg.Patients[0].ID != "sample" {
		t.Errorf("expected sample patient fallback, got %+v", cfg.Patients)
	}
}

func TestTwilioEnabled(t *testing.T) {
	disabled := TwilioConfig{AccountSID: "xxx", AuthToken: "xxx", FromNumber: "+15550001111"}
	if disabled.Enabled() {
		t.Error("placeholder Twilio credentials must not enable the channel")
	}
	enabled := TwilioConfig{AccountSID: "AC123", AuthToken: "tok456", FromNumber: "+15550001111"}
	if !enabled.Enabled() {
		t.Error("real Twilio credentials should enable the channel")
	}
	if (TwilioConfig{}).Enabled() {
		t.Error("empty Twilio block must be disabled")
	}
}
