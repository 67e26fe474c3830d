// Package config loads the SleepEMA configuration file.
//
// A missing file is recovered by substituting a placeholder skeleton so the
// pipeline still runs offline in dry-run mode; a corrupt file is fatal.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/SleepEMA/internal/models"
)

// DefaultPath is where the configuration file is looked up when no flag or
// environment override is given.
const DefaultPath = "config.json"

// PatientCredential pairs a patient identifier with their sleep-provider
// credential. Pairs keep the order the configuration file supplies them in.
type PatientCredential struct {
	ID         string
	Credential models.Credential
}

// QualtricsConfig is the survey-provider block. Besides the fixed keys, the
// block maps patient ids to their Qualtrics contact ids.
type QualtricsConfig struct {
	APIToken      string
	MailingListID string
	SurveyID      string
	Contacts      map[string]string
}

// TwilioConfig is the optional direct-SMS channel block. Numbers maps
// patient ids to their phone numbers in E.164 format.
type TwilioConfig struct {
	AccountSID string            `json:"account_sid"`
	AuthToken  string            `json:"auth_token"`
	FromNumber string            `json:"from_number"`
	Numbers    map[string]string `json:"numbers"`
}

// Enabled reports whether real Twilio credentials are configured. Placeholder
// credentials keep the channel in dry-run.
func (t TwilioConfig) Enabled() bool {
	return models.CredentialFromToken(t.AccountSID).IsSet() &&
		models.CredentialFromToken(t.AuthToken).IsSet() &&
		t.FromNumber != ""
}

// Config is the full run configuration.
type Config struct {
	Patients  []PatientCredential
	Qualtrics QualtricsConfig
	Twilio    TwilioConfig
}

// Skeleton returns the minimal placeholder configuration used when no file
// exists: one sample patient, placeholder tokens everywhere. It keeps the
// pipeline runnable entirely offline.
func Skeleton() *Config {
	return &Config{
		Patients:  []PatientCredential{{ID: "sample", Credential: models.CredentialFromToken(models.PlaceholderToken)}},
		Qualtrics: QualtricsConfig{APIToken: models.PlaceholderToken},
	}
}

// Load reads the configuration file at path.
//
// A missing file returns the placeholder skeleton together with a wrapped
// models.ErrConfigMissing so callers can log the substitution; anything else
// that fails (unreadable file, corrupt JSON) is fatal to the run and returns
// a nil config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("No configuration file found, running in sample mode", "path", path)
		return Skeleton(), fmt.Errorf("%w: %s", models.ErrConfigMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}
	slog.Debug("Configuration loaded", "path", path, "patients", len(cfg.Patients))
	return cfg, nil
}

// Parse decodes a configuration document.
func Parse(raw []byte) (*Config, error) {
	var doc struct {
		OuraAPITokens json.RawMessage            `json:"oura_api_tokens"`
		Qualtrics     map[string]json.RawMessage `json:"qualtrics"`
		Twilio        TwilioConfig               `json:"twilio"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	cfg := &Config{Twilio: doc.Twilio}

	var err error
	cfg.Patients, err = parseOrderedTokens(doc.OuraAPITokens)
	if err != nil {
		return nil, fmt.Errorf("oura_api_tokens: %w", err)
	}
	if len(cfg.Patients) == 0 {
		cfg.Patients = Skeleton().Patients
	}

	cfg.Qualtrics, err = parseQualtrics(doc.Qualtrics)
	if err != nil {
		return nil, fmt.Errorf("qualtrics: %w", err)
	}
	return cfg, nil
}

// parseOrderedTokens walks the oura_api_tokens object with a streaming
// decoder so patients keep the file's insertion order, which a plain Go map
// would destroy.
func parseOrderedTokens(raw json.RawMessage) ([]PatientCredential, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var patients []PatientCredential
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var token string
		if err := dec.Decode(&token); err != nil {
			return nil, fmt.Errorf("token for patient %s: %w", id, err)
		}
		patients = append(patients, PatientCredential{
			ID:         id,
			Credential: models.CredentialFromToken(token),
		})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return patients, nil
}

// parseQualtrics splits the survey-provider block into its fixed keys and
// the per-patient contact ids that share the same object.
func parseQualtrics(block map[string]json.RawMessage) (QualtricsConfig, error) {
	qc := QualtricsConfig{
		APIToken: models.PlaceholderToken,
		Contacts: map[string]string{},
	}
	for key, raw := range block {
		var val string
		if err := json.Unmarshal(raw, &val); err != nil {
			return qc, fmt.Errorf("key %s: %w", key, err)
		}
		switch key {
		case "api_token":
			qc.APIToken = val
		case "mailinglist_id":
			qc.MailingListID = val
		case "survey_id":
			qc.SurveyID = val
		default:
			qc.Contacts[key] = val
		}
	}
	return qc, nil
}
