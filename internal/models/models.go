// Package models defines the core data structures for SleepEMA.
//
// It includes raw sleep-provider records, trigger decisions, and dispatch
// outcomes, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// SleepTypeLongSleep is the provider's session category for a full night of
// sleep. Only sessions of this type carry a nightly total worth evaluating.
const SleepTypeLongSleep = "long_sleep"

// BaselineNights is the number of nights preceding the most recent night
// that form the deviation baseline.
const BaselineNights = 7

// WindowNights is the full evaluation window: the baseline plus the most
// recent night.
const WindowNights = BaselineNights + 1

// Default trigger thresholds. Callers thread these explicitly rather than
// relying on defaults buried in function signatures.
const (
	// DefaultDeviationPercent is the percent change from baseline above which
	// an assessment fires.
	DefaultDeviationPercent = 25.0
	// DefaultMinHours is the absolute nightly floor below which an assessment
	// fires regardless of baseline.
	DefaultMinHours = 4.0
)

// PlaceholderToken is the sentinel prefix meaning "no real credential
// configured". Tokens equal to or starting with it select offline sample
// data and force dry-run dispatch.
const PlaceholderToken = "xxx"

// Error variables for better error handling and testability
var (
	// ErrInsufficientData indicates fewer qualifying nights than the
	// evaluation window requires. Scoped to one patient; never aborts a run.
	ErrInsufficientData = errors.New("insufficient nightly data for deviation rule")
	// ErrProviderRequest indicates a non-success response from the sleep or
	// survey provider. Scoped to one patient; no retry.
	ErrProviderRequest = errors.New("provider request failed")
	// ErrConfigMissing indicates the configuration file is absent. Recovered
	// locally by substituting a placeholder skeleton.
	ErrConfigMissing = errors.New("configuration file missing")
)

// SleepSession is one raw record from the sleep provider. Records are
// decoded leniently: a missing total_sleep_duration stays nil and the record
// is excluded during normalization rather than treated as an error.
type SleepSession struct {
	Day                string   `json:"day"`
	Type               string   `json:"type"`
	TotalSleepDuration *float64 `json:"total_sleep_duration,omitempty"`
}

// Qualifies reports whether the session contributes a nightly total: it must
// be a long-sleep session and actually carry a duration.
func (s SleepSession) Qualifies() bool {
	return s.Type == SleepTypeLongSleep && s.TotalSleepDuration != nil
}

// TriggerDecision is the result of evaluating a nightly-duration series.
type TriggerDecision struct {
	LastNightHours    float64 `json:"last_night_hours"`
	BaselineMeanHours float64 `json:"baseline_mean_hours"`
	PercentChange     float64 `json:"percent_change"`
	Triggered         bool    `json:"triggered"`
}

// Credential is a patient's sleep-provider access token as a tagged value:
// either a real token or unset. This replaces prefix-sniffing the
// placeholder string at every call site.
type Credential struct {
	token string
}

// CredentialFromToken classifies a configured token string. Empty tokens and
// tokens starting with the placeholder sentinel are treated as unset.
func CredentialFromToken(token string) Credential {
	if token == "" || strings.HasPrefix(token, PlaceholderToken) {
		return Credential{}
	}
	return Credential{token: token}
}

// IsSet reports whether a real token was configured.
func (c Credential) IsSet() bool { return c.token != "" }

// Token returns the raw token. Empty when the credential is unset.
func (c Credential) Token() string { return c.token }

// DispatchChannel identifies one delivery path for a survey invitation.
type DispatchChannel string

const (
	// ChannelEmail is the survey provider's email distribution endpoint.
	ChannelEmail DispatchChannel = "email"
	// ChannelSMS is the survey provider's SMS distribution endpoint.
	ChannelSMS DispatchChannel = "sms"
	// ChannelTwilioSMS is the optional direct heads-up text sent through
	// Twilio when that channel is configured.
	ChannelTwilioSMS DispatchChannel = "twilio_sms"
)

// DispatchOutcome records what happened for one patient in one run: whether
// the trigger fired, whether invitations were actually sent or only
// simulated, and over which channels.
type DispatchOutcome struct {
	RunID      string            `json:"run_id"`
	PatientID  string            `json:"patient_id"`
	Decision   TriggerDecision   `json:"decision"`
	Dispatched bool              `json:"dispatched"`
	DryRun     bool              `json:"dry_run"`
	Channels   []DispatchChannel `json:"channels,omitempty"`
	SentAt     time.Time         `json:"sent_at,omitzero"`
}

// PatientResult is one row of a run summary: the outcome for a patient, or
// the error that aborted that patient's processing.
type PatientResult struct {
	PatientID string           `json:"patient_id"`
	Outcome   *DispatchOutcome `json:"outcome,omitempty"`
	Err       error            `json:"-"`
}
