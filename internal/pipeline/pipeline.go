// Package pipeline sequences the SleepEMA run: ingest, normalize, decide,
// dispatch. Patients are processed one at a time and a failure for one
// patient never aborts the others.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/SleepEMA/internal/config"
	"github.com/BTreeMap/SleepEMA/internal/models"
	"github.com/BTreeMap/SleepEMA/internal/oura"
	"github.com/BTreeMap/SleepEMA/internal/qualtrics"
	"github.com/BTreeMap/SleepEMA/internal/trigger"
	"github.com/BTreeMap/SleepEMA/internal/twiliosms"
)

// headsUpText is the optional direct SMS sent alongside the survey
// invitation when the Twilio channel is configured.
const headsUpText = "A short sleep survey is on its way to you. It takes about a minute."

// SleepFetcher acquires raw sleep records for one patient.
type SleepFetcher interface {
	FetchSleep(ctx context.Context, days int) ([]models.SleepSession, error)
}

// SurveyDispatcher sends (or simulates) the survey invitations for one
// triggered patient and reports the effective dry-run mode.
type SurveyDispatcher interface {
	Dispatch(ctx context.Context, patientID string, dryRun bool) (bool, []models.DispatchChannel, error)
}

// Opts holds configuration options for the Runner.
type Opts struct {
	DryRun       bool
	DeviationPct float64
	MinHours     float64
	OuraBaseURL  string
	Dispatcher   SurveyDispatcher
	FetcherFor   func(models.Credential) SleepFetcher
	SMSSender    twiliosms.Sender
}

// Option defines a configuration option for the Runner.
type Option func(*Opts)

// WithDryRun requests simulation instead of real dispatch. Placeholder
// provider credentials force dry-run regardless of this setting.
func WithDryRun(dry bool) Option {
	return func(o *Opts) { o.DryRun = dry }
}

// WithThresholds sets the deviation percent and minimum-hours triggers.
func WithThresholds(deviationPct, minHours float64) Option {
	return func(o *Opts) {
		o.DeviationPct = deviationPct
		o.MinHours = minHours
	}
}

// WithOuraBaseURL overrides the sleep-provider base URL for all patients.
func WithOuraBaseURL(u string) Option {
	return func(o *Opts) { o.OuraBaseURL = u }
}

// WithDispatcher injects a survey dispatcher, replacing the Qualtrics client
// built from configuration.
func WithDispatcher(d SurveyDispatcher) Option {
	return func(o *Opts) { o.Dispatcher = d }
}

// WithFetcherFactory injects the per-credential sleep fetcher constructor.
func WithFetcherFactory(f func(models.Credential) SleepFetcher) Option {
	return func(o *Opts) { o.FetcherFor = f }
}

// WithSMSSender injects the optional direct-SMS channel.
func WithSMSSender(s twiliosms.Sender) Option {
	return func(o *Opts) { o.SMSSender = s }
}

// Runner drives one complete run over all configured patients.
type Runner struct {
	cfg          *config.Config
	dryRun       bool
	deviationPct float64
	minHours     float64
	dispatcher   SurveyDispatcher
	fetcherFor   func(models.Credential) SleepFetcher
	sms          twiliosms.Sender
	smsNumbers   map[string]string
}

// NewRunner wires a Runner from configuration. Unless overridden by options,
// sleep records come from the Oura client, invitations go through the
// Qualtrics client, and the Twilio channel is enabled only when real Twilio
// credentials are configured.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	o := Opts{
		DeviationPct: models.DefaultDeviationPercent,
		MinHours:     models.DefaultMinHours,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.Dispatcher == nil {
		o.Dispatcher = qualtrics.NewClient(
			qualtrics.WithAPIToken(cfg.Qualtrics.APIToken),
			qualtrics.WithMailingListID(cfg.Qualtrics.MailingListID),
			qualtrics.WithSurveyID(cfg.Qualtrics.SurveyID),
			qualtrics.WithContacts(cfg.Qualtrics.Contacts),
		)
	}
	if o.FetcherFor == nil {
		baseURL := o.OuraBaseURL
		o.FetcherFor = func(cred models.Credential) SleepFetcher {
			clientOpts := []oura.Option{oura.WithCredential(cred)}
			if baseURL != "" {
				clientOpts = append(clientOpts, oura.WithBaseURL(baseURL))
			}
			return oura.NewClient(clientOpts...)
		}
	}
	if o.SMSSender == nil && cfg.Twilio.Enabled() {
		client, err := twiliosms.NewClient(
			twiliosms.WithAccountSID(cfg.Twilio.AccountSID),
			twiliosms.WithAuthToken(cfg.Twilio.AuthToken),
			twiliosms.WithFromNumber(cfg.Twilio.FromNumber),
		)
		if err != nil {
			slog.Warn("Twilio channel disabled", "error", err)
		} else {
			o.SMSSender = client
		}
	}

	return &Runner{
		cfg:          cfg,
		dryRun:       o.DryRun,
		deviationPct: o.DeviationPct,
		minHours:     o.MinHours,
		dispatcher:   o.Dispatcher,
		fetcherFor:   o.FetcherFor,
		sms:          o.SMSSender,
		smsNumbers:   cfg.Twilio.Numbers,
	}
}

// RunForPatient executes the full pipeline for one patient: acquire records
// (sample data when the credential is unset), normalize, evaluate the
// trigger, and dispatch if it fired. Errors abort this patient only.
func (r *Runner) RunForPatient(ctx context.Context, runID string, patient config.PatientCredential) (models.DispatchOutcome, error) {
	outcome := models.DispatchOutcome{RunID: runID, PatientID: patient.ID, DryRun: r.dryRun}

	records, err := r.fetcherFor(patient.Credential).FetchSleep(ctx, models.WindowNights)
	if err != nil {
		return outcome, fmt.Errorf("fetching sleep records for %s: %w", patient.ID, err)
	}

	hours := trigger.Normalize(records)
	decision, err := trigger.Evaluate(hours, r.deviationPct, r.minHours)
	if err != nil {
		return outcome, fmt.Errorf("evaluating trigger for %s: %w", patient.ID, err)
	}
	outcome.Decision = decision

	slog.Info("Sleep metrics computed",
		"patient_id", patient.ID,
		"last_night_hours", round2(decision.LastNightHours),
		"baseline_mean_hours", round2(decision.BaselineMeanHours),
		"percent_change", round2(decision.PercentChange),
		"triggered", decision.Triggered)

	if !decision.Triggered {
		slog.Info("No trigger for this patient", "patient_id", patient.ID)
		return outcome, nil
	}

	slog.Info("Trigger condition met, dispatching survey", "patient_id", patient.ID)
	dryEffective, channels, err := r.dispatcher.Dispatch(ctx, patient.ID, r.dryRun)
	outcome.DryRun = dryEffective
	outcome.Channels = channels
	if err != nil {
		return outcome, fmt.Errorf("dispatching survey for %s: %w", patient.ID, err)
	}
	if !dryEffective {
		outcome.Dispatched = true
		outcome.SentAt = time.Now().UTC()
	}

	if err := r.sendHeadsUp(ctx, patient.ID, dryEffective, &outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// sendHeadsUp sends the optional direct-SMS notification when the Twilio
// channel is configured and the patient has a number on file.
func (r *Runner) sendHeadsUp(ctx context.Context, patientID string, dryRun bool, outcome *models.DispatchOutcome) error {
	if r.sms == nil {
		return nil
	}
	number, ok := r.smsNumbers[patientID]
	if !ok || number == "" {
		slog.Debug("No phone number on file, skipping heads-up SMS", "patient_id", patientID)
		return nil
	}
	if dryRun {
		slog.Info("[DRY-RUN] Would send heads-up SMS", "patient_id", patientID, "to", number)
		outcome.Channels = append(outcome.Channels, models.ChannelTwilioSMS)
		return nil
	}
	if err := r.sms.SendSMS(ctx, number, headsUpText); err != nil {
		return fmt.Errorf("heads-up SMS for %s: %w", patientID, err)
	}
	outcome.Channels = append(outcome.Channels, models.ChannelTwilioSMS)
	return nil
}

// RunOnce processes every configured patient in configuration order and
// returns one result row per patient. A patient's error is recorded in their
// row and processing continues with the next patient.
func (r *Runner) RunOnce(ctx context.Context) []models.PatientResult {
	runID := uuid.NewString()
	slog.Info("Starting run", "run_id", runID, "patients", len(r.cfg.Patients),
		"dry_run", r.dryRun, "deviation_pct", r.deviationPct, "min_hours", r.minHours)

	results := make([]models.PatientResult, 0, len(r.cfg.Patients))
	for _, patient := range r.cfg.Patients {
		slog.Info("Processing patient", "patient_id", patient.ID)
		outcome, err := r.RunForPatient(ctx, runID, patient)
		if err != nil {
			slog.Error("Patient processing failed", "patient_id", patient.ID, "error", err)
			results = append(results, models.PatientResult{PatientID: patient.ID, Err: err})
			continue
		}
		results = append(results, models.PatientResult{PatientID: patient.ID, Outcome: &outcome})
	}

	slog.Info("Run complete", "run_id", runID, "patients", len(results))
	return results
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
