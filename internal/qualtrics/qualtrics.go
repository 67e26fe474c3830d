// Package qualtrics wraps the Qualtrics distributions API for SleepEMA.
//
// It builds and sends (or, in dry-run mode, only reports) the email and SMS
// survey invitations for a triggered patient.
package qualtrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/SleepEMA/internal/models"
)

// DefaultBaseURL is the production Qualtrics datacenter endpoint.
const DefaultBaseURL = "https://iad1.qualtrics.com"

// Distribution endpoint paths under the base URL.
const (
	distributionsPath = "/API/v3/distributions"
	smsPath           = distributionsPath + "/sms"
)

// DefaultTimeout bounds each distribution request. Single attempt, no retry.
const DefaultTimeout = 30 * time.Second

// inviteText is the fixed invitation body. The ${l://SurveyURL} macro is
// expanded by Qualtrics and must be carried verbatim.
const inviteText = "Please fill out this survey: ${l://SurveyURL}"

// SenderIdentity is the from/reply-to identity stamped on email invitations.
type SenderIdentity struct {
	FromEmail    string `json:"from_email"`
	ReplyToEmail string `json:"reply_to_email"`
	FromName     string `json:"from_name"`
}

// Opts holds configuration options for the Qualtrics client.
type Opts struct {
	BaseURL       string
	APIToken      string
	MailingListID string
	SurveyID      string
	Contacts      map[string]string
	Sender        SenderIdentity
	HTTPClient    *http.Client
}

// Option defines a configuration option for the Qualtrics client.
type Option func(*Opts)

// WithBaseURL overrides the API base URL. Used by tests to point the client
// at a local server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIToken sets the static API token sent in the X-API-TOKEN header.
func WithAPIToken(token string) Option {
	return func(o *Opts) { o.APIToken = token }
}

// WithMailingListID sets the mailing list all invitations address.
func WithMailingListID(id string) Option {
	return func(o *Opts) { o.MailingListID = id }
}

// WithSurveyID sets the survey the invitations link to.
func WithSurveyID(id string) Option {
	return func(o *Opts) { o.SurveyID = id }
}

// WithContacts sets the patient-id to contact-id mapping.
func WithContacts(contacts map[string]string) Option {
	return func(o *Opts) { o.Contacts = contacts }
}

// WithSender sets the email sender identity.
func WithSender(s SenderIdentity) Option {
	return func(o *Opts) { o.Sender = s }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends survey invitations through the Qualtrics distributions API.
type Client struct {
	baseURL       string
	apiToken      string
	placeholder   bool
	mailingListID string
	surveyID      string
	contacts      map[string]string
	sender        SenderIdentity
	httpClient    *http.Client
}

// NewClient creates a Qualtrics client. A placeholder API token permanently
// forces dry-run so fake credentials can never reach the provider.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		Sender: SenderIdentity{
			FromEmail:    "study-team@example.edu",
			ReplyToEmail: "study-team@example.edu",
			FromName:     "Research Team",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	placeholder := !models.CredentialFromToken(cfg.APIToken).IsSet()
	slog.Debug("Qualtrics client configured",
		"base_url", cfg.BaseURL,
		"api_token_set", !placeholder,
		"mailing_list_set", cfg.MailingListID != "",
		"survey_set", cfg.SurveyID != "")
	return &Client{
		baseURL:       cfg.BaseURL,
		apiToken:      cfg.APIToken,
		placeholder:   placeholder,
		mailingListID: cfg.MailingListID,
		surveyID:      cfg.SurveyID,
		contacts:      cfg.Contacts,
		sender:        cfg.Sender,
		httpClient:    cfg.HTTPClient,
	}
}

// recipients addresses one invitation to a mailing-list contact.
type recipients struct {
	MailingListID string `json:"mailingListId"`
	ContactID     string `json:"contactId"`
}

type message struct {
	MessageText string `json:"messageText"`
}

// emailPayload is the body for the email distribution endpoint.
type emailPayload struct {
	Message    message    `json:"message"`
	Recipients recipients `json:"recipients"`
	Header     struct {
		FromEmail    string `json:"fromEmail"`
		ReplyToEmail string `json:"replyToEmail"`
		FromName     string `json:"fromName"`
		Subject      string `json:"subject"`
	} `json:"header"`
	SurveyLink struct {
		SurveyID string `json:"surveyId"`
		Type     string `json:"type"`
	} `json:"surveyLink"`
	SendDate string `json:"sendDate"`
}

// smsPayload is the body for the SMS distribution endpoint.
type smsPayload struct {
	Message    message    `json:"message"`
	Recipients recipients `json:"recipients"`
	SurveyID   string     `json:"surveyId"`
	SendDate   string     `json:"sendDate"`
	Method     string     `json:"method"`
	Name       string     `json:"name"`
}

func (c *Client) recipientsFor(patientID string) recipients {
	return recipients{
		MailingListID: c.mailingListID,
		ContactID:     c.contacts[patientID],
	}
}

func (c *Client) buildEmailPayload(patientID string, now time.Time) emailPayload {
	p := emailPayload{
		Message:    message{MessageText: inviteText},
		Recipients: c.recipientsFor(patientID),
		SendDate:   now.UTC().Format("2006-01-02T15:04:05Z"),
	}
	p.Header.FromEmail = c.sender.FromEmail
	p.Header.ReplyToEmail = c.sender.ReplyToEmail
	p.Header.FromName = c.sender.FromName
	p.Header.Subject = fmt.Sprintf("Survey – %s", now.UTC().Format("2006-01-02 15:04"))
	p.SurveyLink.SurveyID = c.surveyID
	p.SurveyLink.Type = "Individual"
	return p
}

func (c *Client) buildSMSPayload(patientID string, now time.Time) smsPayload {
	return smsPayload{
		Message:    message{MessageText: inviteText},
		Recipients: c.recipientsFor(patientID),
		SurveyID:   c.surveyID,
		SendDate:   now.UTC().Format("2006-01-02T15:04:05Z"),
		Method:     "Invite",
		Name:       "SMS API Trigger",
	}
}

// Dispatch sends the email and SMS invitations for one patient, one run.
//
// It returns the effective dry-run mode and the channels that were sent (or
// would have been sent). A placeholder API token forces dry-run regardless of
// the caller's requested mode. Each payload gets a single attempt; an HTTP
// failure surfaces as a dispatch error for this patient only.
func (c *Client) Dispatch(ctx context.Context, patientID string, dryRun bool) (bool, []models.DispatchChannel, error) {
	if c.placeholder && !dryRun {
		slog.Warn("Qualtrics API token is a placeholder, forcing dry-run", "patient_id", patientID)
		dryRun = true
	}

	now := time.Now()
	email := c.buildEmailPayload(patientID, now)
	sms := c.buildSMSPayload(patientID, now)
	channels := []models.DispatchChannel{models.ChannelEmail, models.ChannelSMS}

	if dryRun {
		slog.Info("[DRY-RUN] Would POST email invite", "url", c.baseURL+distributionsPath,
			"patient_id", patientID, "contact_id", email.Recipients.ContactID, "survey_id", c.surveyID)
		slog.Info("[DRY-RUN] Would POST SMS invite", "url", c.baseURL+smsPath,
			"patient_id", patientID, "contact_id", sms.Recipients.ContactID, "survey_id", c.surveyID)
		return true, channels, nil
	}

	slog.Info("Sending email invite", "patient_id", patientID)
	if err := c.post(ctx, c.baseURL+distributionsPath, email); err != nil {
		return false, nil, fmt.Errorf("email invite for %s: %w", patientID, err)
	}
	slog.Info("Sending SMS invite", "patient_id", patientID)
	if err := c.post(ctx, c.baseURL+smsPath, sms); err != nil {
		return false, channels[:1], fmt.Errorf("sms invite for %s: %w", patientID, err)
	}
	return false, channels, nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-TOKEN", c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: qualtrics returned status %d", models.ErrProviderRequest, resp.StatusCode)
	}
	return nil
}
