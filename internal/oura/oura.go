// Package oura wraps the Oura Cloud v2 sleep API for SleepEMA.
//
// It also bundles an offline sample dataset so the pipeline can run without
// any real credential.
package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	_ "embed"

	"github.com/BTreeMap/SleepEMA/internal/models"
)

// DefaultBaseURL is the production Oura Cloud endpoint.
const DefaultBaseURL = "https://api.ouraring.com"

// sleepPath is the v2 sleep collection path under the base URL.
const sleepPath = "/v2/usercollection/sleep"

// DefaultTimeout bounds each provider request. No retry on failure.
const DefaultTimeout = 30 * time.Second

//go:embed sample_sleep.json
var sampleSleepJSON []byte

// Opts holds configuration options for the Oura client.
type Opts struct {
	BaseURL    string
	Credential models.Credential
	HTTPClient *http.Client
}

// Option defines a configuration option for the Oura client.
type Option func(*Opts)

// WithBaseURL overrides the Oura API base URL. Used by tests to point the
// client at a local server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithCredential sets the patient's access credential.
func WithCredential(c models.Credential) Option {
	return func(o *Opts) { o.Credential = c }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client fetches sleep sessions for one patient.
type Client struct {
	baseURL    string
	credential models.Credential
	httpClient *http.Client
}

// NewClient creates an Oura client. With an unset credential the client
// serves the bundled sample dataset instead of calling the network.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("Oura client configured", "base_url", cfg.BaseURL, "credential_set", cfg.Credential.IsSet())
	return &Client{
		baseURL:    cfg.BaseURL,
		credential: cfg.Credential,
		httpClient: cfg.HTTPClient,
	}
}

// sleepResponse is the provider's envelope around session records.
type sleepResponse struct {
	Data []models.SleepSession `json:"data"`
}

// SampleRecords returns the bundled offline dataset.
func SampleRecords() ([]models.SleepSession, error) {
	var resp sleepResponse
	if err := json.Unmarshal(sampleSleepJSON, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode bundled sample data: %w", err)
	}
	return resp.Data, nil
}

// FetchSleep returns raw sleep records for a trailing window of the given
// number of days ending today.
//
// When no real credential is configured it loads the bundled sample dataset
// and never touches the network, so the pipeline runs fully offline. Live
// results are sorted by day ascending; the provider's raw ordering is not
// guaranteed.
func (c *Client) FetchSleep(ctx context.Context, days int) ([]models.SleepSession, error) {
	if !c.credential.IsSet() {
		slog.Info("Using bundled sample sleep data (offline mode)")
		return SampleRecords()
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	reqURL, err := url.Parse(c.baseURL + sleepPath)
	if err != nil {
		return nil, fmt.Errorf("invalid Oura base URL: %w", err)
	}
	q := reqURL.Query()
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Oura request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credential.Token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderRequest, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: oura returned status %d", models.ErrProviderRequest, resp.StatusCode)
	}

	var payload sleepResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Oura response: %w", err)
	}

	records := payload.Data
	sort.SliceStable(records, func(i, j int) bool { return records[i].Day < records[j].Day })
	slog.Debug("Fetched sleep records from Oura", "count", len(records),
		"start_date", start.Format("2006-01-02"), "end_date", end.Format("2006-01-02"))
	return records, nil
}
