// Package voice talks to the dictation service used by pathologists to
// transcribe recorded findings into report text. Deployment of the service is
// optional; the client reports its configured state so handlers can answer
// 503 instead of failing mid-request.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// ErrNotConfigured is returned when no dictation endpoint is configured.
var ErrNotConfigured = errors.New("voice transcription service is not configured")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the voice client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a dictation client. An empty baseURL produces a client
// whose calls fail with ErrNotConfigured.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Transcription of long recordings is slow.
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a dictation endpoint is configured.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Transcribe uploads an audio recording and returns the transcribed text.
func (c *Client) Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// EnhanceRequest carries the text to clean up plus the report field it is
// destined for, which steers the service toward the right terminology.
type EnhanceRequest struct {
	Text      string `json:"text"`
	FieldType string `json:"field_type,omitempty"`
	Context   string `json:"context,omitempty"`
}

// EnhanceText asks the service to clean up a raw transcription into report
// prose: punctuation, casing, and expansion of dictated shorthand.
func (c *Client) EnhanceText(ctx context.Context, er EnhanceRequest) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(er)
	if err != nil {
		return "", fmt.Errorf("marshal enhance payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/enhance", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build enhance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	var out struct {
		Text string `json:"text"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call voice service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("voice service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode voice service response: %w", err)
	}
	return nil
}
