// Package whatsapp provides a client for the WhatsApp Business Cloud API
// (Meta Graph): outbound text delivery and inbound media resolution.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// Client defines the Cloud API operations used by the bot.
type Client interface {
	// SendText delivers a text message to the given WhatsApp id.
	SendText(ctx context.Context, to, body string) error
	// MediaURL resolves an inbound media id to a short-lived download URL.
	MediaURL(ctx context.Context, mediaID string) (string, error)
	// DownloadMedia fetches media bytes from a URL returned by MediaURL.
	// Returns the content and its MIME type.
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error)
}

// DeliveryError wraps outbound delivery failures. Delivery sits outside the
// report's consistency boundary, so callers log these rather than fail the
// pipeline.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "whatsapp: delivery failed: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Graph API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token         string
	phoneNumberID string
	baseURL       string
	http          *http.Client
}

// NewClient creates a WhatsApp Cloud API client for one business phone number.
func NewClient(token, phoneNumberID string, opts ...Option) Client {
	c := &httpClient{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

func (c *httpClient) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return &DeliveryError{Err: eris.Wrap(err, "marshal send request")}
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Err: eris.Wrap(err, "create send request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{Err: eris.Wrap(err, "send request")}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Err: eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}
	return nil
}

type mediaResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

func (c *httpClient) MediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return "", eris.Wrap(err, "whatsapp: create media request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "whatsapp: media request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "whatsapp: read media response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("whatsapp: media lookup status %d: %s", resp.StatusCode, string(body))
	}

	var media mediaResponse
	if err := json.Unmarshal(body, &media); err != nil {
		return "", eris.Wrap(err, "whatsapp: unmarshal media response")
	}
	if media.URL == "" {
		return "", eris.Errorf("whatsapp: media %s has no url", mediaID)
	}
	return media.URL, nil
}

func (c *httpClient) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "whatsapp: create download request")
	}
	// Media URLs require the same bearer token as the Graph API.
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "whatsapp: download media")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("whatsapp: media download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", eris.Wrap(err, "whatsapp: read media body")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
