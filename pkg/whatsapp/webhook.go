package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// InboundImage is one image message extracted from a webhook delivery.
type InboundImage struct {
	From    string // sender WhatsApp id
	MediaID string
}

// webhookPayload mirrors the Cloud API webhook envelope, down to the message
// fields the bot cares about.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From  string `json:"from"`
					Type  string `json:"type"`
					Image *struct {
						ID string `json:"id"`
					} `json:"image"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook extracts image messages from a webhook delivery body.
// Non-image messages and status updates are ignored.
func ParseWebhook(body []byte) ([]InboundImage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "whatsapp: parse webhook body")
	}

	var images []InboundImage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "image" || msg.Image == nil {
					continue
				}
				if msg.From == "" || msg.Image.ID == "" {
					continue
				}
				images = append(images, InboundImage{From: msg.From, MediaID: msg.Image.ID})
			}
		}
	}
	return images, nil
}

// VerifyToken handles the webhook subscription handshake. It returns the
// challenge to echo back when the mode and token match.
func VerifyToken(query url.Values, expected string) (challenge string, ok bool) {
	if expected == "" {
		return "", false
	}
	if query.Get("hub.mode") != "subscribe" {
		return "", false
	}
	if query.Get("hub.verify_token") != expected {
		return "", false
	}
	return query.Get("hub.challenge"), true
}

// ValidateSignature checks the X-Hub-Signature-256 header against the raw
// request body. An empty appSecret disables validation.
func ValidateSignature(body []byte, header, appSecret string) bool {
	if appSecret == "" {
		return true
	}
	sig := strings.TrimPrefix(header, "sha256=")
	if sig == header || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
