package admin

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RelayResult is what the automation webhook answered.
type RelayResult struct {
	Approved bool
	Status   int
	Text     string
}

// Relay forwards admin actions to an external webhook, signing each body
// with HMAC-SHA256 in X-Signature.
type Relay struct {
	client *resty.Client
	url    string
	secret []byte
}

type RelayConfig struct {
	WebhookURL    string
	SigningSecret string
	Timeout       time.Duration
}

func NewRelay(cfg RelayConfig) *Relay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Relay{
		client: resty.New().SetTimeout(timeout),
		url:    cfg.WebhookURL,
		secret: []byte(cfg.SigningSecret),
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func (r *Relay) Sign(body []byte) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Forward posts {"request": request, ...fields}. Only a 2xx answer whose
// trimmed text is exactly "approved" counts as approval.
func (r *Relay) Forward(ctx context.Context, request string, fields map[string]any) (RelayResult, error) {
	if r.url == "" {
		return RelayResult{}, errors.New("relay webhook url not configured")
	}

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["request"] = request

	body, err := json.Marshal(payload)
	if err != nil {
		return RelayResult{}, err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Signature", r.Sign(body)).
		SetBody(body).
		Post(r.url)
	if err != nil {
		return RelayResult{}, err
	}

	text := strings.TrimSpace(resp.String())
	return RelayResult{
		Approved: resp.IsSuccess() && text == "approved",
		Status:   resp.StatusCode(),
		Text:     text,
	}, nil
}
