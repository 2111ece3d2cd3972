package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
	userAgent       = "go-whatsapp-webhook-bridge/1.0"
)

// Forwarder performs a single webhook call.
type Forwarder struct {
	client *resty.Client
	url    string
	secret string
}

func NewForwarder(cfg Config) *Forwarder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Content-Type", "application/json")
	client.OnError(func(req *resty.Request, err error) {
		if respErr, ok := responseError(err); ok {
			entry := log.Component("webhook").WithError(respErr.Err)
			if respErr.Response != nil {
				entry = entry.WithField("response", respErr.Response.String())
			}
			entry.Debug("resty error")
		}
	})

	return &Forwarder{client: client, url: cfg.URL, secret: cfg.Secret}
}

// responseError unwraps a resty response error, which resty may hand over
// wrapped by retry or middleware errors.
func responseError(err error) (*resty.ResponseError, bool) {
	var respErr *resty.ResponseError
	if !errors.As(err, &respErr) {
		return nil, false
	}
	return respErr, true
}

// Forward POSTs the payload and parses the reply. A non-2xx status is an
// error; a body that is empty or not a JSON object means no reply.
func (f *Forwarder) Forward(ctx context.Context, payload Payload) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	req := f.client.R().
		SetContext(ctx).
		SetHeader(EventHeader, string(EventMessageReceived)).
		SetBody(body)
	if f.secret != "" {
		req.SetHeader(SignatureHeader, generateSignature(body, f.secret))
	}

	resp, err := req.Post(f.url)
	if err != nil {
		return Response{}, fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return Response{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), preview(resp.String(), 200))
	}

	raw := bytes.TrimSpace(resp.Body())
	if len(raw) == 0 || raw[0] != '{' {
		return Response{}, nil
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Component("webhook").WithError(err).Debug("Webhook response is not a reply object")
		return Response{}, nil
	}
	return out, nil
}

func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
