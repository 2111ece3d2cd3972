package webhook

import (
	"context"
	"time"
)

type EventType string

const (
	EventMessageReceived EventType = "message.received"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultDedupeTTL = 10 * time.Minute
)

// Payload is the body POSTed to the webhook for every inbound message.
type Payload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Response is the optional webhook answer. A non-empty Reply is sent back to
// the chat the message came from.
type Response struct {
	Reply string `json:"reply,omitempty"`
}

type Config struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	Workers   int
	QueueSize int
	DedupeTTL time.Duration
}

// Sender delivers the webhook reply back to WhatsApp.
type Sender interface {
	SendText(ctx context.Context, chatID string, text string) error
}
