package session

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

func TestRetryPolicyNext(t *testing.T) {
	p := RetryPolicy{Base: 2 * time.Second, Max: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{50, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			got := p.Next(attempt)
			floor := RetryPolicy{Base: p.Base, Max: p.Max}.Next(attempt)
			if got < floor || got > floor+p.Jitter {
				t.Fatalf("Next(%d) = %v, want within [%v, %v]", attempt, got, floor, floor+p.Jitter)
			}
		}
	}
}

func TestRetryPolicyZeroValueFallsBack(t *testing.T) {
	if got := (RetryPolicy{}).Next(1); got != 2*time.Second {
		t.Fatalf("zero policy Next(1) = %v", got)
	}
}

func TestInboundMessageText(t *testing.T) {
	tests := []struct {
		name    string
		content *waE2E.Message
		want    string
	}{
		{"nil", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted")}}, "quoted"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (InboundMessage{Content: tt.content}).Text(); got != tt.want {
				t.Fatalf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
