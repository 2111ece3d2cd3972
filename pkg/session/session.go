// Package session owns the single WhatsApp connection of the bridge: the
// socket handle, the pairing QR code, the connection state and the reconnect
// policy. The protocol library sits behind the Dialer and Socket interfaces.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
)

var (
	ErrNotConnected = errors.New("WhatsApp is not connected")
	ErrClosed       = errors.New("session manager is closed")
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateAwaitingQR   State = "awaiting-qr"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateLoggedOut    State = "logged-out"
)

// DisconnectReason is the numeric status attached to a connection close.
type DisconnectReason int

const (
	ReasonLoggedOut           DisconnectReason = 401
	ReasonForbidden           DisconnectReason = 403
	ReasonTimedOut            DisconnectReason = 408
	ReasonMultideviceMismatch DisconnectReason = 411
	ReasonConnectionClosed    DisconnectReason = 428
	ReasonConnectionReplaced  DisconnectReason = 440
	ReasonBadSession          DisconnectReason = 500
	ReasonUnavailable         DisconnectReason = 503
	ReasonRestartRequired     DisconnectReason = 515

	ReasonConnectionLost = ReasonTimedOut
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonLoggedOut:
		return "logged out"
	case ReasonForbidden:
		return "forbidden"
	case ReasonTimedOut:
		return "timed out"
	case ReasonMultideviceMismatch:
		return "multi-device mismatch"
	case ReasonConnectionClosed:
		return "connection closed"
	case ReasonConnectionReplaced:
		return "connection replaced"
	case ReasonBadSession:
		return "bad session"
	case ReasonUnavailable:
		return "unavailable"
	case ReasonRestartRequired:
		return "restart required"
	default:
		return fmt.Sprintf("status %d", int(r))
	}
}

// Version is the WhatsApp Web client version announced on connect.
// The zero value leaves the protocol library default in place.
type Version [3]uint32

func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// Event is one of QR, ConnectionOpen, ConnectionClose, CredsUpdate or
// MessageReceived.
type Event interface {
	isEvent()
}

type QR struct {
	Code    string
	Timeout time.Duration
}

type ConnectionOpen struct{}

type ConnectionClose struct {
	Reason DisconnectReason
	Err    error
}

// CredsUpdate carries the full credentials record. Signal key material stays
// in the protocol library's own device store.
type CredsUpdate struct {
	Creds *authstate.Credentials
}

type MessageReceived struct {
	Message InboundMessage
}

func (QR) isEvent()              {}
func (ConnectionOpen) isEvent()  {}
func (ConnectionClose) isEvent() {}
func (CredsUpdate) isEvent()     {}
func (MessageReceived) isEvent() {}

// InboundMessage is a chat message delivered by the protocol library.
type InboundMessage struct {
	ID        string
	ChatID    string
	Sender    string
	PushName  string
	FromMe    bool
	Timestamp time.Time
	Content   *waE2E.Message
}

// Text returns the plain conversation text, the extended text, or "".
func (m InboundMessage) Text() string {
	if text := m.Content.GetConversation(); text != "" {
		return text
	}
	return m.Content.GetExtendedTextMessage().GetText()
}

// Socket is an open protocol connection.
type Socket interface {
	SendText(ctx context.Context, chatID string, text string) error
	Logout(ctx context.Context) error
	Close()
}

// Dialer opens a Socket with the given auth state. Events from the socket,
// including ones raised before Dial returns, are passed to emit.
type Dialer interface {
	Dial(ctx context.Context, auth *authstate.State, version Version, emit func(Event)) (Socket, error)
}

// VersionSource resolves the client version to announce.
type VersionSource func(ctx context.Context) (Version, error)

// MessageHandler receives inbound messages. It must not block for long.
type MessageHandler func(msg InboundMessage)
