package whatsapp

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

var (
	errStreamReplaced = errors.New("another client connected with this session")
	errQRTimeout      = errors.New("QR code was not scanned in time")
)

// translate maps a whatsmeow event onto a session event. Events that need
// the device store (connect, pairing, push name) are handled by the socket.
func translate(raw any) (session.Event, bool) {
	switch e := raw.(type) {
	case *events.Disconnected:
		return session.ConnectionClose{Reason: session.ReasonConnectionClosed}, true
	case *events.StreamReplaced:
		return session.ConnectionClose{Reason: session.ReasonConnectionReplaced, Err: errStreamReplaced}, true
	case *events.LoggedOut:
		return session.ConnectionClose{
			Reason: session.ReasonLoggedOut,
			Err:    fmt.Errorf("logged out on connect=%v: %s", e.OnConnect, e.Reason),
		}, true
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			return session.ConnectionClose{Reason: session.ReasonLoggedOut, Err: fmt.Errorf("%s: %s", e.Reason, e.Message)}, true
		}
		return session.ConnectionClose{
			Reason: session.DisconnectReason(int(e.Reason)),
			Err:    fmt.Errorf("%s: %s", e.Reason, e.Message),
		}, true
	case *events.TemporaryBan:
		return session.ConnectionClose{Reason: session.ReasonForbidden, Err: errors.New(e.String())}, true
	case *events.ClientOutdated:
		return session.ConnectionClose{Reason: session.ReasonBadSession, Err: ErrClientOutdated}, true
	case *events.Message:
		if e.Message == nil || e.Message.GetProtocolMessage() != nil {
			return nil, false
		}
		return session.MessageReceived{Message: session.InboundMessage{
			ID:        string(e.Info.ID),
			ChatID:    e.Info.Chat.String(),
			Sender:    e.Info.Sender.String(),
			PushName:  e.Info.PushName,
			FromMe:    e.Info.IsFromMe,
			Timestamp: e.Info.Timestamp,
			Content:   e.Message,
		}}, true
	}
	return nil, false
}

// credsUpdate builds the persisted credentials record from the device store.
// Private keys and signal sessions never leave the whatsmeow store.
func credsUpdate(device *store.Device, pairedAt time.Time) session.CredsUpdate {
	creds := &authstate.Credentials{
		Registered:     device.ID != nil,
		PushName:       device.PushName,
		Platform:       device.Platform,
		BusinessName:   device.BusinessName,
		RegistrationID: device.RegistrationID,
		PairedAt:       pairedAt,
	}
	if device.ID != nil {
		creds.Me = device.ID.String()
	}
	if !device.LID.IsEmpty() {
		creds.LID = device.LID.String()
	}
	if device.IdentityKey != nil && device.IdentityKey.Pub != nil {
		creds.IdentityKey = slices.Clone(device.IdentityKey.Pub[:])
	}
	if device.NoiseKey != nil && device.NoiseKey.Pub != nil {
		creds.NoiseKey = slices.Clone(device.NoiseKey.Pub[:])
	}
	if pk := device.SignedPreKey; pk != nil && pk.Pub != nil {
		spk := &authstate.SignedPreKey{KeyID: pk.KeyID, Public: slices.Clone(pk.Pub[:])}
		if pk.Signature != nil {
			spk.Signature = slices.Clone(pk.Signature[:])
		}
		creds.SignedPreKey = spk
	}

	return session.CredsUpdate{Creds: creds}
}
