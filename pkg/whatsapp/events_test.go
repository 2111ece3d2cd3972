package whatsapp

import (
	"bytes"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.mau.fi/whatsmeow/util/keys"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

func TestTranslateConnectionEvents(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want session.DisconnectReason
	}{
		{"disconnected", &events.Disconnected{}, session.ReasonConnectionClosed},
		{"stream replaced", &events.StreamReplaced{}, session.ReasonConnectionReplaced},
		{"logged out", &events.LoggedOut{Reason: events.ConnectFailureLoggedOut}, session.ReasonLoggedOut},
		{"connect failure logged out", &events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}, session.ReasonLoggedOut},
		{"connect failure unavailable", &events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable}, session.ReasonUnavailable},
		{"temporary ban", &events.TemporaryBan{Code: events.TempBanSentToTooManyPeople, Expire: time.Hour}, session.ReasonForbidden},
		{"client outdated", &events.ClientOutdated{}, session.ReasonBadSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, ok := translate(tt.in)
			if !ok {
				t.Fatalf("event not translated")
			}
			closed, ok := evt.(session.ConnectionClose)
			if !ok {
				t.Fatalf("got %T, want ConnectionClose", evt)
			}
			if closed.Reason != tt.want {
				t.Fatalf("reason = %v, want %v", closed.Reason, tt.want)
			}
		})
	}
}

func TestTranslateMessage(t *testing.T) {
	chat := types.NewJID("6281234567890", types.DefaultUserServer)
	in := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat, IsFromMe: true},
			ID:            "3EB0ABC",
			PushName:      "Budi",
		},
		Message: &waE2E.Message{Conversation: proto.String("halo")},
	}

	evt, ok := translate(in)
	if !ok {
		t.Fatalf("message not translated")
	}
	msg := evt.(session.MessageReceived).Message
	if msg.ID != "3EB0ABC" || msg.ChatID != "6281234567890@s.whatsapp.net" || !msg.FromMe || msg.PushName != "Budi" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Text() != "halo" {
		t.Fatalf("text = %q", msg.Text())
	}
}

func TestTranslateSkipsProtocolMessages(t *testing.T) {
	in := &events.Message{Message: &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{}}}
	if _, ok := translate(in); ok {
		t.Fatalf("protocol message was translated")
	}
	if _, ok := translate(&events.Message{}); ok {
		t.Fatalf("empty message was translated")
	}
	if _, ok := translate(&events.Receipt{}); ok {
		t.Fatalf("receipt was translated")
	}
}

func TestCredsUpdateFromDevice(t *testing.T) {
	jid := types.NewADJID("6281234567890", 0, 7)
	lid := types.NewJID("123456789", types.HiddenUserServer)
	preKey := keys.NewPreKey(3)
	sig := [64]byte{9, 9}
	preKey.Signature = &sig

	device := &store.Device{
		ID:             &jid,
		LID:            lid,
		RegistrationID: 4242,
		PushName:       "Bridge",
		Platform:       "android",
		IdentityKey:    keys.NewKeyPair(),
		NoiseKey:       keys.NewKeyPair(),
		SignedPreKey:   preKey,
	}
	pairedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	update := credsUpdate(device, pairedAt)
	creds := update.Creds
	if !creds.Registered || creds.Me != jid.String() || creds.LID != lid.String() {
		t.Fatalf("creds identity = %+v", creds)
	}
	if creds.RegistrationID != 4242 || creds.PushName != "Bridge" || creds.Platform != "android" || !creds.PairedAt.Equal(pairedAt) {
		t.Fatalf("creds = %+v", creds)
	}
	if !bytes.Equal(creds.IdentityKey, device.IdentityKey.Pub[:]) {
		t.Fatalf("identity key mismatch")
	}
	if creds.SignedPreKey == nil || creds.SignedPreKey.KeyID != 3 || !bytes.Equal(creds.SignedPreKey.Signature, sig[:]) {
		t.Fatalf("signed pre key = %+v", creds.SignedPreKey)
	}

	// The record owns its buffers.
	device.IdentityKey.Pub[0] ^= 0xff
	if bytes.Equal(creds.IdentityKey, device.IdentityKey.Pub[:]) {
		t.Fatalf("identity key aliases device memory")
	}
}

func TestCredsUpdateForUnpairedDevice(t *testing.T) {
	update := credsUpdate(&store.Device{NoiseKey: keys.NewKeyPair()}, time.Time{})
	if update.Creds.Registered || update.Creds.Me != "" {
		t.Fatalf("creds = %+v", update.Creds)
	}
	if update.Creds.IdentityKey != nil || update.Creds.SignedPreKey != nil {
		t.Fatalf("unexpected key material for unpaired device: %+v", update.Creds)
	}
}
