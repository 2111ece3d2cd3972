// Package whatsapp connects the session manager to WhatsApp through whatsmeow.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

var ErrClientOutdated = errors.New("whatsapp client version is outdated")

const logoutRequestTimeout = 30 * time.Second

type Config struct {
	DeviceName string
	ProxyURL   string
	QRTerminal bool
	// SendRate is the outgoing message rate per second; zero disables limiting.
	SendRate float64
}

// Dialer opens whatsmeow clients on top of a device store container.
type Dialer struct {
	container *sqlstore.Container
	cfg       Config
	limiter   *rate.Limiter
}

var devicePropsOnce sync.Once

func NewDialer(container *sqlstore.Container, cfg Config) *Dialer {
	devicePropsOnce.Do(func() {
		name := strings.TrimSpace(cfg.DeviceName)
		if name == "" {
			name = runtime.GOOS
		}
		store.DeviceProps.Os = proto.String(name)
		store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
		store.DeviceProps.RequireFullSync = proto.Bool(false)
	})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRate > 0 {
		burst := int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}

	return &Dialer{container: container, cfg: cfg, limiter: limiter}
}

// Dial resumes the device named by the stored credentials, or prepares a new
// device and streams pairing QR codes when there is none.
func (d *Dialer) Dial(ctx context.Context, auth *authstate.State, version session.Version, emit func(session.Event)) (session.Socket, error) {
	device, err := d.device(ctx, auth.Creds)
	if err != nil {
		return nil, err
	}

	if !version.IsZero() {
		store.SetWAVersion(store.WAVersionContainer(version))
	}

	client := whatsmeow.NewClient(device, log.WhatsApp("Client"))
	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true
	if d.cfg.ProxyURL != "" {
		if err := client.SetProxyAddress(d.cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	sockCtx, cancel := context.WithCancel(context.Background())
	s := &socket{
		client:     client,
		limiter:    d.limiter,
		emit:       emit,
		cancel:     cancel,
		pairedAt:   auth.Creds.PairedAt,
		qrTerminal: d.cfg.QRTerminal,
	}
	s.handlerID = client.AddEventHandler(s.handle)

	if client.Store.ID == nil {
		qrChan, err := client.GetQRChannel(sockCtx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("get QR channel: %w", err)
		}
		go s.watchQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	return s, nil
}

func (d *Dialer) device(ctx context.Context, creds *authstate.Credentials) (*store.Device, error) {
	if creds == nil || creds.Me == "" {
		return d.container.NewDevice(), nil
	}

	jid, err := types.ParseJID(creds.Me)
	if err != nil {
		log.Component("whatsapp").WithError(err).Warn("Stored device JID is not valid, pairing a new device")
		return d.container.NewDevice(), nil
	}
	device, err := d.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if device == nil {
		log.Component("whatsapp").WithField("jid", log.MaskJID(creds.Me)).Warn("Stored device not found in datastore, pairing a new device")
		return d.container.NewDevice(), nil
	}
	return device, nil
}

type socket struct {
	client     *whatsmeow.Client
	limiter    *rate.Limiter
	emit       func(session.Event)
	cancel     context.CancelFunc
	handlerID  uint32
	qrTerminal bool

	mu       sync.Mutex
	pairedAt time.Time

	closeOnce sync.Once
}

func (s *socket) handle(raw interface{}) {
	switch e := raw.(type) {
	case *events.Connected:
		s.emitCreds()
		s.emit(session.ConnectionOpen{})
	case *events.PairSuccess:
		s.mu.Lock()
		s.pairedAt = time.Now().UTC()
		s.mu.Unlock()
		log.Component("whatsapp").WithField("jid", log.MaskJID(e.ID.String())).WithField("platform", e.Platform).Info("Device paired")
		s.emitCreds()
	case *events.PushNameSetting:
		s.emitCreds()
	case *events.KeepAliveTimeout:
		log.Component("whatsapp").Warn(fmt.Sprintf("Client keepalive timeout, errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	case *events.KeepAliveRestored:
		log.Component("whatsapp").Info("Client keepalive restored")
	default:
		if evt, ok := translate(raw); ok {
			s.emit(evt)
		}
	}
}

func (s *socket) emitCreds() {
	s.mu.Lock()
	pairedAt := s.pairedAt
	s.mu.Unlock()
	s.emit(credsUpdate(s.client.Store, pairedAt))
}

func (s *socket) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch {
		case evt.Event == "code":
			if s.qrTerminal {
				printQRTerminal(evt.Code)
			}
			s.emit(session.QR{Code: evt.Code, Timeout: evt.Timeout})
		case evt.Event == whatsmeow.QRChannelSuccess.Event:
			return
		case evt.Event == whatsmeow.QRChannelTimeout.Event:
			s.emit(session.ConnectionClose{Reason: session.ReasonTimedOut, Err: errQRTimeout})
			return
		case evt.Event == whatsmeow.QRChannelClientOutdated.Event:
			s.emit(session.ConnectionClose{Reason: session.ReasonBadSession, Err: ErrClientOutdated})
			return
		case evt.Event == whatsmeow.QRChannelScannedWithoutMultidevice.Event:
			log.Component("whatsapp").Warn("QR code scanned without multi-device enabled, waiting for another scan")
		case evt.Event == "error":
			err := evt.Error
			if err == nil {
				err = errors.New("whatsapp qr channel reported an unspecified error")
			}
			s.emit(session.ConnectionClose{Reason: session.ReasonConnectionClosed, Err: err})
			return
		}
	}
}

func (s *socket) SendText(ctx context.Context, chatID string, text string) error {
	remoteJID, err := ComposeJID(chatID)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: s.client.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(text),
	}
	_, err = s.client.SendMessage(ctx, remoteJID, msgContent, msgExtra)
	return err
}

func (s *socket) Logout(ctx context.Context) error {
	if s.client.Store.ID == nil {
		return nil
	}

	logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer cancel()

	if err := s.client.Logout(logoutCtx); err != nil {
		s.client.Disconnect()
		if delErr := s.client.Store.Delete(logoutCtx); delErr != nil {
			return errors.Join(err, delErr)
		}
	}
	return nil
}

func (s *socket) Close() {
	s.closeOnce.Do(func() {
		s.client.RemoveEventHandler(s.handlerID)
		s.cancel()
		s.client.Disconnect()
	})
}

// Forget deletes the device named by creds from the datastore without
// contacting WhatsApp. The phone keeps listing the linked device until it is
// removed there.
func (d *Dialer) Forget(ctx context.Context, creds *authstate.Credentials) error {
	if creds == nil || creds.Me == "" {
		return nil
	}
	jid, err := types.ParseJID(creds.Me)
	if err != nil {
		return fmt.Errorf("parse stored device JID: %w", err)
	}
	device, err := d.container.GetDevice(ctx, jid)
	if err != nil {
		return fmt.Errorf("load device: %w", err)
	}
	if device == nil {
		return nil
	}
	return device.Delete(ctx)
}
