package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
)

const persistTimeout = 30 * time.Second

// Scheduler runs fn after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func afterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type Options struct {
	Retry     RetryPolicy
	Version   VersionSource
	OnMessage MessageHandler
	Schedule  Scheduler
}

// Status is a point-in-time view of the session.
type Status struct {
	State     State
	Connected bool
	QR        string
	Me        string
	Attempt   int
	// RetryPending reports that a re-dial is scheduled.
	RetryPending bool
	ChangedAt    time.Time
}

// Manager keeps exactly one live socket and re-dials it after unexpected
// closes. Events raised by a socket that has since been replaced are ignored.
type Manager struct {
	dialer    Dialer
	store     *authstate.Store
	retry     RetryPolicy
	version   VersionSource
	onMessage MessageHandler
	schedule  Scheduler
	logger    *logrus.Entry

	mu         sync.Mutex
	generation uint64
	socket     Socket
	auth       *authstate.State
	state      State
	qr         string
	attempt    int
	changedAt  time.Time
	stopRetry  func() bool
	closed     bool
}

func NewManager(dialer Dialer, store *authstate.Store, opts Options) *Manager {
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Schedule == nil {
		opts.Schedule = afterFunc
	}

	return &Manager{
		dialer:    dialer,
		store:     store,
		retry:     opts.Retry,
		version:   opts.Version,
		onMessage: opts.OnMessage,
		schedule:  opts.Schedule,
		logger:    log.Component("session"),
		state:     StateIdle,
		changedAt: time.Now(),
	}
}

// Start loads the auth state and dials a new socket, replacing any current
// one. A failed dial schedules a retry and returns the error.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cancelRetryLocked()
	m.generation++
	gen := m.generation
	old := m.socket
	m.socket = nil
	m.qr = ""
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	auth, err := authstate.Load(ctx, m.store)
	if err != nil {
		m.failStart(gen)
		return fmt.Errorf("load auth state: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return nil
	}
	m.auth = auth
	m.mu.Unlock()

	version := m.resolveVersion(ctx)
	m.logger.WithFields(logrus.Fields{
		"registered": auth.Creds.Registered,
		"version":    version.String(),
	}).Info("Connecting to WhatsApp")

	sock, err := m.dialer.Dial(ctx, auth, version, func(evt Event) {
		m.handle(gen, evt)
	})
	if err != nil {
		m.failStart(gen)
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		sock.Close()
		return nil
	}
	m.socket = sock
	m.mu.Unlock()
	return nil
}

// Reconnect drops any pending retry and dials immediately.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	m.attempt = 0
	m.mu.Unlock()
	return m.Start(ctx)
}

func (m *Manager) failStart(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.closed {
		return
	}
	m.setStateLocked(StateDisconnected)
	m.scheduleRetryLocked(gen)
}

func (m *Manager) resolveVersion(ctx context.Context) Version {
	if m.version == nil {
		return Version{}
	}
	v, err := m.version(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to resolve latest WhatsApp Web version, using library default")
		return Version{}
	}
	return v
}

func (m *Manager) handle(gen uint64, evt Event) {
	switch e := evt.(type) {
	case QR:
		m.handleQR(gen, e)
	case ConnectionOpen:
		m.handleOpen(gen)
	case ConnectionClose:
		m.handleClose(gen, e)
	case CredsUpdate:
		m.handleCreds(gen, e)
	case MessageReceived:
		m.mu.Lock()
		stale := gen != m.generation
		m.mu.Unlock()
		if stale || m.onMessage == nil {
			return
		}
		m.onMessage(e.Message)
	}
}

func (m *Manager) handleQR(gen uint64, e QR) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.closed {
		return
	}
	m.qr = e.Code
	m.setStateLocked(StateAwaitingQR)
	m.logger.Info("QR code generated, open /qr to scan it")
}

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.closed {
		return
	}
	m.qr = ""
	m.attempt = 0
	m.setStateLocked(StateConnected)

	entry := m.logger
	if m.auth != nil && m.auth.Creds.Me != "" {
		entry = entry.WithField("jid", log.MaskJID(m.auth.Creds.Me))
	}
	entry.Info("WhatsApp connection opened")
}

func (m *Manager) handleClose(gen uint64, e ConnectionClose) {
	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		return
	}
	m.qr = ""

	entry := m.logger.WithField("reason", e.Reason.String())
	if e.Err != nil {
		entry = entry.WithError(e.Err)
	}

	if e.Reason != ReasonLoggedOut {
		m.setStateLocked(StateDisconnected)
		delay, scheduled := m.scheduleRetryLocked(gen)
		m.mu.Unlock()
		if scheduled {
			entry.WithField("retry_in", delay.Round(time.Millisecond).String()).Warn("WhatsApp connection closed, reconnecting")
		}
		return
	}

	m.cancelRetryLocked()
	m.setStateLocked(StateLoggedOut)
	sock := m.socket
	m.socket = nil
	if m.auth != nil {
		m.auth.Creds = authstate.InitCredentials()
	}
	m.mu.Unlock()

	entry.Warn("WhatsApp session logged out, pairing is required again")
	if sock != nil {
		sock.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.WithError(err).Error("Failed to clear auth state after logout")
	}
}

func (m *Manager) handleCreds(gen uint64, e CredsUpdate) {
	if e.Creds == nil {
		return
	}

	m.mu.Lock()
	if gen != m.generation || m.auth == nil {
		m.mu.Unlock()
		return
	}
	m.auth.Creds = e.Creds.Clone()
	snapshot := &authstate.State{Creds: m.auth.Creds.Clone(), Keys: m.auth.Keys}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := snapshot.SaveCreds(ctx); err != nil {
		m.logger.WithError(err).Error("Failed to persist credentials")
	}
}

// scheduleRetryLocked arranges a single re-dial. A retry already pending for
// this generation is left in place.
func (m *Manager) scheduleRetryLocked(gen uint64) (time.Duration, bool) {
	if m.stopRetry != nil {
		return 0, false
	}
	m.attempt++
	delay := m.retry.Next(m.attempt)
	m.stopRetry = m.schedule(delay, func() {
		m.retryNow(gen)
	})
	return delay, true
}

func (m *Manager) cancelRetryLocked() {
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
}

func (m *Manager) retryNow(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		return
	}
	m.stopRetry = nil
	attempt := m.attempt
	m.mu.Unlock()

	m.logger.WithField("attempt", attempt).Info("Reconnecting to WhatsApp")
	if err := m.Start(context.Background()); err != nil {
		m.logger.WithError(err).WithField("attempt", attempt).Warn("Reconnect attempt failed")
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state != s {
		m.state = s
		m.changedAt = time.Now()
	}
}

// SendText sends a plain text message over the live socket.
func (m *Manager) SendText(ctx context.Context, chatID string, text string) error {
	m.mu.Lock()
	sock := m.socket
	connected := m.state == StateConnected
	m.mu.Unlock()

	if sock == nil || !connected {
		return ErrNotConnected
	}
	return sock.SendText(ctx, chatID, text)
}

// Logout unlinks the device, wipes the stored auth state and starts a fresh
// pairing so a new QR code becomes available.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.cancelRetryLocked()
	m.generation++
	sock := m.socket
	m.socket = nil
	m.qr = ""
	m.setStateLocked(StateLoggedOut)
	m.mu.Unlock()

	if sock != nil {
		if err := sock.Logout(ctx); err != nil {
			m.logger.WithError(err).Warn("Logout request failed, clearing local state anyway")
		}
		sock.Close()
	}

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	m.logger.Info("Session logged out and auth state cleared")

	m.mu.Lock()
	m.attempt = 0
	m.mu.Unlock()
	return m.Start(ctx)
}

func (m *Manager) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:        m.state,
		Connected:    m.state == StateConnected && m.socket != nil,
		QR:           m.qr,
		Attempt:      m.attempt,
		RetryPending: m.stopRetry != nil,
		ChangedAt:    m.changedAt,
	}
	if m.auth != nil && m.auth.Creds != nil {
		st.Me = m.auth.Creds.Me
	}
	return st
}

func (m *Manager) Connected() bool {
	return m.Snapshot().Connected
}

func (m *Manager) QR() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qr
}

// Close drops the socket and any pending retry. Persisted state is kept.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelRetryLocked()
	m.generation++
	sock := m.socket
	m.socket = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
}
