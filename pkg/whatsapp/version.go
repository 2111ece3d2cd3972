package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

const defaultVersionRefreshInterval = 10 * time.Minute

type VersionStatus struct {
	CurrentVersion string     `json:"current_version"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

type versionFetcher func(ctx context.Context, httpClient *http.Client) (*store.WAVersionContainer, error)

// VersionRefresher fetches the latest WhatsApp Web version and applies it
// globally via store.SetWAVersion. Concurrent refreshes share one request.
type VersionRefresher struct {
	group       singleflight.Group
	httpClient  *http.Client
	minInterval time.Duration
	fetch       versionFetcher

	mu              sync.RWMutex
	lastRefreshedAt *time.Time
	lastError       string
}

func NewVersionRefresher(minInterval time.Duration) *VersionRefresher {
	if minInterval < 0 {
		minInterval = defaultVersionRefreshInterval
	}
	return &VersionRefresher{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		minInterval: minInterval,
		fetch:       whatsmeow.GetLatestVersion,
	}
}

func (r *VersionRefresher) Status() VersionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *time.Time
	if r.lastRefreshedAt != nil {
		t := *r.lastRefreshedAt
		last = &t
	}
	current := store.GetWAVersion()
	return VersionStatus{
		CurrentVersion: session.Version(current).String(),
		LastRefreshed:  last,
		LastError:      r.lastError,
	}
}

// Refresh fetches the latest version. Unless force is set, calls within the
// minimum interval of the previous attempt are skipped.
func (r *VersionRefresher) Refresh(ctx context.Context, force bool) (VersionStatus, bool, error) {
	if !force && r.minInterval > 0 {
		r.mu.RLock()
		last := r.lastRefreshedAt
		r.mu.RUnlock()
		if last != nil && time.Since(*last) < r.minInterval {
			return r.Status(), false, nil
		}
	}

	_, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		latest, err := r.fetch(ctx, r.httpClient)
		if err == nil && latest == nil {
			err = errors.New("latest WhatsApp Web version is nil")
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		now := time.Now()
		r.lastRefreshedAt = &now
		if err != nil {
			r.lastError = err.Error()
			return nil, err
		}
		r.lastError = ""
		store.SetWAVersion(*latest)
		return *latest, nil
	})
	return r.Status(), true, err
}

// Latest is a session.VersionSource.
func (r *VersionRefresher) Latest(ctx context.Context) (session.Version, error) {
	if _, _, err := r.Refresh(ctx, false); err != nil {
		return session.Version{}, err
	}
	return session.Version(store.GetWAVersion()), nil
}
