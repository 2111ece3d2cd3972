package authstate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
)

const (
	// CredsType is the key type of the singleton credentials record.
	CredsType = "creds"
	// CredsID is the only id used under CredsType.
	CredsID = ""
)

// Backend persists raw encoded entries. A nil value in Write deletes the key.
type Backend interface {
	Read(ctx context.Context, keys []string) (map[string][]byte, error)
	Write(ctx context.Context, entries map[string][]byte) error
	Clear(ctx context.Context) error
	Close() error
}

// Store implements the get/set key-value contract on top of a Backend.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// EntryKey is the storage key of (keyType, id).
func EntryKey(keyType string, id string) string {
	if keyType == CredsType {
		return CredsType
	}
	return keyType + "-" + id
}

// Get returns the decoded values of the requested ids. Missing ids are absent
// from the result. Entries that fail to decode are deleted and omitted.
func (s *Store) Get(ctx context.Context, keyType string, ids []string) (map[string]Value, error) {
	if len(ids) == 0 {
		return map[string]Value{}, nil
	}

	keyToID := make(map[string]string, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key := EntryKey(keyType, id)
		if _, dup := keyToID[key]; dup {
			continue
		}
		keyToID[key] = id
		keys = append(keys, key)
	}

	raw, err := s.backend.Read(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read %s entries: %w", keyType, err)
	}

	out := make(map[string]Value, len(raw))
	corrupt := make(map[string][]byte)
	for key, data := range raw {
		v, err := Decode(data)
		if err != nil {
			log.Component("authstate").WithField("key", key).WithError(err).Warn("Dropping corrupt auth state entry")
			corrupt[key] = nil
			continue
		}
		out[keyToID[key]] = v
	}

	if len(corrupt) > 0 {
		if err := s.backend.Write(ctx, corrupt); err != nil {
			log.Component("authstate").WithError(err).Error("Failed to delete corrupt auth state entries")
		}
	}

	return out, nil
}

// Set applies updates grouped by key type then id. A nil value deletes.
func (s *Store) Set(ctx context.Context, updates map[string]map[string]Value) error {
	entries := make(map[string][]byte)
	for keyType, byID := range updates {
		for id, v := range byID {
			key := EntryKey(keyType, id)
			if v == nil {
				entries[key] = nil
				continue
			}
			data, err := Encode(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			entries[key] = data
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return s.backend.Write(ctx, entries)
}

// Clear removes every entry; used on logout.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// State is the auth state handed to the protocol connection.
type State struct {
	Creds *Credentials
	Keys  *Store
}

// Load reads the credentials record. A record that cannot be interpreted is
// deleted and replaced by fresh credentials, which means re-pairing.
func Load(ctx context.Context, store *Store) (*State, error) {
	values, err := store.Get(ctx, CredsType, []string{CredsID})
	if err != nil {
		return nil, err
	}

	creds := InitCredentials()
	if v, ok := values[CredsID]; ok {
		parsed, err := credentialsFromValue(v)
		if err != nil {
			log.Component("authstate").WithError(err).Warn("Credentials unreadable, starting from a fresh state")
			if delErr := store.Set(ctx, map[string]map[string]Value{CredsType: {CredsID: nil}}); delErr != nil {
				log.Component("authstate").WithError(delErr).Error("Failed to delete unreadable credentials")
			}
		} else {
			creds = parsed
		}
	}

	return &State{Creds: creds, Keys: store}, nil
}

// SaveCreds persists the current credentials record.
func (st *State) SaveCreds(ctx context.Context) error {
	if st.Creds == nil {
		return errors.New("authstate: no credentials to save")
	}
	return st.Keys.Set(ctx, map[string]map[string]Value{
		CredsType: {CredsID: st.Creds.value()},
	})
}

// Reset wipes the persisted state and starts over with empty credentials.
func (st *State) Reset(ctx context.Context) error {
	if err := st.Keys.Clear(ctx); err != nil {
		return err
	}
	st.Creds = InitCredentials()
	return nil
}

func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
