package authstate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SignedPreKey is the public half of the device's signed pre-key.
type SignedPreKey struct {
	KeyID     uint32
	Public    []byte
	Signature []byte
}

// Credentials is the singleton record describing the paired device.
// Only public key material is kept here; private keys stay in the
// protocol library's own device store.
type Credentials struct {
	Registered     bool
	Me             string
	LID            string
	PushName       string
	Platform       string
	BusinessName   string
	RegistrationID uint32
	IdentityKey    []byte
	NoiseKey       []byte
	SignedPreKey   *SignedPreKey
	PairedAt       time.Time
}

// InitCredentials returns the empty record used before the first pairing.
func InitCredentials() *Credentials {
	return &Credentials{}
}

func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	out := *c
	out.IdentityKey = cloneBytes(c.IdentityKey)
	out.NoiseKey = cloneBytes(c.NoiseKey)
	if c.SignedPreKey != nil {
		spk := *c.SignedPreKey
		spk.Public = cloneBytes(c.SignedPreKey.Public)
		spk.Signature = cloneBytes(c.SignedPreKey.Signature)
		out.SignedPreKey = &spk
	}
	return &out
}

func (c *Credentials) value() Value {
	v := map[string]any{
		"registered":     c.Registered,
		"me":             c.Me,
		"lid":            c.LID,
		"pushName":       c.PushName,
		"platform":       c.Platform,
		"businessName":   c.BusinessName,
		"registrationId": json.Number(strconv.FormatUint(uint64(c.RegistrationID), 10)),
		"identityKey":    nilIfEmpty(c.IdentityKey),
		"noiseKey":       nilIfEmpty(c.NoiseKey),
		"signedPreKey":   nil,
		"pairedAt":       nil,
	}
	if c.SignedPreKey != nil {
		v["signedPreKey"] = map[string]any{
			"keyId":     json.Number(strconv.FormatUint(uint64(c.SignedPreKey.KeyID), 10)),
			"public":    nilIfEmpty(c.SignedPreKey.Public),
			"signature": nilIfEmpty(c.SignedPreKey.Signature),
		}
	}
	if !c.PairedAt.IsZero() {
		v["pairedAt"] = c.PairedAt.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func credentialsFromValue(v Value) (*Credentials, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: creds is %T", ErrCorrupt, v)
	}
	r := fieldReader{m: m}
	c := &Credentials{
		Registered:     r.bool("registered"),
		Me:             r.string("me"),
		LID:            r.string("lid"),
		PushName:       r.string("pushName"),
		Platform:       r.string("platform"),
		BusinessName:   r.string("businessName"),
		RegistrationID: r.uint32("registrationId"),
		IdentityKey:    r.bytes("identityKey"),
		NoiseKey:       r.bytes("noiseKey"),
	}
	if raw, ok := m["signedPreKey"]; ok && raw != nil {
		spk, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: signedPreKey is %T", ErrCorrupt, raw)
		}
		sr := fieldReader{m: spk}
		c.SignedPreKey = &SignedPreKey{
			KeyID:     sr.uint32("keyId"),
			Public:    sr.bytes("public"),
			Signature: sr.bytes("signature"),
		}
		if sr.err != nil {
			return nil, sr.err
		}
	}
	if ts := r.string("pairedAt"); ts != "" && r.err == nil {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: pairedAt: %v", ErrCorrupt, err)
		}
		c.PairedAt = t
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// fieldReader pulls typed fields out of a decoded map and remembers the
// first type mismatch.
type fieldReader struct {
	m   map[string]any
	err error
}

func (r *fieldReader) fail(key string, v any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s is %T", ErrCorrupt, key, v)
	}
}

func (r *fieldReader) string(key string) string {
	v, ok := r.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v)
	}
	return s
}

func (r *fieldReader) bool(key string) bool {
	v, ok := r.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, v)
	}
	return b
}

func (r *fieldReader) uint32(key string) uint32 {
	v, ok := r.m[key]
	if !ok || v == nil {
		return 0
	}
	n, ok := v.(json.Number)
	if !ok {
		r.fail(key, v)
		return 0
	}
	u, err := strconv.ParseUint(n.String(), 10, 32)
	if err != nil {
		r.fail(key, v)
		return 0
	}
	return uint32(u)
}

func (r *fieldReader) bytes(key string) []byte {
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.([]byte)
	if !ok {
		r.fail(key, v)
	}
	return b
}

func nilIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
