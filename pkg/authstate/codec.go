package authstate

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Value is a decoded auth-state entry. It is a JSON-shaped tree made of
// map[string]any, []any, string, json.Number, bool and nil, where byte
// buffers may appear as []byte at any depth.
type Value = any

const (
	// bytesTag is the reserved single-key object used to carry a byte buffer.
	bytesTag = "$bytes"
	// mapTag wraps an ordinary object whose shape would read back as a tag.
	mapTag = "$map"
)

var ErrCorrupt = errors.New("authstate: corrupt entry")

// Encode serialises a value tree to JSON, tagging every []byte as
// {"$bytes":"<base64>"}. Objects that look like a tag are wrapped as
// {"$map":{...}}. Numbers must be json.Number.
func Encode(v Value) ([]byte, error) {
	tagged, err := tag(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged)
}

// Decode is the inverse of Encode. Numbers come back as json.Number.
// Buffers written with the older {"type":"Buffer","data":...} tagging are
// accepted as well.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrCorrupt)
	}
	return untag(raw)
}

func tag(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number:
		return t, nil
	case []byte:
		return map[string]any{bytesTag: base64.StdEncoding.EncodeToString(t)}, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			te, err := tag(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = te
		}
		if looksTagged(t) {
			return map[string]any{mapTag: out}, nil
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			te, err := tag(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = te
		}
		return out, nil
	default:
		return nil, fmt.Errorf("authstate: unsupported value type %T", v)
	}
}

// looksTagged reports whether an object would be read back as a buffer or a
// wrapped object rather than as itself.
func looksTagged(m map[string]any) bool {
	if len(m) == 1 {
		_, b := m[bytesTag]
		_, w := m[mapTag]
		return b || w
	}
	_, ok := legacyBuffer(m)
	return ok
}

func untag(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := t[mapTag].(map[string]any); ok && len(t) == 1 {
			return untagFields(inner)
		}
		if buf, ok, err := decodeBuffer(t); ok || err != nil {
			return buf, err
		}
		return untagFields(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ue, err := untag(e)
			if err != nil {
				return nil, err
			}
			out[i] = ue
		}
		return out, nil
	default:
		return t, nil
	}
}

func untagFields(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, e := range m {
		ue, err := untag(e)
		if err != nil {
			return nil, err
		}
		out[k] = ue
	}
	return out, nil
}

func decodeBuffer(m map[string]any) ([]byte, bool, error) {
	if raw, ok := m[bytesTag]; ok && len(m) == 1 {
		s, ok := raw.(string)
		if !ok {
			return nil, true, fmt.Errorf("%w: %s is not a string", ErrCorrupt, bytesTag)
		}
		buf, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return buf, true, nil
	}

	buf, ok := legacyBuffer(m)
	return buf, ok, nil
}

// legacyBuffer reads the older {"type"|"__type":"Buffer","data":...} tagging.
// Only a well-formed buffer matches; anything else stays an ordinary object.
func legacyBuffer(m map[string]any) ([]byte, bool) {
	if len(m) != 2 {
		return nil, false
	}
	kind, ok := m["type"]
	if !ok {
		kind, ok = m["__type"]
	}
	data, hasData := m["data"]
	if !ok || kind != "Buffer" || !hasData {
		return nil, false
	}

	switch d := data.(type) {
	case string:
		buf, err := base64.StdEncoding.DecodeString(d)
		if err != nil {
			return nil, false
		}
		return buf, true
	case []any:
		buf := make([]byte, len(d))
		for i, e := range d {
			n, ok := e.(json.Number)
			if !ok {
				return nil, false
			}
			b, err := n.Int64()
			if err != nil || b < 0 || b > 255 {
				return nil, false
			}
			buf[i] = byte(b)
		}
		return buf, true
	default:
		return nil, false
	}
}
