package whatsapp

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var ErrInvalidJID = errors.New("WhatsApp chat ID is not valid")

// ComposeJID accepts a full JID or a bare phone number / group id.
func ComposeJID(id string) (types.JID, error) {
	id = strings.TrimSpace(id)
	if strings.ContainsRune(id, '@') {
		jid, err := types.ParseJID(id)
		if err != nil || jid.User == "" {
			return types.EmptyJID, ErrInvalidJID
		}
		return jid, nil
	}

	id = DecomposeJID(id)
	if id == "" {
		return types.EmptyJID, ErrInvalidJID
	}
	if strings.ContainsRune(id, '-') || len(id) >= 18 {
		return types.NewJID(id, types.GroupServer), nil
	}
	return types.NewJID(id, types.DefaultUserServer), nil
}

func DecomposeJID(id string) string {
	if strings.ContainsRune(id, '@') {
		buffers := strings.Split(id, "@")
		id = buffers[0]
	}

	id = strings.TrimSpace(id)
	if len(id) > 0 && id[0] == '+' {
		id = id[1:]
	}

	return id
}
