package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`^[1-9][0-9]{5,15}$`)
	groupPattern = regexp.MustCompile(`^[0-9]{6,}(-[0-9]+)?$`)
)

// ValidatePhone ensures international format (no leading 0, digits only, length 6-16).
func ValidatePhone(phone string) error {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return errors.New("phone number cannot be empty")
	}
	if strings.HasPrefix(trimmed, "+") {
		trimmed = trimmed[1:]
	}
	if strings.HasPrefix(trimmed, "0") {
		return errors.New("phone number must be in international format without leading 0")
	}
	if !phonePattern.MatchString(trimmed) {
		return errors.New("phone number must be digits only and at least 6 characters")
	}
	return nil
}

// ValidateChatID accepts a full JID (user@server) or a phone number in
// international format.
func ValidateChatID(chatID string) error {
	trimmed := strings.TrimSpace(chatID)
	if trimmed == "" {
		return errors.New("chatId is required")
	}

	user, server, isJID := strings.Cut(trimmed, "@")
	if !isJID {
		if strings.ContainsRune(trimmed, '-') || len(trimmed) >= 18 {
			if !groupPattern.MatchString(trimmed) {
				return errors.New("chatId is not a valid group id")
			}
			return nil
		}
		return ValidatePhone(trimmed)
	}
	if server == "" {
		return errors.New("chatId server part is empty")
	}
	user, _, _ = strings.Cut(user, ":")
	if !groupPattern.MatchString(user) && !phonePattern.MatchString(user) {
		return errors.New("chatId user part must be numeric")
	}
	return nil
}

// ValidateURL ensures a non-empty absolute http(s) URL.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" {
		return errors.New("url must be valid")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	return nil
}
