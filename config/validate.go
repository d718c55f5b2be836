package config

import (
	"strings"
	"unicode"

	"github.com/nyabot/nyabot/errors"
)

// Validate checks that the configuration is usable at startup.
// Violations are fatal; the launcher surfaces them and exits non-zero.
func (c *Config) Validate() error {
	if c.BtUIN == "" {
		return errors.New("bt_uin is required")
	}
	if strings.TrimLeft(c.BtUIN, "0123456789") != "" {
		return errors.Newf("bt_uin must be a numeric QQ id, got %q", c.BtUIN)
	}
	if c.Root != "" && strings.TrimLeft(c.Root, "0123456789") != "" {
		return errors.Newf("root must be a numeric QQ id, got %q", c.Root)
	}

	if c.Napcat.WSURI == "" {
		return errors.New("napcat.ws_uri is required")
	}
	if !strings.HasPrefix(c.Napcat.WSURI, "ws://") && !strings.HasPrefix(c.Napcat.WSURI, "wss://") {
		return errors.Newf("napcat.ws_uri must use ws:// or wss://, got %q", c.Napcat.WSURI)
	}

	if c.Napcat.EnableWebUI && c.Napcat.WebUIURI == "" {
		return errors.New("napcat.webui_uri is required when the WebUI is enabled")
	}

	if c.Napcat.SendTimeoutSeconds <= 0 {
		return errors.Newf("napcat.send_timeout_seconds must be > 0, got %d", c.Napcat.SendTimeoutSeconds)
	}
	if c.Napcat.SendRatePerSecond < 0 {
		return errors.Newf("napcat.send_rate_per_second must be >= 0, got %f", c.Napcat.SendRatePerSecond)
	}

	// A gateway listening on all interfaces with a weak token is an open
	// relay for the bot account. Refuse to start.
	if c.Napcat.WSListenIP == "0.0.0.0" && !IsStrongToken(c.Napcat.WSToken) {
		err := errors.New("weak ws_token on a public listener")
		err = errors.WithDetailf(err, "listener: %s", c.Napcat.WSListenIP)
		return errors.WithHint(err,
			"use at least 12 characters including a digit, a lowercase letter, an uppercase letter and a special character, or bind the listener to 127.0.0.1")
	}

	return nil
}

// IsStrongToken reports whether a token satisfies the strong-password
// predicate required for publicly bound gateway listeners: length >= 12
// with at least one digit, lowercase, uppercase and special character.
func IsStrongToken(token string) bool {
	if len(token) < 12 {
		return false
	}
	var digit, lower, upper, special bool
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		default:
			special = true
		}
	}
	return digit && lower && upper && special
}
