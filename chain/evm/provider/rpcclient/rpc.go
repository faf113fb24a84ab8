package rpcclient

import (
	"errors"
	"fmt"
	"strings"
)

// URLSchemePreference selects which of an RPC's URLs is dialed.
type URLSchemePreference int

const (
	URLSchemePreferenceNone URLSchemePreference = iota
	URLSchemePreferenceWS
	URLSchemePreferenceHTTP
)

// String returns the config spelling of the preference.
func (p URLSchemePreference) String() string {
	switch p {
	case URLSchemePreferenceWS:
		return "ws"
	case URLSchemePreferenceHTTP:
		return "http"
	default:
		return "none"
	}
}

// URLSchemePreferenceFromString parses "ws", "http" or "none" (or an empty string).
func URLSchemePreferenceFromString(s string) (URLSchemePreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ws", "wss":
		return URLSchemePreferenceWS, nil
	case "http", "https":
		return URLSchemePreferenceHTTP, nil
	case "", "none":
		return URLSchemePreferenceNone, nil
	default:
		return URLSchemePreferenceNone, fmt.Errorf("invalid URL scheme preference: %q", s)
	}
}

// RPC is a single node endpoint reachable over websocket, HTTP or both.
type RPC struct {
	Name               string
	WSURL              string
	HTTPURL            string
	PreferredURLScheme URLSchemePreference
}

// ToEndpoint returns the URL to dial. Without a preference HTTP is used when present.
func (r RPC) ToEndpoint() (string, error) {
	switch r.PreferredURLScheme {
	case URLSchemePreferenceWS:
		if r.WSURL == "" {
			return "", fmt.Errorf("RPC %q prefers websocket but has no WS URL", r.Name)
		}

		return r.WSURL, nil
	case URLSchemePreferenceHTTP:
		if r.HTTPURL == "" {
			return "", fmt.Errorf("RPC %q prefers HTTP but has no HTTP URL", r.Name)
		}

		return r.HTTPURL, nil
	default:
		if r.HTTPURL != "" {
			return r.HTTPURL, nil
		}
		if r.WSURL != "" {
			return r.WSURL, nil
		}

		return "", errors.New("RPC has neither an HTTP nor a WS URL")
	}
}

// RPCConfig lists the endpoints of one chain, the first being the preferred one.
type RPCConfig struct {
	ChainSelector uint64
	RPCs          []RPC
}
