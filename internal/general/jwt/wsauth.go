package jwt

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrBadAuthMsg   = errors.New("invalid auth message")
	ErrBadTokenWrap = errors.New("token must be 'Bearer <token>'")
)

// ClientAuthMessage is what clients send first over WS:
// { "type":"auth", "token":"Bearer <jwt>" }
type ClientAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Result is a successfully resolved credential.
type Result struct {
	Claims *Claims
	Raw    string
}

// ValidateAuthFrame parses the first WS frame, validates the JWT, and resolves
// the (identity, role) pair. Authentication happens exactly once per
// connection; nothing else may run before it succeeds.
func ValidateAuthFrame(frame []byte, mgr *Manager) (*Result, error) {
	var msg ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, ErrBadAuthMsg
	}

	if strings.ToLower(strings.TrimSpace(msg.Type)) != "auth" {
		return nil, ErrBadAuthMsg
	}

	if strings.TrimSpace(msg.Token) == "" {
		return nil, ErrCredentialMissing
	}

	// expect "Bearer <token>" wrapping
	parts := strings.SplitN(msg.Token, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrBadTokenWrap
	}

	raw := strings.TrimSpace(parts[1])
	claims, err := mgr.ParseAndValidate(raw)
	if err != nil {
		return nil, err
	}

	return &Result{Claims: claims, Raw: raw}, nil
}
