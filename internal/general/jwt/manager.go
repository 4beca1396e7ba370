package jwt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"ridelink/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCredentialMissing: no token was presented at connection time.
	ErrCredentialMissing = errors.New("credential missing")
	// ErrCredentialInvalid: the token failed signature, expiry, or claim checks.
	ErrCredentialInvalid = errors.New("credential invalid")

	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrRoleForbidden      = errors.New("role not allowed")
)

// Manager handles JWT creation and validation.
type Manager struct {
	secret    []byte
	accessTTL time.Duration
}

// NewManager creates a token manager.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("jwt: empty secret key")
	}

	return &Manager{
		secret:    []byte(s),
		accessTTL: accessTTL,
	}
}

// IssueUserToken returns a signed access token for a rider or driver.
func (m *Manager) IssueUserToken(identityID string, role user.Role) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("invalid role: %s", role)
	}

	claims := NewUserClaims(identityID, role, m.accessTTL)
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := tkn.SignedString(m.secret)

	return signed, claims, err
}

// ParseAndValidate verifies signature and standard claims. All failures are
// wrapped into ErrCredentialInvalid so the caller rejects uniformly.
func (m *Manager) ParseAndValidate(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrCredentialMissing
	}

	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}
	if !token.Valid {
		return nil, ErrCredentialInvalid
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrCredentialInvalid, user.ErrInvalidRole)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrCredentialInvalid)
	}

	return claims, nil
}

// RoleAllowed asserts the claims' role is one of the allowed.
func RoleAllowed(cl *Claims, allowed ...user.Role) error {
	if slices.Contains(allowed, cl.Role) {
		return nil
	}
	return ErrRoleForbidden
}
