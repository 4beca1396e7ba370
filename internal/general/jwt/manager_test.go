package jwt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ridelink/internal/domain/user"

	"github.com/stretchr/testify/require"
)

func TestManagerIssueAndValidate(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)

	t.Run("round trip preserves identity and role", func(t *testing.T) {
		token, _, err := mgr.IssueUserToken("driver-42", user.RoleDriver)
		require.NoError(t, err)

		claims, err := mgr.ParseAndValidate(token)
		require.NoError(t, err)
		require.Equal(t, "driver-42", claims.Subject)
		require.Equal(t, user.RoleDriver, claims.Role)
	})

	t.Run("empty token is a missing credential", func(t *testing.T) {
		_, err := mgr.ParseAndValidate("")
		require.ErrorIs(t, err, ErrCredentialMissing)
	})

	t.Run("garbage token is an invalid credential", func(t *testing.T) {
		_, err := mgr.ParseAndValidate("not.a.jwt")
		require.ErrorIs(t, err, ErrCredentialInvalid)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, _, err := mgr.IssueUserToken("rider-1", user.RoleRider)
		require.NoError(t, err)

		other := NewManager("another-secret", time.Hour)
		_, err = other.ParseAndValidate(token)
		require.ErrorIs(t, err, ErrCredentialInvalid)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		short := NewManager("unit-test-secret", -time.Minute)
		token, _, err := short.IssueUserToken("rider-1", user.RoleRider)
		require.NoError(t, err)

		_, err = mgr.ParseAndValidate(token)
		require.ErrorIs(t, err, ErrCredentialInvalid)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		_, _, err := mgr.IssueUserToken("x", user.Role("admin"))
		require.Error(t, err)
	})
}

func TestValidateAuthFrame(t *testing.T) {
	mgr := NewManager("unit-test-secret", time.Hour)
	token, _, err := mgr.IssueUserToken("rider-7", user.RoleRider)
	require.NoError(t, err)

	frame := func(typ, tok string) []byte {
		b, err := json.Marshal(ClientAuthMessage{Type: typ, Token: tok})
		require.NoError(t, err)
		return b
	}

	t.Run("valid first frame resolves the identity", func(t *testing.T) {
		res, err := ValidateAuthFrame(frame("auth", "Bearer "+token), mgr)
		require.NoError(t, err)
		require.Equal(t, "rider-7", res.Claims.Subject)
		require.Equal(t, user.RoleRider, res.Claims.Role)
		require.Equal(t, token, res.Raw)
	})

	t.Run("non-JSON frame", func(t *testing.T) {
		_, err := ValidateAuthFrame([]byte("hello"), mgr)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})

	t.Run("wrong message type", func(t *testing.T) {
		_, err := ValidateAuthFrame(frame("login", "Bearer "+token), mgr)
		require.ErrorIs(t, err, ErrBadAuthMsg)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := ValidateAuthFrame(frame("auth", ""), mgr)
		require.ErrorIs(t, err, ErrCredentialMissing)
	})

	t.Run("token without Bearer wrapping", func(t *testing.T) {
		_, err := ValidateAuthFrame(frame("auth", token), mgr)
		require.ErrorIs(t, err, ErrBadTokenWrap)
	})

	t.Run("tampered token", func(t *testing.T) {
		_, err := ValidateAuthFrame(frame("auth", "Bearer "+token+"x"), mgr)
		require.True(t, errors.Is(err, ErrCredentialInvalid))
	})
}
