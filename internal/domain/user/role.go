package user

import (
	"errors"
	"strings"
)

// Role identifies which side of a ride a connected identity is on. The value
// is also the prefix of the identity room name, so it stays lowercase on the
// wire.
type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (lowercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleRider, RoleDriver:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Convenience helpers.
func (role Role) IsRider() bool  { return role == RoleRider }
func (role Role) IsDriver() bool { return role == RoleDriver }
