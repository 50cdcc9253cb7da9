package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Role is the single enumeration of user roles used on the wire and in the store.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// DefaultRole is assigned when registration does not specify one.
const DefaultRole = RoleStudent

var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts external input into a Role. The empty string maps to
// DefaultRole; matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultRole, nil
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleStudent):
		return RoleStudent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

func (r Role) String() string { return string(r) }

// Value implements driver.Valuer; only known roles are written.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
	return string(r), nil
}

// Scan implements sql.Scanner. Legacy rows store the student role as "aluno"
// (sometimes upper-cased), which is read as RoleStudent.
func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		return fmt.Errorf("%w: NULL", ErrUnknownRole)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnknownRole, src)
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleAdmin):
		*r = RoleAdmin
	case string(RoleStudent), "aluno":
		*r = RoleStudent
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return nil
}
