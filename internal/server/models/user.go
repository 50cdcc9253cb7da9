package models

import "time"

// User is a registered principal. PasswordHash never leaves the process:
// it is skipped by JSON encoding and cleared by Redacted.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// Redacted returns a copy of u without the password hash.
func (u *User) Redacted() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}
