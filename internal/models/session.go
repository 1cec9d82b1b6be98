package models

import "time"

// Session is one signed-in client. The refresh token rotates on every
// refresh and the fingerprint pins the session to the client that opened
// it. ExpiresAt follows the refresh token.
type Session struct {
	ID           string
	UserID       string
	Fingerprint  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the refresh token can no longer be redeemed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
