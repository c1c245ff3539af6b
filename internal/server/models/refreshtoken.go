package models

import "time"

// RefreshToken is the session state kept on a users row.
type RefreshToken struct {
	UserID  string
	Token   string
	Expires time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}
