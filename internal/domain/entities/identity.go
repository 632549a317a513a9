package entities

import "time"

// Identity is the authenticated session a mutation is made on behalf of.
// It is passed explicitly into every write; nothing looks it up globally.
type Identity struct {
	UserID    int64
	Username  string
	Role      string
	Token     string
	ExpiresAt time.Time
}

// Anonymous reports whether the identity carries no user
func (i Identity) Anonymous() bool {
	return i.UserID == 0 && i.Token == ""
}

// Expired reports whether the identity's token expired before now
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
