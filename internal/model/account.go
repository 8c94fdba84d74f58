package model

import "time"

// Account represents a player account stored in the database.
// UserID is the stable identifier issued by the identity provider (Telegram user id).
type Account struct {
	UserID     int64
	Username   string
	FirstName  string
	CreatedAt  time.Time
	LastActive time.Time
}
