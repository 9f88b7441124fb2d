package domain

import "time"

// User is the identity record for a registered account. Records are
// immutable after signup; the core only ever reads them back.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}
