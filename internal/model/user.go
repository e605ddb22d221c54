// Package model defines domain entities for the application.
package model

// User represents a registered account.
// PasswordHash holds the Argon2id digest in PHC string form and is
// never serialized into API responses.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}
