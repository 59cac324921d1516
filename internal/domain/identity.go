package domain

import "strings"

// Identity is an externally managed user known to this service only by id and email.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NormalizeEmail lower-cases and trims an email used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
