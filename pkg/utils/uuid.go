package utils

import "github.com/google/uuid"

// NewSessionID returns a random (version 4) identifier for a listening session.
func NewSessionID() string {
	return uuid.NewString()
}

// ShortID trims an identifier to its first eight characters for log prefixes.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
