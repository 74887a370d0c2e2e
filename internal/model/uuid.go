package model

import "github.com/google/uuid"

// NewID creates a new unique node id. IDs are stable for a node's
// lifetime and never reused after deletion.
func NewID() string {
	return uuid.New().String()
}
