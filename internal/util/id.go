// Package util provides shared utility functions.
package util

import (
	"strings"

	"github.com/google/uuid"
)

// SessionIDLength is the length of generated session identifiers.
const SessionIDLength = 8

// NewSessionID returns a random identifier of SessionIDLength hex chars.
func NewSessionID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:SessionIDLength]
}
