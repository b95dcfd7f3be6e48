// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

var ErrParticipantIDEmpty = errors.New("participant id empty")

// ParticipantID identifies a remote participant for the lifetime of a signaling session.
type ParticipantID string

func (p ParticipantID) String() string { return string(p) }

// ParseParticipantID validates an externally supplied identity. Ids are
// opaque: any non-empty string is accepted as is.
func ParseParticipantID(s string) (ParticipantID, error) {
	if len(s) == 0 {
		return "", ErrParticipantIDEmpty
	}
	return ParticipantID(s), nil
}

// NewParticipantID is used by the shell when no identity was configured.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}
