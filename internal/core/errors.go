package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Peer/internal/domain"
)

var (
	ErrTransport      = errors.New("transport error")
	ErrNegotiation    = errors.New("negotiation error")
	ErrDecode         = errors.New("decode error")
	ErrStaleReference = errors.New("no session for participant")
)

// NegotiationError aborts one negotiation attempt and nothing else.
type NegotiationError struct {
	Participant domain.ParticipantID
	Step        string
	Err         error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s failed at %s: %v", e.Participant, e.Step, e.Err)
}

func (e *NegotiationError) Unwrap() []error { return []error{ErrNegotiation, e.Err} }

func NewNegotiationError(pid domain.ParticipantID, step string, err error) error {
	return &NegotiationError{Participant: pid, Step: step, Err: err}
}
