package app

import (
	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
)

type OfferAction int

const (
	SupersedeSession OfferAction = iota
	KeepSession
)

// Policy decides what an inbound offer does to an existing session.
type Policy interface {
	OnOffer(self domain.ParticipantID, existing *core.Session) OfferAction
}

// LastWriterWins always lets the newest inbound offer replace the session.
type LastWriterWins struct{}

func (LastWriterWins) OnOffer(domain.ParticipantID, *core.Session) OfferAction {
	return SupersedeSession
}

// PoliteGlare resolves glare: when both sides have an outstanding offer, the
// participant with the smaller id keeps its own and ignores the remote one.
// An initiator session still in StateIdle is an offer being built and counts
// as outstanding.
type PoliteGlare struct{}

func (PoliteGlare) OnOffer(self domain.ParticipantID, existing *core.Session) OfferAction {
	if existing == nil || !outstandingOffer(existing) {
		return SupersedeSession
	}
	if self < existing.ParticipantID() {
		return KeepSession
	}
	return SupersedeSession
}

func outstandingOffer(s *core.Session) bool {
	switch s.State() {
	case domain.StateOfferSent:
		return true
	case domain.StateIdle:
		return s.Role() == domain.RoleInitiator
	}
	return false
}
