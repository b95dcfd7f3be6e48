package domain

type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	}
	return "unknown"
}

// NegotiationState follows one of two paths:
// Idle -> OfferSent -> Stable for the initiator,
// Idle -> OfferReceived -> AnswerSent -> Stable for the responder.
type NegotiationState int32

const (
	StateIdle NegotiationState = iota
	StateOfferSent
	StateOfferReceived
	StateAnswerSent
	StateStable
)

func (s NegotiationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer_sent"
	case StateOfferReceived:
		return "offer_received"
	case StateAnswerSent:
		return "answer_sent"
	case StateStable:
		return "stable"
	}
	return "unknown"
}
