package core

import "github.com/dkeye/Peer/internal/domain"

type Kind string

const (
	KindUserJoined         Kind = "userJoined"
	KindUserLeft           Kind = "userLeft"
	KindOffer              Kind = "offer"
	KindAnswer             Kind = "answer"
	KindCandidateGenerated Kind = "iceCandidateGenerated"
	KindCandidatesRemoved  Kind = "iceCandidatesRemoved"
)

// Event is the closed set of signaling messages.
type Event interface {
	Kind() Kind
	// Subject is the remote participant the event concerns; events for the
	// same subject are handled in arrival order.
	Subject() domain.ParticipantID
	isEvent()
}

type UserJoined struct {
	UserID domain.ParticipantID `json:"userId"`
}

type UserLeft struct {
	UserID domain.ParticipantID `json:"userId"`
}

type Offer struct {
	SDP  string               `json:"sdp"`
	From domain.ParticipantID `json:"from"`
	To   domain.ParticipantID `json:"to"`
}

type Answer struct {
	SDP  string               `json:"sdp"`
	From domain.ParticipantID `json:"from"`
	To   domain.ParticipantID `json:"to"`
}

type CandidateGenerated struct {
	Candidate domain.Candidate     `json:"iceCandidate"`
	From      domain.ParticipantID `json:"from"`
	To        domain.ParticipantID `json:"to"`
}

type CandidatesRemoved struct {
	Candidates []domain.Candidate   `json:"iceCandidates"`
	From       domain.ParticipantID `json:"from"`
	To         domain.ParticipantID `json:"to"`
}

func (UserJoined) Kind() Kind         { return KindUserJoined }
func (UserLeft) Kind() Kind           { return KindUserLeft }
func (Offer) Kind() Kind              { return KindOffer }
func (Answer) Kind() Kind             { return KindAnswer }
func (CandidateGenerated) Kind() Kind { return KindCandidateGenerated }
func (CandidatesRemoved) Kind() Kind  { return KindCandidatesRemoved }

func (e UserJoined) Subject() domain.ParticipantID         { return e.UserID }
func (e UserLeft) Subject() domain.ParticipantID           { return e.UserID }
func (e Offer) Subject() domain.ParticipantID              { return e.From }
func (e Answer) Subject() domain.ParticipantID             { return e.From }
func (e CandidateGenerated) Subject() domain.ParticipantID { return e.From }
func (e CandidatesRemoved) Subject() domain.ParticipantID  { return e.From }

func (UserJoined) isEvent()         {}
func (UserLeft) isEvent()           {}
func (Offer) isEvent()              {}
func (Answer) isEvent()             {}
func (CandidateGenerated) isEvent() {}
func (CandidatesRemoved) isEvent()  {}
