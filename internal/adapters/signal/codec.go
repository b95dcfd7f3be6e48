package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/domain"
)

// ErrUnknownType marks a well-formed message whose type tag is not understood.
var ErrUnknownType = errors.New("unknown message type")

func decodeError(err error) error {
	return fmt.Errorf("%w: %w", core.ErrDecode, err)
}

// Encode renders ev as a flat JSON object tagged with its type.
func Encode(ev core.Event) ([]byte, error) {
	var v any
	switch e := ev.(type) {
	case core.UserJoined:
		v = struct {
			Type core.Kind `json:"type"`
			core.UserJoined
		}{e.Kind(), e}
	case core.UserLeft:
		v = struct {
			Type core.Kind `json:"type"`
			core.UserLeft
		}{e.Kind(), e}
	case core.Offer:
		v = struct {
			Type core.Kind `json:"type"`
			core.Offer
		}{e.Kind(), e}
	case core.Answer:
		v = struct {
			Type core.Kind `json:"type"`
			core.Answer
		}{e.Kind(), e}
	case core.CandidateGenerated:
		v = struct {
			Type core.Kind `json:"type"`
			core.CandidateGenerated
		}{e.Kind(), e}
	case core.CandidatesRemoved:
		if e.Candidates == nil {
			e.Candidates = []domain.Candidate{}
		}
		v = struct {
			Type core.Kind `json:"type"`
			core.CandidatesRemoved
		}{e.Kind(), e}
	default:
		return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownType)
	}
	return json.Marshal(v)
}

type sdpPayload struct {
	SDP  *string `json:"sdp"`
	From string  `json:"from"`
	To   string  `json:"to"`
}

type candidatePayload struct {
	SDP           *string `json:"sdp"`
	SDPMLineIndex *int32  `json:"sdpMLineIndex"`
	SDPMid        *string `json:"sdpMid"`
}

func (p *candidatePayload) candidate() (domain.Candidate, error) {
	if p.SDP == nil {
		return domain.Candidate{}, errors.New("candidate without sdp")
	}
	if p.SDPMLineIndex == nil {
		return domain.Candidate{}, errors.New("candidate without sdpMLineIndex")
	}
	if *p.SDPMLineIndex < 0 || *p.SDPMLineIndex > math.MaxUint16 {
		return domain.Candidate{}, fmt.Errorf("sdpMLineIndex %d out of range", *p.SDPMLineIndex)
	}
	return domain.Candidate{SDP: *p.SDP, SDPMLineIndex: *p.SDPMLineIndex, SDPMid: p.SDPMid}, nil
}

// Decode parses one inbound frame. Malformed input yields an error wrapping
// core.ErrDecode; an unrecognised tag additionally wraps ErrUnknownType.
func Decode(data []byte) (core.Event, error) {
	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, decodeError(err)
	}
	if env.Type == nil {
		return nil, decodeError(errors.New("missing type"))
	}

	switch core.Kind(*env.Type) {
	case core.KindUserJoined, core.KindUserLeft:
		var p struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, decodeError(err)
		}
		id, err := domain.ParseParticipantID(p.UserID)
		if err != nil {
			return nil, decodeError(fmt.Errorf("userId: %w", err))
		}
		if core.Kind(*env.Type) == core.KindUserLeft {
			return core.UserLeft{UserID: id}, nil
		}
		return core.UserJoined{UserID: id}, nil

	case core.KindOffer, core.KindAnswer:
		var p sdpPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, decodeError(err)
		}
		if p.SDP == nil {
			return nil, decodeError(errors.New("missing sdp"))
		}
		from, to, err := parseRoute(p.From, p.To)
		if err != nil {
			return nil, err
		}
		if core.Kind(*env.Type) == core.KindAnswer {
			return core.Answer{SDP: *p.SDP, From: from, To: to}, nil
		}
		return core.Offer{SDP: *p.SDP, From: from, To: to}, nil

	case core.KindCandidateGenerated:
		var p struct {
			Candidate *candidatePayload `json:"iceCandidate"`
			From      string            `json:"from"`
			To        string            `json:"to"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, decodeError(err)
		}
		if p.Candidate == nil {
			return nil, decodeError(errors.New("missing iceCandidate"))
		}
		cand, err := p.Candidate.candidate()
		if err != nil {
			return nil, decodeError(err)
		}
		from, to, err := parseRoute(p.From, p.To)
		if err != nil {
			return nil, err
		}
		return core.CandidateGenerated{Candidate: cand, From: from, To: to}, nil

	case core.KindCandidatesRemoved:
		var p struct {
			Candidates *[]candidatePayload `json:"iceCandidates"`
			From       string              `json:"from"`
			To         string              `json:"to"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, decodeError(err)
		}
		if p.Candidates == nil {
			return nil, decodeError(errors.New("missing iceCandidates"))
		}
		cands := make([]domain.Candidate, 0, len(*p.Candidates))
		for i := range *p.Candidates {
			cand, err := (*p.Candidates)[i].candidate()
			if err != nil {
				return nil, decodeError(fmt.Errorf("iceCandidates[%d]: %w", i, err))
			}
			cands = append(cands, cand)
		}
		from, to, err := parseRoute(p.From, p.To)
		if err != nil {
			return nil, err
		}
		return core.CandidatesRemoved{Candidates: cands, From: from, To: to}, nil
	}
	return nil, decodeError(fmt.Errorf("%w %q", ErrUnknownType, *env.Type))
}

func parseRoute(from, to string) (domain.ParticipantID, domain.ParticipantID, error) {
	f, err := domain.ParseParticipantID(from)
	if err != nil {
		return "", "", decodeError(fmt.Errorf("from: %w", err))
	}
	t, err := domain.ParseParticipantID(to)
	if err != nil {
		return "", "", decodeError(fmt.Errorf("to: %w", err))
	}
	return f, t, nil
}
