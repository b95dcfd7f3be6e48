package core

import (
	"github.com/dkeye/Peer/internal/domain"
	"github.com/pion/webrtc/v4"
)

// CandidateToInit expects SDPMLineIndex within uint16 range; the wire codec rejects anything else.
func CandidateToInit(c domain.Candidate) webrtc.ICECandidateInit {
	idx := uint16(c.SDPMLineIndex)
	init := webrtc.ICECandidateInit{
		Candidate:     c.SDP,
		SDPMLineIndex: &idx,
	}
	if c.SDPMid != nil {
		mid := *c.SDPMid
		init.SDPMid = &mid
	}
	return init
}

func CandidateFromInit(ci webrtc.ICECandidateInit) domain.Candidate {
	c := domain.Candidate{SDP: ci.Candidate}
	if ci.SDPMLineIndex != nil {
		c.SDPMLineIndex = int32(*ci.SDPMLineIndex)
	}
	if ci.SDPMid != nil {
		mid := *ci.SDPMid
		c.SDPMid = &mid
	}
	return c
}

func CandidatesToInit(cs []domain.Candidate) []webrtc.ICECandidateInit {
	out := make([]webrtc.ICECandidateInit, 0, len(cs))
	for _, c := range cs {
		out = append(out, CandidateToInit(c))
	}
	return out
}

func CandidatesFromInit(cs []webrtc.ICECandidateInit) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(cs))
	for _, c := range cs {
		out = append(out, CandidateFromInit(c))
	}
	return out
}
