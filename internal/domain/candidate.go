package domain

// Candidate is an opaque connectivity hint. It is stored and relayed, never interpreted.
type Candidate struct {
	SDP           string  `json:"sdp"`
	SDPMLineIndex int32   `json:"sdpMLineIndex"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}
