package app

import (
	"testing"

	"github.com/dkeye/Peer/internal/core"
	"github.com/dkeye/Peer/internal/core/coretest"
	"github.com/dkeye/Peer/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestLastWriterWins(t *testing.T) {
	s, _ := newSession("bob")
	s.SetState(domain.StateOfferSent)
	require.Equal(t, SupersedeSession, LastWriterWins{}.OnOffer("alice", s))
	require.Equal(t, SupersedeSession, LastWriterWins{}.OnOffer("alice", nil))
}

func TestPoliteGlare(t *testing.T) {
	p := PoliteGlare{}
	require.Equal(t, SupersedeSession, p.OnOffer("alice", nil))

	s, _ := newSession("bob")
	s.SetState(domain.StateStable)
	require.Equal(t, SupersedeSession, p.OnOffer("alice", s))

	s.SetState(domain.StateOfferSent)
	require.Equal(t, KeepSession, p.OnOffer("alice", s))

	building, _ := newSession("bob")
	require.Equal(t, KeepSession, p.OnOffer("alice", building))

	responder := core.NewSession("bob", domain.RoleResponder, &coretest.FakeConnection{Participant: "bob"})
	require.Equal(t, SupersedeSession, p.OnOffer("alice", responder))

	other, _ := newSession("aaron")
	other.SetState(domain.StateOfferSent)
	require.Equal(t, SupersedeSession, p.OnOffer("alice", other))
}
