package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseParticipantID(t *testing.T) {
	id, err := ParseParticipantID("alice")
	require.NoError(t, err)
	require.Equal(t, ParticipantID("alice"), id)

	_, err = ParseParticipantID("")
	require.ErrorIs(t, err, ErrParticipantIDEmpty)

	long := strings.Repeat("x", 4096)
	id, err = ParseParticipantID(long)
	require.NoError(t, err)
	require.Equal(t, ParticipantID(long), id)
}

func TestNewParticipantIDIsValid(t *testing.T) {
	id := NewParticipantID()
	_, err := ParseParticipantID(string(id))
	require.NoError(t, err)
	require.NotEqual(t, id, NewParticipantID())
}

func TestStateNames(t *testing.T) {
	require.Equal(t, "offer_sent", StateOfferSent.String())
	require.Equal(t, "stable", StateStable.String())
	require.Equal(t, "responder", RoleResponder.String())
}
