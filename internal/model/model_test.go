package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsUnordered(t *testing.T) {
	assert.Equal(t, "1:2", PairKey(1, 2))
	assert.Equal(t, "1:2", PairKey(2, 1))
	assert.Equal(t, "7:7", PairKey(7, 7))
}

func TestConnectionStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionStatus
		want     bool
	}{
		{ConnectionPending, ConnectionAccepted, true},
		{ConnectionPending, ConnectionRejected, true},
		{ConnectionPending, ConnectionPending, false},
		{ConnectionAccepted, ConnectionRejected, false},
		{ConnectionRejected, ConnectionAccepted, false},
		{ConnectionAccepted, ConnectionPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, ConnectionAccepted.Terminal())
	assert.False(t, ConnectionPending.Terminal())
	assert.False(t, ConnectionStatus("blocked").Valid())
}

func TestConversationOther(t *testing.T) {
	c := &Conversation{Participant1: 3, Participant2: 9}

	assert.Equal(t, uint(9), c.Other(3))
	assert.Equal(t, uint(3), c.Other(9))
	assert.Equal(t, uint(0), c.Other(4))
	assert.True(t, c.HasMember(9))
	assert.False(t, c.HasMember(4))
}

func TestTypesValid(t *testing.T) {
	assert.True(t, ConnectionVideoCall.Valid())
	assert.False(t, ConnectionType("friend").Valid())
	assert.True(t, MessageSystem.Valid())
	assert.False(t, MessageType("sticker").Valid())
}
