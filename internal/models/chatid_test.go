package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatIDOrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"alice", "bob"},
		{"9f2c1a", "0b3d44"},
		{" u1", "u2 "},
	}
	for _, p := range pairs {
		ab := NewChatID(p[0], p[1])
		ba := NewChatID(p[1], p[0])
		assert.Equal(t, ab, ba, "pair %v", p)
		assert.Equal(t, ab, NewChatID(p[0], p[1]), "repeated derivation must be stable")
	}
}

func TestNewChatIDTrimsWhitespace(t *testing.T) {
	assert.Equal(t, NewChatID("u1", "u2"), NewChatID("  u1  ", "u2\n"))
}

func TestSplitChatIDRoundTrip(t *testing.T) {
	id := NewChatID("u2", "u1")
	a, b, err := SplitChatID(id)
	require.NoError(t, err)
	assert.Equal(t, "u1", a)
	assert.Equal(t, "u2", b)
}

func TestSplitChatIDMalformed(t *testing.T) {
	for _, id := range []string{"", "solo", "_trailing", "leading_"} {
		_, _, err := SplitChatID(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestOtherParticipant(t *testing.T) {
	id := NewChatID("u1", "u2")

	other, err := OtherParticipant(id, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u2", other)

	other, err = OtherParticipant(id, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u1", other)

	_, err = OtherParticipant(id, "u3")
	assert.Error(t, err)
}

func TestIsParticipant(t *testing.T) {
	id := NewChatID("u1", "u2")
	assert.True(t, IsParticipant(id, "u1"))
	assert.True(t, IsParticipant(id, "u2"))
	assert.False(t, IsParticipant(id, "u3"))
	assert.False(t, IsParticipant("garbage", "u1"))
}
