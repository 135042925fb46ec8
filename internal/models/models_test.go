package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterpartConstruction(t *testing.T) {
	c, err := NewRegisteredCounterpart("64f1a2b3c4d5e6f708192a01")
	require.NoError(t, err)
	assert.Equal(t, CounterpartRegistered, c.Type())
	assert.Equal(t, Victim("64f1a2b3c4d5e6f708192a01"), c.Identity())
	assert.Equal(t, "room-64f1a2b3c4d5e6f708192a01", RoomIDFor(c))

	a, err := NewAnonymousCounterpart("ANONYMOUS482")
	require.NoError(t, err)
	assert.Equal(t, CounterpartAnonymous, a.Type())
	assert.Equal(t, Anonymous("ANONYMOUS482"), a.Identity())

	// session tokens are not account ids
	_, err = NewRegisteredCounterpart("ANONYMOUS482")
	assert.ErrorIs(t, err, ErrInvalidCounterpart)

	for _, short := range []string{"64f1a2b3c4d5e6f708192a0", "64f1a2b3c4d5e6f708192a01ff", "64f1a2b3c4d5e6f708192azz"} {
		_, err := NewRegisteredCounterpart(short)
		assert.ErrorIs(t, err, ErrInvalidCounterpart, short)
	}

	for _, bad := range []string{"", "../etc", "a b", "x/y"} {
		_, err := NewRegisteredCounterpart(bad)
		assert.True(t, errors.Is(err, ErrInvalidCounterpart), bad)
		_, err = NewAnonymousCounterpart(bad)
		assert.True(t, errors.Is(err, ErrInvalidCounterpart), bad)
	}

	_, err = CounterpartFor(Admin("A1"))
	assert.ErrorIs(t, err, ErrInvalidCounterpart)
	_, err = CounterpartFor(Victim("ANONYMOUS482"))
	assert.ErrorIs(t, err, ErrInvalidCounterpart)
}

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("Counselor", "C7")
	require.NoError(t, err)
	assert.True(t, id.IsStaff())
	assert.False(t, id.IsVictimSide())

	_, err = NewIdentity("Root", "x")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = NewIdentity("Victim", "")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestRoomParticipants(t *testing.T) {
	c, _ := NewAnonymousCounterpart("tok")
	room := NewRoom(c, "A1", time.Now())

	assert.True(t, room.IsParticipant(Anonymous("tok")))
	assert.False(t, room.IsParticipant(Victim("tok")))
	assert.True(t, room.IsParticipant(Admin("A1")))
	assert.False(t, room.IsParticipant(Admin("A2")))
	assert.False(t, room.IsParticipant(Counselor("C1")))

	counselor := "C1"
	room.CounselorID = &counselor
	assert.True(t, room.IsParticipant(Counselor("C1")))
}

func TestDraftValidate(t *testing.T) {
	assert.NoError(t, TextDraft(Victim("64f1a2b3c4d5e6f708192a01"), "help").Validate())
	assert.ErrorIs(t, TextDraft(Victim("64f1a2b3c4d5e6f708192a01"), "   ").Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, TextDraft(Identity{}, "hi").Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Draft{Sender: Admin("A1"), Kind: "video", Content: "x"}.Validate(), ErrInvalidMessage)
}

func TestMessageJSON(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := TextDraft(Victim("64f1a2b3c4d5e6f708192a01"), "help").ToMessage("01J", "room-64f1a2b3c4d5e6f708192a01", 1, ts)
	msg.Reads = append(msg.Reads, MessageRead{MessageID: "01J", ReaderRole: RoleAdmin, ReaderID: "A1"})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "help", wire["content"])
	assert.Equal(t, "Victim", wire["senderType"])
	assert.Equal(t, "64f1a2b3c4d5e6f708192a01", wire["sender"])
	assert.Equal(t, "text", wire["messageType"])
	assert.Len(t, wire["readBy"], 1)

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Victim("64f1a2b3c4d5e6f708192a01"), back.Sender())
	assert.True(t, back.HasRead(Admin("A1")))
	assert.True(t, back.Timestamp.Equal(ts))
}
