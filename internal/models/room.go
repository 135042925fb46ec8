package models

import (
	"time"
)

// RoomIDPrefix is prepended to the counterpart id to derive a room id
const RoomIDPrefix = "room-"

// Room is the conversation between one counterpart and the support staff
type Room struct {
	ID              string          `json:"roomId" gorm:"primaryKey;size:160"`
	CounterpartType CounterpartType `json:"counterpartType" gorm:"size:16;not null"`
	CounterpartID   string          `json:"counterpartId" gorm:"size:128;not null;uniqueIndex:idx_chat_rooms_counterpart"`
	AdminID         string          `json:"adminId" gorm:"size:128;not null;index"`
	CounselorID     *string         `json:"counselorId,omitempty" gorm:"size:128;index"`
	MessageSeq      int64           `json:"-" gorm:"not null;default:0"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Room) TableName() string { return "chat_rooms" }

// RoomIDFor derives the room id of a counterpart
func RoomIDFor(c Counterpart) string {
	return RoomIDPrefix + c.ID()
}

// NewRoom builds a fresh room for a counterpart, assigned to an admin
func NewRoom(c Counterpart, adminID string, now time.Time) *Room {
	return &Room{
		ID:              RoomIDFor(c),
		CounterpartType: c.Type(),
		CounterpartID:   c.ID(),
		AdminID:         adminID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Counterpart returns the victim-side identity of the room
func (r *Room) Counterpart() Identity {
	if r.CounterpartType == CounterpartAnonymous {
		return Anonymous(r.CounterpartID)
	}
	return Victim(r.CounterpartID)
}

// IsParticipant reports whether the identity may read or write the room
func (r *Room) IsParticipant(identity Identity) bool {
	switch identity.Role {
	case RoleVictim, RoleAnonymous:
		return r.Counterpart() == identity
	case RoleAdmin:
		return r.AdminID == identity.ID
	case RoleCounselor:
		return r.CounselorID != nil && *r.CounselorID == identity.ID
	}
	return false
}

// RoomSummary is a staff list entry
type RoomSummary struct {
	RoomID          string          `json:"id"`
	Name            string          `json:"name"`
	CounterpartType CounterpartType `json:"type"`
	LastMessage     string          `json:"lastMessage,omitempty"`
	LastMessageTime *time.Time      `json:"lastMessageTime,omitempty"`
	UnreadCount     int64           `json:"unreadCount"`
}
