package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the payload type of a message
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
	KindFile  Kind = "file"
)

var ErrInvalidMessage = errors.New("invalid message")

// ParseKind converts a message type tag into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindText, KindVoice, KindFile:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, s)
}

// IsAttachment reports whether the content of this kind is a stored file
func (k Kind) IsAttachment() bool {
	return k == KindVoice || k == KindFile
}

// Message is one entry of a room's log. Only Reads grows after it is stored.
type Message struct {
	ID         string        `gorm:"primaryKey;size:26"`
	RoomID     string        `gorm:"size:160;not null;uniqueIndex:idx_chat_messages_room_seq,priority:1"`
	Seq        int64         `gorm:"not null;uniqueIndex:idx_chat_messages_room_seq,priority:2"`
	SenderRole Role          `gorm:"size:16;not null"`
	SenderID   string        `gorm:"size:128;not null"`
	Kind       Kind          `gorm:"size:8;not null"`
	Content    string        `gorm:"type:text;not null"`
	FileName   string        `gorm:"size:255"`
	FileSize   int64         `gorm:"not null;default:0"`
	Duration   float64       `gorm:"not null;default:0"`
	Timestamp  time.Time     `gorm:"not null;index"`
	Reads      []MessageRead `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string { return "chat_messages" }

// MessageRead records that an identity has acknowledged a message
type MessageRead struct {
	MessageID  string    `gorm:"primaryKey;size:26"`
	ReaderRole Role      `gorm:"primaryKey;size:16"`
	ReaderID   string    `gorm:"primaryKey;size:128"`
	ReadAt     time.Time `gorm:"not null"`
}

func (MessageRead) TableName() string { return "chat_message_reads" }

func (r MessageRead) Reader() Identity {
	return Identity{Role: r.ReaderRole, ID: r.ReaderID}
}

func (m *Message) Sender() Identity {
	return Identity{Role: m.SenderRole, ID: m.SenderID}
}

// ReadBy returns the identities that acknowledged the message
func (m *Message) ReadBy() []Identity {
	readers := make([]Identity, 0, len(m.Reads))
	for _, r := range m.Reads {
		readers = append(readers, r.Reader())
	}
	return readers
}

// HasRead reports whether the identity acknowledged the message
func (m *Message) HasRead(identity Identity) bool {
	for _, r := range m.Reads {
		if r.ReaderRole == identity.Role && r.ReaderID == identity.ID {
			return true
		}
	}
	return false
}

type messageJSON struct {
	ID          string     `json:"id"`
	RoomID      string     `json:"roomId"`
	Content     string     `json:"content"`
	Sender      string     `json:"sender"`
	SenderType  Role       `json:"senderType"`
	Timestamp   time.Time  `json:"timestamp"`
	MessageType Kind       `json:"messageType"`
	FileName    string     `json:"fileName,omitempty"`
	FileSize    int64      `json:"fileSize,omitempty"`
	Duration    float64    `json:"duration,omitempty"`
	ReadBy      []Identity `json:"readBy"`
}

// MarshalJSON renders the wire shape used by both HTTP and live events
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:          m.ID,
		RoomID:      m.RoomID,
		Content:     m.Content,
		Sender:      m.SenderID,
		SenderType:  m.SenderRole,
		Timestamp:   m.Timestamp,
		MessageType: m.Kind,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		Duration:    m.Duration,
		ReadBy:      m.ReadBy(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, used by relay consumers
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message{
		ID:         raw.ID,
		RoomID:     raw.RoomID,
		SenderRole: raw.SenderType,
		SenderID:   raw.Sender,
		Kind:       raw.MessageType,
		Content:    raw.Content,
		FileName:   raw.FileName,
		FileSize:   raw.FileSize,
		Duration:   raw.Duration,
		Timestamp:  raw.Timestamp,
	}
	for _, r := range raw.ReadBy {
		m.Reads = append(m.Reads, MessageRead{MessageID: raw.ID, ReaderRole: r.Role, ReaderID: r.ID})
	}
	return nil
}

// Draft is a message before the store assigns id, sequence and timestamp
type Draft struct {
	Sender   Identity
	Kind     Kind
	Content  string
	FileName string
	FileSize int64
	Duration float64
}

// TextDraft builds a draft for a plain text message
func TextDraft(sender Identity, content string) Draft {
	return Draft{Sender: sender, Kind: KindText, Content: content}
}

// Validate checks that the draft can be appended
func (d Draft) Validate() error {
	if err := d.Sender.Validate(); err != nil {
		return fmt.Errorf("%w: sender: %v", ErrInvalidMessage, err)
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	if d.FileSize < 0 || d.Duration < 0 {
		return fmt.Errorf("%w: negative size or duration", ErrInvalidMessage)
	}
	return nil
}

// ToMessage materializes the draft for a room
func (d Draft) ToMessage(id, roomID string, seq int64, ts time.Time) *Message {
	return &Message{
		ID:         id,
		RoomID:     roomID,
		Seq:        seq,
		SenderRole: d.Sender.Role,
		SenderID:   d.Sender.ID,
		Kind:       d.Kind,
		Content:    d.Content,
		FileName:   d.FileName,
		FileSize:   d.FileSize,
		Duration:   d.Duration,
		Timestamp:  ts,
		Reads:      []MessageRead{},
	}
}
