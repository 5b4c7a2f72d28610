// models/chat.go - Waiting-room and in-game chat
package models

import (
	"time"
)

type ChatType string

const (
	ChatNormal  ChatType = "CHAT"
	ChatSystem  ChatType = "SYSTEM"
	ChatCorrect ChatType = "CORRECT"
)

type RoomChat struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RoomID      uint      `json:"room_id" gorm:"not null;index"`
	Room        *GameRoom `json:"-" gorm:"foreignKey:RoomID"`
	MemberID    uint      `json:"member_id" gorm:"not null;index"`
	Member      *Member   `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	Message     string    `json:"message" gorm:"not null;size:200"`
	MessageType ChatType  `json:"message_type" gorm:"default:'CHAT';size:20"`
	RoundNumber int       `json:"round_number" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (RoomChat) TableName() string {
	return "room_chats"
}

// SystemChat builds a system announcement row.
func SystemChat(roomID, memberID uint, message string) RoomChat {
	return RoomChat{RoomID: roomID, MemberID: memberID, Message: message, MessageType: ChatSystem}
}
