// services/chat_service.go - Room chat
package services

import (
	"fmt"
	"strings"

	"songquiz/database"
	"songquiz/models"
)

const maxChatMessageLength = 200

// SendChat stores one chat message from a room participant. Banned terms
// are masked before storage so every poller sees the same text.
func SendChat(memberID, roomID uint, message string) (*models.RoomChat, error) {
	db := database.GetDB()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if len([]rune(message)) > maxChatMessageLength {
		return nil, fmt.Errorf("%w: message too long", ErrInvalidInput)
	}

	var room models.GameRoom
	if err := db.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}

	var participant models.RoomParticipant
	if err := db.Where("room_id = ? AND member_id = ? AND status != ?",
		roomID, memberID, models.ParticipantLeft).First(&participant).Error; err != nil {
		return nil, ErrParticipantNotFound
	}

	chat := models.RoomChat{
		RoomID:      roomID,
		MemberID:    memberID,
		Message:     MaskBadWords(message),
		MessageType: models.ChatNormal,
	}
	if room.Status == models.RoomPlaying {
		chat.RoundNumber = room.CurrentRound
	}

	if err := db.Create(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChatsSince returns messages after the given id, oldest first.
// Clients poll with the last id they have seen.
func GetChatsSince(roomID uint, afterID uint) ([]models.RoomChat, error) {
	db := database.GetDB()

	var chats []models.RoomChat
	if err := db.Preload("Member").
		Where("room_id = ? AND id > ?", roomID, afterID).
		Order("id ASC").Limit(100).Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}
