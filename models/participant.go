// models/participant.go - Per-room membership records
package models

import (
	"time"
)

type ParticipantStatus string

const (
	ParticipantJoined  ParticipantStatus = "JOINED"
	ParticipantPlaying ParticipantStatus = "PLAYING"
	ParticipantLeft    ParticipantStatus = "LEFT"
)

// RoomParticipant is a member's membership record in one room. Rows are
// never hard-deleted: leaving sets status LEFT so a later rejoin can
// resurrect the same row instead of inserting a duplicate.
type RoomParticipant struct {
	ID       uint              `json:"id" gorm:"primaryKey"`
	RoomID   uint              `json:"room_id" gorm:"not null;index;uniqueIndex:idx_room_member"`
	Room     *GameRoom         `json:"-" gorm:"foreignKey:RoomID"`
	MemberID uint              `json:"member_id" gorm:"not null;index;uniqueIndex:idx_room_member"`
	Member   *Member           `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	Status   ParticipantStatus `json:"status" gorm:"default:'JOINED';size:20;index"`
	IsReady  bool              `json:"is_ready" gorm:"default:false"`

	// Cumulative game state
	Score        int `json:"score" gorm:"default:0"`
	CorrectCount int `json:"correct_count" gorm:"default:0"`

	// Per-round scratch state, cleared at every round start
	CurrentAnswer       string     `json:"-" gorm:"size:200"`
	HasAnswered         bool       `json:"has_answered" gorm:"default:false"`
	CurrentRoundCorrect bool       `json:"-" gorm:"default:false"`
	CurrentRoundScore   int        `json:"-" gorm:"default:0"`
	AnswerTime          *time.Time `json:"-"`

	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RoomParticipant) TableName() string {
	return "room_participants"
}

// IsActive reports whether the participant still occupies a room slot.
func (p *RoomParticipant) IsActive() bool {
	return p.Status != ParticipantLeft
}

// ResetScore clears the cumulative game state.
func (p *RoomParticipant) ResetScore() {
	p.Score = 0
	p.CorrectCount = 0
}

// ResetRoundAnswer clears the per-round scratch fields.
func (p *RoomParticipant) ResetRoundAnswer() {
	p.CurrentAnswer = ""
	p.HasAnswered = false
	p.CurrentRoundCorrect = false
	p.CurrentRoundScore = 0
	p.AnswerTime = nil
}

// RecordAnswer stores a judged submission. Cumulative score and correct
// count move together with the scratch fields.
func (p *RoomParticipant) RecordAnswer(answer string, correct bool, earned int) {
	now := time.Now()
	p.CurrentAnswer = answer
	p.HasAnswered = true
	p.CurrentRoundCorrect = correct
	p.CurrentRoundScore = earned
	p.AnswerTime = &now
	if correct {
		p.Score += earned
		p.CorrectCount++
	}
}
