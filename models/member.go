// models/member.go
package models

import (
	"time"
)

type Member struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Username string  `gorm:"uniqueIndex;not null" json:"username"`
	Nickname string  `gorm:"not null;size:50" json:"nickname"`
	Email    *string `gorm:"uniqueIndex" json:"email,omitempty"`
	Password string  `gorm:"not null" json:"-"`
	IsGuest  bool    `gorm:"default:false" json:"is_guest"`

	// Multiplayer aggregate stats, rolled up when a game finishes
	MultiGames   int `gorm:"default:0" json:"multi_games"`
	MultiScore   int `gorm:"default:0" json:"multi_score"`
	MultiCorrect int `gorm:"default:0" json:"multi_correct"`
	MultiBest    int `gorm:"default:0" json:"multi_best"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastLogin time.Time `json:"last_login"`
}

func (Member) TableName() string {
	return "members"
}

// AddMultiGameResult folds one finished game into the aggregate stats.
func (m *Member) AddMultiGameResult(score, correctCount int) {
	m.MultiGames++
	m.MultiScore += score
	m.MultiCorrect += correctCount
	if score > m.MultiBest {
		m.MultiBest = score
	}
}
