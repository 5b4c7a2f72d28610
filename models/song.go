// models/song.go - Song catalog (answer data for rounds)
package models

import (
	"time"
)

// Genre is the category a round's song is drawn from.
type Genre struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:50;uniqueIndex"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

func (Genre) TableName() string {
	return "genres"
}

type Song struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Title   string `json:"title" gorm:"not null;size:200"`
	Artist  string `json:"artist" gorm:"not null;size:100"`
	GenreID uint   `json:"genre_id" gorm:"not null;index"`
	Genre   *Genre `json:"genre,omitempty" gorm:"foreignKey:GenreID"`

	ReleaseYear int `json:"release_year"`

	// Playback fields handed to clients while the round is live
	YoutubeVideoID string `json:"youtube_video_id" gorm:"size:50"`
	FilePath       string `json:"file_path" gorm:"size:300"`
	StartTime      int    `json:"start_time" gorm:"default:0"`     // offset seconds
	PlayDuration   int    `json:"play_duration" gorm:"default:30"` // seconds

	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Answers []SongAnswer `json:"answers,omitempty" gorm:"foreignKey:SongID"`
}

func (Song) TableName() string {
	return "songs"
}

// SongAnswer is an alternate accepted title for a song (abbreviations,
// romanizations, common misspellings).
type SongAnswer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SongID    uint      `json:"song_id" gorm:"not null;index"`
	Answer    string    `json:"answer" gorm:"not null;size:200"`
	CreatedAt time.Time `json:"created_at"`
}

func (SongAnswer) TableName() string {
	return "song_answers"
}

// BadWord is a banned chat term with its masking replacement.
type BadWord struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Word        string    `json:"word" gorm:"not null;size:100;uniqueIndex"`
	Replacement string    `json:"replacement" gorm:"size:100"`
	IsActive    bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt   time.Time `json:"created_at"`
}

func (BadWord) TableName() string {
	return "bad_words"
}
