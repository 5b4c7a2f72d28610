// models/room.go - Multiplayer Game Room
package models

import (
	"encoding/json"
	"time"
)

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "WAITING"
	RoomPlaying  RoomStatus = "PLAYING"
	RoomFinished RoomStatus = "FINISHED"
)

type RoundPhase string

const (
	PhaseCategorySelect RoundPhase = "CATEGORY_SELECT"
	PhasePlaying        RoundPhase = "PLAYING"
	PhaseResult         RoundPhase = "RESULT"
)

// GameRoom is one shared game instance, joined via a short code.
type GameRoom struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	RoomCode    string     `json:"room_code" gorm:"uniqueIndex;not null;size:6"`
	RoomName    string     `json:"room_name" gorm:"not null;size:50"`
	HostID      uint       `json:"host_id" gorm:"not null;index"`
	Host        *Member    `json:"host,omitempty" gorm:"foreignKey:HostID"`
	MaxPlayers  int        `json:"max_players" gorm:"default:8"`
	TotalRounds int        `json:"total_rounds" gorm:"default:10"`
	IsPrivate   bool       `json:"is_private" gorm:"default:false"`
	Password    string     `json:"-" gorm:"size:50"`
	Settings    string     `json:"settings" gorm:"type:text"` // normalized GameSettings JSON
	Status      RoomStatus `json:"status" gorm:"default:'WAITING';size:20;index"`

	// Round progress
	CurrentRound   int         `json:"current_round" gorm:"default:0"`
	RoundPhase     *RoundPhase `json:"round_phase" gorm:"size:20"` // non-nil only while PLAYING
	CurrentSongID  *uint       `json:"-" gorm:"index"`
	CurrentSong    *Song       `json:"-" gorm:"foreignKey:CurrentSongID"`
	RoundStartTime *time.Time  `json:"round_start_time"`

	// Audio sync signal (host-controlled, clients poll it)
	AudioPlaying  bool   `json:"audio_playing" gorm:"default:false"`
	AudioPlayedAt *int64 `json:"audio_played_at"` // epoch millis

	// Songs already asked this room lifetime, JSON array of song ids.
	UsedSongIDs string `json:"-" gorm:"type:text"`

	// Grace marker: leave signals arriving shortly after a restart are the
	// tail of the previous game's page unload and must be ignored.
	RestartedAt *time.Time `json:"restarted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []RoomParticipant `json:"participants,omitempty" gorm:"foreignKey:RoomID"`
}

func (GameRoom) TableName() string {
	return "game_rooms"
}

// IsHost reports whether the given member currently holds the host role.
func (r *GameRoom) IsHost(memberID uint) bool {
	return r.HostID == memberID
}

// UsedSongSet decodes the used-song column into a lookup set.
func (r *GameRoom) UsedSongSet() map[uint]bool {
	set := make(map[uint]bool)
	if r.UsedSongIDs == "" {
		return set
	}
	var ids []uint
	if err := json.Unmarshal([]byte(r.UsedSongIDs), &ids); err != nil {
		return set
	}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// AddUsedSong records a song id into the used-song column.
func (r *GameRoom) AddUsedSong(songID uint) {
	var ids []uint
	if r.UsedSongIDs != "" {
		_ = json.Unmarshal([]byte(r.UsedSongIDs), &ids)
	}
	for _, id := range ids {
		if id == songID {
			return
		}
	}
	ids = append(ids, songID)
	encoded, _ := json.Marshal(ids)
	r.UsedSongIDs = string(encoded)
}

// ClearUsedSongs resets the used-song set (game start / restart / finish).
func (r *GameRoom) ClearUsedSongs() {
	r.UsedSongIDs = ""
}

func (r *GameRoom) SetPhase(phase RoundPhase) {
	r.RoundPhase = &phase
}

func (r *GameRoom) InPhase(phase RoundPhase) bool {
	return r.RoundPhase != nil && *r.RoundPhase == phase
}
