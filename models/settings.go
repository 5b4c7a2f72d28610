// models/settings.go - Typed per-room game settings
package models

import (
	"encoding/json"
	"fmt"
)

type GameMode string

const (
	ModeRandom        GameMode = "RANDOM"          // any active song each round
	ModeFixedGenre    GameMode = "FIXED_GENRE"     // every round from one genre
	ModeGenrePerRound GameMode = "GENRE_PER_ROUND" // host picks a genre each round
)

// GameSettings is validated once at room creation and stored normalized on
// the room row, so read sites never re-parse ad hoc.
type GameSettings struct {
	GameMode     GameMode `json:"gameMode"`
	FixedGenreID *uint    `json:"fixedGenreId,omitempty"`
	TimeLimit    int      `json:"timeLimit"` // seconds per round, client-enforced
}

// DefaultGameSettings returns the settings used when a client sends none.
func DefaultGameSettings() GameSettings {
	return GameSettings{GameMode: ModeRandom, TimeLimit: 30}
}

// ParseGameSettings decodes raw settings JSON, filling defaults for
// omitted fields. Empty input yields the defaults.
func ParseGameSettings(raw string) (GameSettings, error) {
	s := DefaultGameSettings()
	if raw == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	if s.GameMode == "" {
		s.GameMode = ModeRandom
	}
	if s.TimeLimit == 0 {
		s.TimeLimit = 30
	}
	return s, nil
}

// Validate enforces the creation-time constraints.
func (s GameSettings) Validate() error {
	switch s.GameMode {
	case ModeRandom, ModeGenrePerRound:
	case ModeFixedGenre:
		if s.FixedGenreID == nil {
			return fmt.Errorf("fixed genre mode requires fixedGenreId")
		}
	default:
		return fmt.Errorf("unknown game mode %q", s.GameMode)
	}
	if s.TimeLimit < 10 || s.TimeLimit > 120 {
		return fmt.Errorf("time limit must be between 10 and 120 seconds")
	}
	return nil
}

// Encode returns the normalized JSON stored on the room row.
func (s GameSettings) Encode() string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

// RoomSettings decodes the room's stored settings. The column always holds
// normalized JSON written by CreateRoom, so decoding cannot fail after that.
func (r *GameRoom) RoomSettings() GameSettings {
	s, err := ParseGameSettings(r.Settings)
	if err != nil {
		return DefaultGameSettings()
	}
	return s
}
