package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGameSettings(t *testing.T) {
	t.Run("empty input yields defaults", func(t *testing.T) {
		s, err := ParseGameSettings("")
		require.NoError(t, err)
		assert.Equal(t, ModeRandom, s.GameMode)
		assert.Equal(t, 30, s.TimeLimit)
	})

	t.Run("partial input fills defaults", func(t *testing.T) {
		s, err := ParseGameSettings(`{"gameMode":"GENRE_PER_ROUND"}`)
		require.NoError(t, err)
		assert.Equal(t, ModeGenrePerRound, s.GameMode)
		assert.Equal(t, 30, s.TimeLimit)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, err := ParseGameSettings("{not json")
		assert.Error(t, err)
	})
}

func TestGameSettingsValidate(t *testing.T) {
	genreID := uint(7)

	tests := []struct {
		name     string
		settings GameSettings
		wantErr  bool
	}{
		{"defaults", DefaultGameSettings(), false},
		{"genre per round", GameSettings{GameMode: ModeGenrePerRound, TimeLimit: 30}, false},
		{"fixed genre with id", GameSettings{GameMode: ModeFixedGenre, FixedGenreID: &genreID, TimeLimit: 30}, false},
		{"fixed genre missing id", GameSettings{GameMode: ModeFixedGenre, TimeLimit: 30}, true},
		{"unknown mode", GameSettings{GameMode: "SPEEDRUN", TimeLimit: 30}, true},
		{"time limit too low", GameSettings{GameMode: ModeRandom, TimeLimit: 5}, true},
		{"time limit too high", GameSettings{GameMode: ModeRandom, TimeLimit: 600}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettingsEncodeRoundTrip(t *testing.T) {
	genreID := uint(3)
	original := GameSettings{GameMode: ModeFixedGenre, FixedGenreID: &genreID, TimeLimit: 45}

	parsed, err := ParseGameSettings(original.Encode())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestRoomUsedSongTracking(t *testing.T) {
	room := &GameRoom{}
	assert.Empty(t, room.UsedSongSet())

	room.AddUsedSong(5)
	room.AddUsedSong(9)
	room.AddUsedSong(5) // duplicate ignored

	set := room.UsedSongSet()
	assert.Len(t, set, 2)
	assert.True(t, set[5])
	assert.True(t, set[9])

	room.ClearUsedSongs()
	assert.Empty(t, room.UsedSongSet())
}
