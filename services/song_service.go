// services/song_service.go - Song selection and answer validation
package services

import (
	"log"
	"math/rand"
	"strings"
	"unicode"

	"songquiz/database"
	"songquiz/models"
)

// randIntn is swappable so tests can pin song selection.
var randIntn = rand.Intn

// NormalizeAnswer reduces an answer string to its comparable form:
// lowercase, with everything but letters, digits and Hangul stripped.
// "Spring Day (봄날)" and "springday봄날" compare equal.
func NormalizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.Is(unicode.Hangul, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateAnswer judges a submission against a song's title and its
// registered alternate answers.
func ValidateAnswer(song *models.Song, submitted string) bool {
	normalized := NormalizeAnswer(submitted)
	if normalized == "" {
		return false
	}
	if normalized == NormalizeAnswer(song.Title) {
		return true
	}
	for _, alt := range song.Answers {
		if normalized == NormalizeAnswer(alt.Answer) {
			return true
		}
	}
	return false
}

// RandomSongExcluding picks a random active song not in the used set,
// optionally restricted to one genre. Returns ErrNoSongAvailable when
// the pool is exhausted.
func RandomSongExcluding(genreID *uint, used map[uint]bool) (*models.Song, error) {
	db := database.GetDB()

	query := db.Model(&models.Song{}).Where("is_active = ?", true)
	if genreID != nil {
		query = query.Where("genre_id = ?", *genreID)
	}

	var ids []uint
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	candidates := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !used[id] {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoSongAvailable
	}

	picked := candidates[randIntn(len(candidates))]

	var song models.Song
	if err := db.Preload("Genre").Preload("Answers").First(&song, picked).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// GenreRemaining is one selectable genre with its unused-song count,
// shown to the host during category selection.
type GenreRemaining struct {
	GenreID   uint   `json:"genre_id"`
	GenreName string `json:"genre_name"`
	Remaining int    `json:"remaining"`
}

// GenresWithRemainingCount lists active genres that still have at least
// one song the room has not used.
func GenresWithRemainingCount(used map[uint]bool) ([]GenreRemaining, error) {
	db := database.GetDB()

	var genres []models.Genre
	if err := db.Where("is_active = ?", true).Order("name ASC").Find(&genres).Error; err != nil {
		return nil, err
	}

	result := make([]GenreRemaining, 0, len(genres))
	for _, g := range genres {
		var ids []uint
		if err := db.Model(&models.Song{}).
			Where("genre_id = ? AND is_active = ?", g.ID, true).
			Pluck("id", &ids).Error; err != nil {
			log.Printf("❌ Failed to count songs for genre %d: %v", g.ID, err)
			continue
		}
		remaining := 0
		for _, id := range ids {
			if !used[id] {
				remaining++
			}
		}
		if remaining > 0 {
			result = append(result, GenreRemaining{GenreID: g.ID, GenreName: g.Name, Remaining: remaining})
		}
	}
	return result, nil
}

// GetGenre loads one active genre.
func GetGenre(genreID uint) (*models.Genre, error) {
	var genre models.Genre
	if err := database.GetDB().Where("id = ? AND is_active = ?", genreID, true).First(&genre).Error; err != nil {
		return nil, ErrGenreNotFound
	}
	return &genre, nil
}
