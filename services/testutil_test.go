package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"songquiz/database"
	"songquiz/models"
)

// setupTestDB wires the services to a fresh in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection, every pooled connection would otherwise get its
	// own empty :memory: database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Member{},
		&models.Genre{},
		&models.Song{},
		&models.SongAnswer{},
		&models.BadWord{},
		&models.GameRoom{},
		&models.RoomParticipant{},
		&models.RoomChat{},
	))

	database.SetDB(db)
	InvalidateBadWordCache()
	return db
}

func createMember(t *testing.T, db *gorm.DB, nickname string) *models.Member {
	t.Helper()
	member := models.Member{
		Username: fmt.Sprintf("user_%s_%d", nickname, time.Now().UnixNano()),
		Nickname: nickname,
	}
	require.NoError(t, db.Create(&member).Error)
	return &member
}

func createGenreWithSongs(t *testing.T, db *gorm.DB, name string, count int) *models.Genre {
	t.Helper()
	genre := models.Genre{Name: name, IsActive: true}
	require.NoError(t, db.Create(&genre).Error)

	for i := 0; i < count; i++ {
		song := models.Song{
			Title:        fmt.Sprintf("%s Song %d", name, i+1),
			Artist:       fmt.Sprintf("%s Artist %d", name, i+1),
			GenreID:      genre.ID,
			IsActive:     true,
			PlayDuration: 30,
		}
		require.NoError(t, db.Create(&song).Error)
	}
	return &genre
}

func defaultRoomInput() CreateRoomInput {
	return CreateRoomInput{
		RoomName:    "Test Room",
		MaxPlayers:  4,
		TotalRounds: 3,
		Settings:    models.DefaultGameSettings(),
	}
}

// makeWaitingRoom creates a room with host plus extra joined-and-ready
// guests, returning the room and all members (host first).
func makeWaitingRoom(t *testing.T, db *gorm.DB, guests int) (*models.GameRoom, []*models.Member) {
	t.Helper()

	host := createMember(t, db, "host")
	room, err := CreateRoom(host.ID, defaultRoomInput())
	require.NoError(t, err)

	members := []*models.Member{host}
	for i := 0; i < guests; i++ {
		guest := createMember(t, db, fmt.Sprintf("guest%d", i+1))
		_, err := JoinRoom(guest.ID, room.RoomCode, "")
		require.NoError(t, err)
		// Deterministic join order for host promotion checks.
		require.NoError(t, db.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND member_id = ?", room.ID, guest.ID).
			Update("joined_at", time.Now().Add(time.Duration(i+1)*time.Second)).Error)
		_, err = ToggleReady(guest.ID, room.ID)
		require.NoError(t, err)
		members = append(members, guest)
	}
	return room, members
}

func participantOf(t *testing.T, db *gorm.DB, roomID, memberID uint) *models.RoomParticipant {
	t.Helper()
	var p models.RoomParticipant
	require.NoError(t, db.Where("room_id = ? AND member_id = ?", roomID, memberID).First(&p).Error)
	return &p
}

func reloadRoom(t *testing.T, db *gorm.DB, roomID uint) *models.GameRoom {
	t.Helper()
	var room models.GameRoom
	require.NoError(t, db.First(&room, roomID).Error)
	return &room
}
