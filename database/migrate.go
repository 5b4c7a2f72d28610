// database/migrate.go - Database Migration Runner
package database

import (
	"log"
	"songquiz/models"
)

// RunMigrations runs all database migrations
func RunMigrations() {
	db := GetDB()
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.Member{},
		&models.Genre{},
		&models.Song{},
		&models.SongAnswer{},
		&models.BadWord{},
		&models.GameRoom{},
		&models.RoomParticipant{},
		&models.RoomChat{},
	); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}

	createIndexes()

	log.Println("✅ All migrations completed successfully")
}

// createIndexes creates the indexes the hot polling paths rely on
func createIndexes() {
	db := GetDB()

	// Room lookups
	db.Exec("CREATE INDEX IF NOT EXISTS idx_game_rooms_status ON game_rooms(status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_game_rooms_host ON game_rooms(host_id)")

	// Participant lookups: active-participation checks scan by member+status
	db.Exec("CREATE INDEX IF NOT EXISTS idx_participants_member_status ON room_participants(member_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_participants_room_status ON room_participants(room_id, status)")

	// Incremental chat polling
	db.Exec("CREATE INDEX IF NOT EXISTS idx_room_chats_room_id ON room_chats(room_id, id)")

	// Song selection
	db.Exec("CREATE INDEX IF NOT EXISTS idx_songs_genre_active ON songs(genre_id, is_active)")
}
