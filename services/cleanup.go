// services/cleanup.go - Background reconciliation of abandoned rooms
package services

import (
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"songquiz/database"
	"songquiz/models"
)

// Rooms that stop receiving writes are presumed abandoned after these
// thresholds. Every mutation touches updated_at, so an idle room is one
// nobody is polling actions against.
const (
	waitingRoomTTL  = 30 * time.Minute
	playingRoomTTL  = 2 * time.Hour
	finishedRoomTTL = 30 * time.Minute
)

// CleanupService sweeps abandoned rooms and orphaned participations on a
// fixed interval.
type CleanupService struct {
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

var (
	cleanupInstance *CleanupService
	cleanupOnce     sync.Once
)

// GetCleanupService returns the process-wide cleanup service.
func GetCleanupService() *CleanupService {
	cleanupOnce.Do(func() {
		cleanupInstance = &CleanupService{
			interval: 5 * time.Minute,
			stopCh:   make(chan struct{}),
		}
	})
	return cleanupInstance
}

// Start launches the background sweep loop.
func (s *CleanupService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Printf("🧹 Cleanup service started (interval: %v)", s.interval)
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopCh:
				log.Println("🧹 Cleanup service stopped")
				return
			}
		}
	}()
}

// Stop shuts the sweep loop down and waits for it to exit.
func (s *CleanupService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Sweep runs one reconciliation pass.
func (s *CleanupService) Sweep() {
	removed := SweepStaleRooms(time.Now())
	if removed > 0 {
		log.Printf("🧹 Swept %d stale rooms", removed)
	}
}

// SweepStaleRooms deletes rooms idle past their status TTL and rooms with
// no active participants left, marking the associated participations LEFT.
// Returns the number of rooms removed.
func SweepStaleRooms(now time.Time) int {
	db := database.GetDB()

	var rooms []models.GameRoom
	if err := db.Find(&rooms).Error; err != nil {
		log.Printf("❌ Cleanup scan failed: %v", err)
		return 0
	}

	removed := 0
	for i := range rooms {
		room := &rooms[i]

		var ttl time.Duration
		switch room.Status {
		case models.RoomWaiting:
			ttl = waitingRoomTTL
		case models.RoomPlaying:
			ttl = playingRoomTTL
		case models.RoomFinished:
			ttl = finishedRoomTTL
		}

		stale := now.Sub(room.UpdatedAt) > ttl

		var active int64
		db.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND status != ?", room.ID, models.ParticipantLeft).
			Count(&active)

		if !stale && active > 0 {
			continue
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.RoomParticipant{}).
				Where("room_id = ?", room.ID).
				Update("status", models.ParticipantLeft).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", room.ID).Delete(&models.RoomChat{}).Error; err != nil {
				return err
			}
			return tx.Delete(room).Error
		})
		if err != nil {
			log.Printf("❌ Failed to sweep room %s: %v", room.RoomCode, err)
			continue
		}
		forgetRoomLock(room.ID)
		removed++
		log.Printf("🗑️ Swept room %s (status=%s, idle=%v, active=%d)",
			room.RoomCode, room.Status, now.Sub(room.UpdatedAt).Round(time.Second), active)
	}
	return removed
}

// ReconcileMemberSessions clears a member's participations in rooms that
// already finished. Called on login so a crashed results screen never
// blocks joining a new room.
func ReconcileMemberSessions(memberID uint) error {
	db := database.GetDB()
	return db.Transaction(func(tx *gorm.DB) error {
		return reconcileStaleParticipations(tx, memberID)
	})
}
