// services/room_service.go - Room lifecycle: create, join, leave, ready, kick, restart
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"songquiz/database"
	"songquiz/models"
)

// Room codes avoid 0/O/1/I so players can read them aloud.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const roomCodeLength = 6

// restartGraceWindow: leave signals arriving this soon after a restart are
// page-unload stragglers from the finished game and are ignored.
const restartGraceWindow = 5 * time.Second

// generateRoomCode draws random codes until one is unused, giving up
// after 100 attempts.
func generateRoomCode(db *gorm.DB) (string, error) {
	buf := make([]byte, roomCodeLength)
	for attempt := 0; attempt < 100; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, roomCodeLength)
		for i, b := range buf {
			code[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
		}

		var count int64
		if err := db.Model(&models.GameRoom{}).Where("room_code = ?", string(code)).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique room code")
}

// CreateRoomInput carries the client-provided room options.
type CreateRoomInput struct {
	RoomName    string
	MaxPlayers  int
	TotalRounds int
	IsPrivate   bool
	Password    string
	Settings    models.GameSettings
}

// CreateRoom opens a new room with the creator as host. Leftover
// memberships in finished rooms are cleared first; an active membership
// anywhere else rejects the call.
func CreateRoom(memberID uint, input CreateRoomInput) (*models.GameRoom, error) {
	db := database.GetDB()

	if input.RoomName == "" {
		return nil, fmt.Errorf("%w: room name required", ErrInvalidInput)
	}
	if input.MaxPlayers < 2 || input.MaxPlayers > 8 {
		return nil, fmt.Errorf("%w: max players must be between 2 and 8", ErrInvalidInput)
	}
	if input.TotalRounds < 1 || input.TotalRounds > 30 {
		return nil, fmt.Errorf("%w: total rounds must be between 1 and 30", ErrInvalidInput)
	}
	if input.IsPrivate && input.Password == "" {
		return nil, fmt.Errorf("%w: private room requires a password", ErrInvalidInput)
	}
	if err := input.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Settings.FixedGenreID != nil {
		if _, err := GetGenre(*input.Settings.FixedGenreID); err != nil {
			return nil, err
		}
	}

	var member models.Member
	if err := db.First(&member, memberID).Error; err != nil {
		return nil, ErrMemberNotFound
	}

	var room *models.GameRoom
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := reconcileStaleParticipations(tx, memberID); err != nil {
			return err
		}
		busy, err := hasActiveParticipationElsewhere(tx, memberID, 0)
		if err != nil {
			return err
		}
		if busy {
			return ErrAlreadyInRoom
		}

		code, err := generateRoomCode(tx)
		if err != nil {
			return err
		}

		room = &models.GameRoom{
			RoomCode:    code,
			RoomName:    input.RoomName,
			HostID:      memberID,
			MaxPlayers:  input.MaxPlayers,
			TotalRounds: input.TotalRounds,
			IsPrivate:   input.IsPrivate,
			Password:    input.Password,
			Settings:    input.Settings.Encode(),
			Status:      models.RoomWaiting,
		}
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		// The host is always ready.
		participant := models.RoomParticipant{
			RoomID:   room.ID,
			MemberID: memberID,
			Status:   models.ParticipantJoined,
			IsReady:  true,
			JoinedAt: time.Now(),
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 Room %s created by member %d", room.RoomCode, memberID)
	return room, nil
}

// JoinRoom adds a member to a waiting room by code. Rejoining a room the
// member already occupies is idempotent. A LEFT row from an earlier visit
// is resurrected instead of inserting a duplicate.
func JoinRoom(memberID uint, roomCode, password string) (*models.GameRoom, error) {
	db := database.GetDB()

	var member models.Member
	if err := db.First(&member, memberID).Error; err != nil {
		return nil, ErrMemberNotFound
	}

	room, err := GetRoomByCode(roomCode)
	if err != nil {
		return nil, err
	}

	mu := lockRoom(room.ID)
	defer mu.Unlock()

	err = db.Transaction(func(tx *gorm.DB) error {
		// Reload under the lock, the snapshot above may be stale.
		if err := tx.First(room, room.ID).Error; err != nil {
			return ErrRoomNotFound
		}

		var existing models.RoomParticipant
		found := tx.Where("room_id = ? AND member_id = ?", room.ID, memberID).
			First(&existing).Error == nil

		if found && existing.IsActive() {
			return nil // already in the room
		}

		if room.Status != models.RoomWaiting {
			return ErrGameInProgress
		}
		if room.IsPrivate && room.Password != password {
			return ErrWrongPassword
		}

		var active int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND status != ?", room.ID, models.ParticipantLeft).
			Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= room.MaxPlayers {
			return ErrRoomFull
		}

		if err := reconcileStaleParticipations(tx, memberID); err != nil {
			return err
		}
		busy, err := hasActiveParticipationElsewhere(tx, memberID, room.ID)
		if err != nil {
			return err
		}
		if busy {
			return ErrAlreadyInRoom
		}

		if found {
			existing.Status = models.ParticipantJoined
			existing.IsReady = false
			existing.ResetScore()
			existing.ResetRoundAnswer()
			existing.JoinedAt = time.Now()
			return tx.Save(&existing).Error
		}

		participant := models.RoomParticipant{
			RoomID:   room.ID,
			MemberID: memberID,
			Status:   models.ParticipantJoined,
			JoinedAt: time.Now(),
		}
		return tx.Create(&participant).Error
	})
	if err != nil {
		return nil, err
	}

	return room, nil
}

// LeaveRoom processes a departure signal from the waiting room. While a
// game is playing or finished the signal is ignored, so a page refresh
// mid-game does not eject the player. Signals inside the restart grace
// window are ignored for the same reason.
func LeaveRoom(memberID uint, roomID uint) error {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		var room models.GameRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}

		if room.Status == models.RoomPlaying || room.Status == models.RoomFinished {
			return nil
		}
		if room.RestartedAt != nil && time.Since(*room.RestartedAt) < restartGraceWindow {
			log.Printf("🛡️ Ignoring leave from member %d, room %s restarted %v ago",
				memberID, room.RoomCode, time.Since(*room.RestartedAt).Round(time.Millisecond))
			return nil
		}

		return removeParticipant(tx, &room, memberID)
	})
}

// LeaveFinishedRoom is the explicit exit from the results screen. Unlike
// LeaveRoom it acts on a FINISHED room.
func LeaveFinishedRoom(memberID uint, roomID uint) error {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		var room models.GameRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}
		if room.Status != models.RoomFinished {
			return ErrRoomNotFinished
		}
		return removeParticipant(tx, &room, memberID)
	})
}

// removeParticipant marks a member LEFT, promotes a new host when the host
// departs, and deletes the room once nobody active remains.
func removeParticipant(tx *gorm.DB, room *models.GameRoom, memberID uint) error {
	var participant models.RoomParticipant
	if err := tx.Where("room_id = ? AND member_id = ? AND status != ?",
		room.ID, memberID, models.ParticipantLeft).First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already gone
		}
		return err
	}

	participant.Status = models.ParticipantLeft
	participant.IsReady = false
	if err := tx.Save(&participant).Error; err != nil {
		return err
	}

	var remaining []models.RoomParticipant
	if err := tx.Where("room_id = ? AND status != ?", room.ID, models.ParticipantLeft).
		Order("joined_at ASC").Find(&remaining).Error; err != nil {
		return err
	}

	if len(remaining) == 0 {
		// Nobody left. The room concludes; the background sweep tears
		// the empty row down.
		if room.Status != models.RoomFinished {
			room.Status = models.RoomFinished
			room.RoundPhase = nil
			room.CurrentSongID = nil
			room.AudioPlaying = false
			if err := tx.Save(room).Error; err != nil {
				return err
			}
		}
		log.Printf("🏁 Room %s emptied, marked finished", room.RoomCode)
		return nil
	}

	if room.IsHost(memberID) {
		newHost := remaining[0]
		room.HostID = newHost.MemberID
		if err := tx.Save(room).Error; err != nil {
			return err
		}
		// The promoted host inherits the always-ready rule.
		newHost.IsReady = true
		if err := tx.Save(&newHost).Error; err != nil {
			return err
		}
		log.Printf("👑 Member %d promoted to host of room %s", newHost.MemberID, room.RoomCode)
	}
	return nil
}

// ToggleReady flips the member's ready flag while the room is waiting.
// The host is always ready, toggling is a no-op for them.
func ToggleReady(memberID uint, roomID uint) (bool, error) {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	var ready bool
	err := db.Transaction(func(tx *gorm.DB) error {
		var room models.GameRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomNotWaiting
		}
		if room.IsHost(memberID) {
			ready = true
			return nil
		}

		var participant models.RoomParticipant
		if err := tx.Where("room_id = ? AND member_id = ? AND status != ?",
			roomID, memberID, models.ParticipantLeft).First(&participant).Error; err != nil {
			return ErrParticipantNotFound
		}
		participant.IsReady = !participant.IsReady
		ready = participant.IsReady
		return tx.Save(&participant).Error
	})
	return ready, err
}

// KickParticipant ejects a player from a waiting room. Host only.
func KickParticipant(hostID, roomID, targetID uint) error {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		var room models.GameRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}
		if !room.IsHost(hostID) {
			return ErrNotHost
		}
		if hostID == targetID {
			return fmt.Errorf("%w: host cannot kick themselves", ErrInvalidInput)
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomNotWaiting
		}
		return removeParticipant(tx, &room, targetID)
	})
}

// RestartRoom resets a finished room back to the waiting state for a
// rematch with the same players. Scores and readiness are cleared, the
// used-song history is wiped, and a grace marker suppresses straggler
// leave signals from the previous game's page teardown.
func RestartRoom(hostID, roomID uint) (*models.GameRoom, error) {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	var room models.GameRoom
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}
		if !room.IsHost(hostID) {
			return ErrNotHost
		}
		if room.Status != models.RoomFinished {
			return ErrRoomNotFinished
		}

		now := time.Now()
		room.Status = models.RoomWaiting
		room.CurrentRound = 0
		room.RoundPhase = nil
		room.CurrentSongID = nil
		room.RoundStartTime = nil
		room.AudioPlaying = false
		room.AudioPlayedAt = nil
		room.ClearUsedSongs()
		room.RestartedAt = &now
		if err := tx.Save(&room).Error; err != nil {
			return err
		}

		var participants []models.RoomParticipant
		if err := tx.Where("room_id = ? AND status != ?", roomID, models.ParticipantLeft).
			Find(&participants).Error; err != nil {
			return err
		}
		for i := range participants {
			p := &participants[i]
			p.Status = models.ParticipantJoined
			p.ResetScore()
			p.ResetRoundAnswer()
			p.IsReady = room.IsHost(p.MemberID)
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🔄 Room %s restarted by host %d", room.RoomCode, hostID)
	return &room, nil
}

// GetRoomByCode loads a room by its join code.
func GetRoomByCode(code string) (*models.GameRoom, error) {
	var room models.GameRoom
	if err := database.GetDB().Where("room_code = ?", code).First(&room).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

// GetRoom loads a room by id.
func GetRoom(roomID uint) (*models.GameRoom, error) {
	var room models.GameRoom
	if err := database.GetDB().First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

// RoomState is the polling snapshot: the room plus its active
// participants in join order.
type RoomState struct {
	Room         *models.GameRoom         `json:"room"`
	Participants []models.RoomParticipant `json:"participants"`
}

// GetRoomState builds the snapshot clients poll from the waiting room.
func GetRoomState(roomID uint) (*RoomState, error) {
	db := database.GetDB()

	room, err := GetRoom(roomID)
	if err != nil {
		return nil, err
	}

	var participants []models.RoomParticipant
	if err := db.Preload("Member").
		Where("room_id = ? AND status != ?", roomID, models.ParticipantLeft).
		Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, err
	}
	return &RoomState{Room: room, Participants: participants}, nil
}

// RoomListing is one entry on the public lobby list.
type RoomListing struct {
	ID           uint              `json:"id"`
	RoomCode     string            `json:"room_code"`
	RoomName     string            `json:"room_name"`
	HostNickname string            `json:"host_nickname"`
	IsPrivate    bool              `json:"is_private"`
	Status       models.RoomStatus `json:"status"`
	PlayerCount  int               `json:"player_count"`
	MaxPlayers   int               `json:"max_players"`
	TotalRounds  int               `json:"total_rounds"`
}

// ListWaitingRooms lists joinable rooms for the lobby, newest first. A
// non-empty search narrows by room name.
func ListWaitingRooms(search string) ([]RoomListing, error) {
	db := database.GetDB()

	query := db.Preload("Host").Where("status = ?", models.RoomWaiting)
	if search != "" {
		query = query.Where("room_name LIKE ?", "%"+search+"%")
	}

	var rooms []models.GameRoom
	if err := query.Order("created_at DESC").Limit(50).Find(&rooms).Error; err != nil {
		return nil, err
	}

	listings := make([]RoomListing, 0, len(rooms))
	for i := range rooms {
		r := &rooms[i]
		var count int64
		db.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND status != ?", r.ID, models.ParticipantLeft).
			Count(&count)

		hostNickname := ""
		if r.Host != nil {
			hostNickname = r.Host.Nickname
		}
		listings = append(listings, RoomListing{
			ID:           r.ID,
			RoomCode:     r.RoomCode,
			RoomName:     r.RoomName,
			HostNickname: hostNickname,
			IsPrivate:    r.IsPrivate,
			Status:       r.Status,
			PlayerCount:  int(count),
			MaxPlayers:   r.MaxPlayers,
			TotalRounds:  r.TotalRounds,
		})
	}
	return listings, nil
}

// GetMyActiveRoom finds the room the member currently occupies, if any.
// Clients call it on app load to rejoin after a refresh.
func GetMyActiveRoom(memberID uint) (*models.GameRoom, error) {
	db := database.GetDB()

	var participant models.RoomParticipant
	err := db.Where("member_id = ? AND status != ?", memberID, models.ParticipantLeft).
		Order("joined_at DESC").First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var room models.GameRoom
	if err := db.First(&room, participant.RoomID).Error; err != nil {
		// Orphaned participation, clean it up.
		participant.Status = models.ParticipantLeft
		db.Save(&participant)
		return nil, nil
	}
	return &room, nil
}

// reconcileStaleParticipations marks LEFT any non-LEFT participation of
// the member whose room is already FINISHED or gone. Runs before create
// and join so a crashed results screen never blocks a new game.
func reconcileStaleParticipations(tx *gorm.DB, memberID uint) error {
	var stale []models.RoomParticipant
	if err := tx.Where("member_id = ? AND status != ?",
		memberID, models.ParticipantLeft).Find(&stale).Error; err != nil {
		return err
	}

	for i := range stale {
		var room models.GameRoom
		if err := tx.First(&room, stale[i].RoomID).Error; err != nil {
			stale[i].Status = models.ParticipantLeft
			if err := tx.Save(&stale[i]).Error; err != nil {
				return err
			}
			continue
		}
		if room.Status != models.RoomFinished {
			continue
		}
		if err := removeParticipant(tx, &room, memberID); err != nil {
			return err
		}
	}
	return nil
}

// hasActiveParticipationElsewhere reports whether the member occupies any
// room other than excludeRoomID.
func hasActiveParticipationElsewhere(tx *gorm.DB, memberID, excludeRoomID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.RoomParticipant{}).
		Where("member_id = ? AND status != ? AND room_id != ?",
			memberID, models.ParticipantLeft, excludeRoomID).
		Count(&count).Error
	return count > 0, err
}

// ResetMemberParticipations is the recovery hatch for stuck clients: it
// clears every non-LEFT participation of the member regardless of room
// status, including mid-game rosters.
func ResetMemberParticipations(memberID uint) error {
	db := database.GetDB()

	return db.Transaction(func(tx *gorm.DB) error {
		var stuck []models.RoomParticipant
		if err := tx.Where("member_id = ? AND status != ?",
			memberID, models.ParticipantLeft).Find(&stuck).Error; err != nil {
			return err
		}

		for i := range stuck {
			var room models.GameRoom
			if err := tx.First(&room, stuck[i].RoomID).Error; err != nil {
				stuck[i].Status = models.ParticipantLeft
				if err := tx.Save(&stuck[i]).Error; err != nil {
					return err
				}
				continue
			}
			// Mid-game rooms get a plain mark so the running game's
			// roster bookkeeping is not disturbed. Round scratch is
			// cleared too, a stale correct flag on a LEFT row would
			// shift later placement counts.
			if room.Status == models.RoomPlaying {
				stuck[i].Status = models.ParticipantLeft
				stuck[i].IsReady = false
				stuck[i].ResetRoundAnswer()
				if err := tx.Save(&stuck[i]).Error; err != nil {
					return err
				}
				continue
			}
			if err := removeParticipant(tx, &room, memberID); err != nil {
				return err
			}
		}
		return nil
	})
}
