// services/game_service.go - Round coordinator and answer judging
package services

import (
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"songquiz/database"
	"songquiz/models"
)

// placementScores rewards answer order among correct answers. The fourth
// and every later correct answer earn the floor value.
var placementScores = [4]int{100, 80, 60, 50}

func scoreForPlacement(place int) int {
	if place >= len(placementScores) {
		place = len(placementScores) - 1
	}
	return placementScores[place]
}

// StartGame moves a waiting room into play. Host only, at least two
// active players, everyone ready.
func StartGame(hostID, roomID uint) error {
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
		if room.Status != models.RoomWaiting {
			return ErrRoomNotWaiting
		}

		var participants []models.RoomParticipant
		if err := tx.Where("room_id = ? AND status != ?", roomID, models.ParticipantLeft).
			Find(&participants).Error; err != nil {
			return err
		}
		if len(participants) < 2 {
			return ErrNotEnoughPlayers
		}
		for i := range participants {
			p := &participants[i]
			if !p.IsReady && !room.IsHost(p.MemberID) {
				return ErrNotAllReady
			}
		}

		for i := range participants {
			p := &participants[i]
			p.Status = models.ParticipantPlaying
			p.ResetScore()
			p.ResetRoundAnswer()
			if err := tx.Save(p).Error; err != nil {
				return err
			}
		}

		room.Status = models.RoomPlaying
		room.CurrentRound = 0
		room.ClearUsedSongs()
		room.RestartedAt = nil

		if err := advanceRound(tx, &room); err != nil {
			return err
		}
		if err := tx.Save(&room).Error; err != nil {
			return err
		}

		announce := models.SystemChat(room.ID, hostID, "게임이 시작되었습니다!")
		if err := tx.Create(&announce).Error; err != nil {
			return err
		}

		log.Printf("🎵 Game started in room %s with %d players", room.RoomCode, len(participants))
		return nil
	})
}

// advanceRound moves the room to its next round, or finishes the game
// when all rounds are played. Caller saves the room.
func advanceRound(tx *gorm.DB, room *models.GameRoom) error {
	if room.CurrentRound >= room.TotalRounds {
		return finishGame(tx, room)
	}

	room.CurrentRound++
	room.AudioPlaying = false
	room.AudioPlayedAt = nil
	room.CurrentSongID = nil
	room.RoundStartTime = nil

	if err := tx.Model(&models.RoomParticipant{}).
		Where("room_id = ? AND status = ?", room.ID, models.ParticipantPlaying).
		Updates(map[string]interface{}{
			"current_answer":        "",
			"has_answered":          false,
			"current_round_correct": false,
			"current_round_score":   0,
			"answer_time":           nil,
		}).Error; err != nil {
		return err
	}

	settings := room.RoomSettings()
	if settings.GameMode == models.ModeGenrePerRound {
		room.SetPhase(models.PhaseCategorySelect)
		return nil
	}

	return assignRoundSong(tx, room, settings.FixedGenreID)
}

// assignRoundSong picks an unused song and opens the answering phase.
func assignRoundSong(tx *gorm.DB, room *models.GameRoom, genreID *uint) error {
	song, err := randomSongExcludingTx(tx, genreID, room.UsedSongSet())
	if err != nil {
		if err == ErrNoSongAvailable {
			// Pool exhausted, the game ends early.
			log.Printf("⚠️ Room %s ran out of songs at round %d", room.RoomCode, room.CurrentRound)
			return finishGame(tx, room)
		}
		return err
	}

	now := time.Now()
	millis := now.UnixMilli()
	room.CurrentSongID = &song.ID
	room.AddUsedSong(song.ID)
	room.RoundStartTime = &now
	room.SetPhase(models.PhasePlaying)
	room.AudioPlaying = true
	room.AudioPlayedAt = &millis
	return nil
}

// randomSongExcludingTx is RandomSongExcluding bound to a transaction.
func randomSongExcludingTx(tx *gorm.DB, genreID *uint, used map[uint]bool) (*models.Song, error) {
	query := tx.Model(&models.Song{}).Where("is_active = ?", true)
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
	var song models.Song
	if err := tx.Preload("Genre").Preload("Answers").
		First(&song, candidates[randIntn(len(candidates))]).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// SelectGenre is the host's category pick in genre-per-round mode. It
// resolves the pending CATEGORY_SELECT phase into a playing round.
func SelectGenre(hostID, roomID, genreID uint) error {
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
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if !room.InPhase(models.PhaseCategorySelect) {
			return ErrWrongPhase
		}
		if _, err := GetGenre(genreID); err != nil {
			return err
		}

		gid := genreID
		if err := assignRoundSong(tx, &room, &gid); err != nil {
			return err
		}
		return tx.Save(&room).Error
	})
}

// AnswerResult is what a submitter gets back.
type AnswerResult struct {
	Correct     bool `json:"correct"`
	Earned      int  `json:"earned"`
	AllAnswered bool `json:"all_answered"`
}

// SubmitAnswer judges one submission against the current song. Each
// participant answers once per round. Correct answers score by placement:
// the first correct answer earns 100, then 80, 60 and 50 for everyone
// after. When the last active player has answered the round advances to
// its result phase automatically.
func SubmitAnswer(memberID, roomID uint, answer string) (*AnswerResult, error) {
	db := database.GetDB()

	mu := lockRoom(roomID)
	defer mu.Unlock()

	var result AnswerResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var room models.GameRoom
		if err := tx.First(&room, roomID).Error; err != nil {
			return ErrRoomNotFound
		}
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if !room.InPhase(models.PhasePlaying) {
			return ErrWrongPhase
		}
		if room.CurrentSongID == nil {
			return ErrNoCurrentSong
		}

		var participant models.RoomParticipant
		if err := tx.Where("room_id = ? AND member_id = ? AND status = ?",
			roomID, memberID, models.ParticipantPlaying).First(&participant).Error; err != nil {
			return ErrParticipantNotFound
		}
		if participant.HasAnswered {
			return ErrAlreadyAnswered
		}

		var song models.Song
		if err := tx.Preload("Answers").First(&song, *room.CurrentSongID).Error; err != nil {
			return err
		}

		correct := ValidateAnswer(&song, answer)
		earned := 0
		if correct {
			var priorCorrect int64
			if err := tx.Model(&models.RoomParticipant{}).
				Where("room_id = ? AND status = ? AND current_round_correct = ?",
					roomID, models.ParticipantPlaying, true).
				Count(&priorCorrect).Error; err != nil {
				return err
			}
			earned = scoreForPlacement(int(priorCorrect))
		}

		participant.RecordAnswer(answer, correct, earned)
		if err := tx.Save(&participant).Error; err != nil {
			return err
		}

		if correct {
			chat := models.RoomChat{
				RoomID:      roomID,
				MemberID:    memberID,
				Message:     fmt.Sprintf("정답! +%d점", earned),
				MessageType: models.ChatCorrect,
				RoundNumber: room.CurrentRound,
			}
			if err := tx.Create(&chat).Error; err != nil {
				return err
			}
		}

		var unanswered int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND status = ? AND has_answered = ?",
				roomID, models.ParticipantPlaying, false).
			Count(&unanswered).Error; err != nil {
			return err
		}

		result = AnswerResult{Correct: correct, Earned: earned, AllAnswered: unanswered == 0}
		if result.AllAnswered {
			room.SetPhase(models.PhaseResult)
			room.AudioPlaying = false
			if err := tx.Save(&room).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ShowRoundResult closes the answering phase early and reveals the song.
// Host only. Used when the round timer expires on the host's client.
func ShowRoundResult(hostID, roomID uint) error {
	return closeRound(hostID, roomID)
}

// SkipCurrentSong swaps a broken song for a fresh one without consuming
// the round. Host only, answering phase only. The caller passes the song
// it was trying to play so a stale skip from an outdated poll cannot
// replace a song that already changed. Exhaustion finishes the game.
func SkipCurrentSong(hostID, roomID, songID uint) error {
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
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if !room.InPhase(models.PhasePlaying) {
			return ErrWrongPhase
		}
		if room.CurrentSongID == nil || *room.CurrentSongID != songID {
			return ErrSongChanged
		}

		var genreID *uint
		settings := room.RoomSettings()
		switch settings.GameMode {
		case models.ModeFixedGenre:
			genreID = settings.FixedGenreID
		case models.ModeGenrePerRound:
			// Keep the genre the host picked for this round.
			var current models.Song
			if err := tx.First(&current, songID).Error; err != nil {
				return err
			}
			gid := current.GenreID
			genreID = &gid
		}

		song, err := randomSongExcludingTx(tx, genreID, room.UsedSongSet())
		if err != nil {
			if err == ErrNoSongAvailable {
				log.Printf("⚠️ Room %s had no replacement song at round %d", room.RoomCode, room.CurrentRound)
				if err := finishGame(tx, &room); err != nil {
					return err
				}
				return tx.Save(&room).Error
			}
			return err
		}

		now := time.Now()
		millis := now.UnixMilli()
		room.CurrentSongID = &song.ID
		room.AddUsedSong(song.ID)
		room.RoundStartTime = &now
		room.AudioPlaying = true
		room.AudioPlayedAt = &millis
		if err := tx.Save(&room).Error; err != nil {
			return err
		}

		announce := models.SystemChat(room.ID, hostID, "⚠️ 재생 오류로 다른 곡으로 변경되었습니다. 노래를 맞춰보세요!")
		return tx.Create(&announce).Error
	})
}

func closeRound(hostID, roomID uint) error {
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
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if !room.InPhase(models.PhasePlaying) {
			return ErrWrongPhase
		}
		room.SetPhase(models.PhaseResult)
		room.AudioPlaying = false
		return tx.Save(&room).Error
	})
}

// ProceedToNext advances past the result screen, starting the next round
// or finishing the game after the last one. Host only.
func ProceedToNext(hostID, roomID uint) error {
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
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if !room.InPhase(models.PhaseResult) {
			return ErrWrongPhase
		}
		if err := advanceRound(tx, &room); err != nil {
			return err
		}
		return tx.Save(&room).Error
	})
}

// PlayAudio marks playback started. Clients poll the flag and the epoch
// millis to sync their players. Host only, answering phase only.
func PlayAudio(hostID, roomID uint) error {
	return setAudio(hostID, roomID, true)
}

// PauseAudio marks playback paused. Host only.
func PauseAudio(hostID, roomID uint) error {
	return setAudio(hostID, roomID, false)
}

func setAudio(hostID, roomID uint, playing bool) error {
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
		if room.Status != models.RoomPlaying || !room.InPhase(models.PhasePlaying) {
			return ErrWrongPhase
		}
		room.AudioPlaying = playing
		if playing {
			millis := time.Now().UnixMilli()
			room.AudioPlayedAt = &millis
		}
		return tx.Save(&room).Error
	})
}

// FinishGame ends the game immediately. Host only. The normal path is
// advanceRound finishing after the last round.
func FinishGame(hostID, roomID uint) error {
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
		if room.Status != models.RoomPlaying {
			return ErrRoomNotPlaying
		}
		if err := finishGame(tx, &room); err != nil {
			return err
		}
		return tx.Save(&room).Error
	})
}

// finishGame moves the room to FINISHED and folds each player's score
// into their lifetime stats. Caller saves the room.
func finishGame(tx *gorm.DB, room *models.GameRoom) error {
	room.Status = models.RoomFinished
	room.RoundPhase = nil
	room.CurrentSongID = nil
	room.RoundStartTime = nil
	room.AudioPlaying = false
	room.AudioPlayedAt = nil
	room.ClearUsedSongs()

	var participants []models.RoomParticipant
	if err := tx.Where("room_id = ? AND status = ?", room.ID, models.ParticipantPlaying).
		Find(&participants).Error; err != nil {
		return err
	}
	for i := range participants {
		p := &participants[i]
		p.Status = models.ParticipantJoined
		if err := tx.Save(p).Error; err != nil {
			return err
		}

		var member models.Member
		if err := tx.First(&member, p.MemberID).Error; err != nil {
			continue
		}
		member.AddMultiGameResult(p.Score, p.CorrectCount)
		if err := tx.Save(&member).Error; err != nil {
			return err
		}
	}

	announce := models.SystemChat(room.ID, room.HostID, "게임이 종료되었습니다.")
	if err := tx.Create(&announce).Error; err != nil {
		return err
	}

	log.Printf("🏁 Game finished in room %s after round %d", room.RoomCode, room.CurrentRound)
	return nil
}

// RoundParticipantView is one player's public per-round state.
type RoundParticipantView struct {
	MemberID     uint   `json:"member_id"`
	Nickname     string `json:"nickname"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
	HasAnswered  bool   `json:"has_answered"`
	RoundCorrect bool   `json:"round_correct"`
	RoundScore   int    `json:"round_score"`
	IsHost       bool   `json:"is_host"`
}

// RoundInfo is the in-game polling snapshot.
type RoundInfo struct {
	RoomID       uint               `json:"room_id"`
	Status       models.RoomStatus  `json:"status"`
	CurrentRound int                `json:"current_round"`
	TotalRounds  int                `json:"total_rounds"`
	Phase        *models.RoundPhase `json:"phase"`

	// Playback data while answering, nil during category selection
	Song *RoundSongView `json:"song,omitempty"`

	// Genre menu while the host is picking a category
	GenreOptions []GenreRemaining `json:"genre_options,omitempty"`

	RoundStartTime *time.Time `json:"round_start_time"`
	TimeLimit      int        `json:"time_limit"`
	AudioPlaying   bool       `json:"audio_playing"`
	AudioPlayedAt  *int64     `json:"audio_played_at"`

	Participants []RoundParticipantView `json:"participants"`
}

// RoundSongView is the song as exposed to clients. Title and artist are
// withheld until the result phase.
type RoundSongView struct {
	Title          string `json:"title,omitempty"`
	Artist         string `json:"artist,omitempty"`
	GenreName      string `json:"genre_name,omitempty"`
	YoutubeVideoID string `json:"youtube_video_id"`
	FilePath       string `json:"file_path"`
	StartTime      int    `json:"start_time"`
	PlayDuration   int    `json:"play_duration"`
}

// GetCurrentRoundInfo builds the snapshot clients poll during a game.
func GetCurrentRoundInfo(roomID uint) (*RoundInfo, error) {
	db := database.GetDB()

	var room models.GameRoom
	if err := db.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	if room.Status != models.RoomPlaying {
		return nil, ErrRoomNotPlaying
	}

	info := &RoundInfo{
		RoomID:         room.ID,
		Status:         room.Status,
		CurrentRound:   room.CurrentRound,
		TotalRounds:    room.TotalRounds,
		Phase:          room.RoundPhase,
		RoundStartTime: room.RoundStartTime,
		TimeLimit:      room.RoomSettings().TimeLimit,
		AudioPlaying:   room.AudioPlaying,
		AudioPlayedAt:  room.AudioPlayedAt,
	}

	if room.InPhase(models.PhaseCategorySelect) {
		options, err := GenresWithRemainingCount(room.UsedSongSet())
		if err != nil {
			return nil, err
		}
		info.GenreOptions = options
	}

	if room.CurrentSongID != nil && !room.InPhase(models.PhaseCategorySelect) {
		var song models.Song
		if err := db.Preload("Genre").First(&song, *room.CurrentSongID).Error; err != nil {
			return nil, err
		}
		view := &RoundSongView{
			YoutubeVideoID: song.YoutubeVideoID,
			FilePath:       song.FilePath,
			StartTime:      song.StartTime,
			PlayDuration:   song.PlayDuration,
		}
		if song.Genre != nil {
			view.GenreName = song.Genre.Name
		}
		if room.InPhase(models.PhaseResult) {
			view.Title = song.Title
			view.Artist = song.Artist
		}
		info.Song = view
	}

	var participants []models.RoomParticipant
	if err := db.Preload("Member").
		Where("room_id = ? AND status = ?", roomID, models.ParticipantPlaying).
		Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, err
	}
	reveal := room.InPhase(models.PhaseResult)
	for i := range participants {
		p := &participants[i]
		nickname := ""
		if p.Member != nil {
			nickname = p.Member.Nickname
		}
		view := RoundParticipantView{
			MemberID:     p.MemberID,
			Nickname:     nickname,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
			HasAnswered:  p.HasAnswered,
			IsHost:       room.IsHost(p.MemberID),
		}
		// Correctness stays hidden until the reveal so pollers cannot
		// infer the answer from a neighbor's judgment. Cumulative
		// totals are shown as of the previous round for the same
		// reason.
		if reveal {
			view.RoundCorrect = p.CurrentRoundCorrect
			view.RoundScore = p.CurrentRoundScore
		} else {
			view.Score = p.Score - p.CurrentRoundScore
			if p.CurrentRoundCorrect {
				view.CorrectCount = p.CorrectCount - 1
			}
		}
		info.Participants = append(info.Participants, view)
	}
	// Scoreboard order. Stable keeps join order between tied players.
	sort.SliceStable(info.Participants, func(i, j int) bool {
		return info.Participants[i].Score > info.Participants[j].Score
	})
	return info, nil
}

// FinalRanking is one row of the post-game scoreboard.
type FinalRanking struct {
	Rank         int    `json:"rank"`
	MemberID     uint   `json:"member_id"`
	Nickname     string `json:"nickname"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
}

// GetFinalResult ranks the players of a finished game. Ties break by
// correct count, then by who joined first.
func GetFinalResult(roomID uint) ([]FinalRanking, error) {
	db := database.GetDB()

	var room models.GameRoom
	if err := db.First(&room, roomID).Error; err != nil {
		return nil, ErrRoomNotFound
	}
	if room.Status != models.RoomFinished {
		return nil, ErrRoomNotFinished
	}

	var participants []models.RoomParticipant
	if err := db.Preload("Member").
		Where("room_id = ? AND status != ?", roomID, models.ParticipantLeft).
		Find(&participants).Error; err != nil {
		return nil, err
	}

	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		if participants[i].CorrectCount != participants[j].CorrectCount {
			return participants[i].CorrectCount > participants[j].CorrectCount
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})

	rankings := make([]FinalRanking, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		nickname := ""
		if p.Member != nil {
			nickname = p.Member.Nickname
		}
		rank := i + 1
		if i > 0 && p.Score == participants[i-1].Score {
			rank = rankings[i-1].Rank
		}
		rankings = append(rankings, FinalRanking{
			Rank:         rank,
			MemberID:     p.MemberID,
			Nickname:     nickname,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
		})
	}
	return rankings, nil
}
