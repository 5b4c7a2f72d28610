package services

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"songquiz/models"
)

// startedGame builds a room with the given players, seeds a song pool
// and starts the game.
func startedGame(t *testing.T, db *gorm.DB, guests, totalRounds int) (*models.GameRoom, []*models.Member) {
	t.Helper()

	createGenreWithSongs(t, db, fmt.Sprintf("Pool%d", totalRounds), totalRounds+2)

	host := createMember(t, db, "host")
	input := defaultRoomInput()
	input.MaxPlayers = guests + 1
	input.TotalRounds = totalRounds
	room, err := CreateRoom(host.ID, input)
	require.NoError(t, err)

	members := []*models.Member{host}
	for i := 0; i < guests; i++ {
		guest := createMember(t, db, fmt.Sprintf("guest%d", i+1))
		_, err := JoinRoom(guest.ID, room.RoomCode, "")
		require.NoError(t, err)
		_, err = ToggleReady(guest.ID, room.ID)
		require.NoError(t, err)
		members = append(members, guest)
	}

	require.NoError(t, StartGame(host.ID, room.ID))
	return reloadRoom(t, db, room.ID), members
}

func currentSongTitle(t *testing.T, db *gorm.DB, room *models.GameRoom) string {
	t.Helper()
	require.NotNil(t, room.CurrentSongID)
	var song models.Song
	require.NoError(t, db.First(&song, *room.CurrentSongID).Error)
	return song.Title
}

func TestStartGamePreconditions(t *testing.T) {
	db := setupTestDB(t)
	createGenreWithSongs(t, db, "KPop", 5)

	t.Run("host only", func(t *testing.T) {
		room, members := makeWaitingRoom(t, db, 1)
		err := StartGame(members[1].ID, room.ID)
		assert.ErrorIs(t, err, ErrNotHost)
	})

	t.Run("needs two players", func(t *testing.T) {
		host := createMember(t, db, "solo")
		room, err := CreateRoom(host.ID, defaultRoomInput())
		require.NoError(t, err)
		err = StartGame(host.ID, room.ID)
		assert.ErrorIs(t, err, ErrNotEnoughPlayers)
	})

	t.Run("everyone ready", func(t *testing.T) {
		room, members := makeWaitingRoom(t, db, 1)
		_, err := ToggleReady(members[1].ID, room.ID) // un-ready the guest
		require.NoError(t, err)
		err = StartGame(members[0].ID, room.ID)
		assert.ErrorIs(t, err, ErrNotAllReady)
	})

	t.Run("waiting rooms only", func(t *testing.T) {
		room, members := makeWaitingRoom(t, db, 1)
		require.NoError(t, StartGame(members[0].ID, room.ID))
		err := StartGame(members[0].ID, room.ID)
		assert.ErrorIs(t, err, ErrRoomNotWaiting)
	})
}

func TestStartGameBeginsRoundOne(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 3)

	assert.Equal(t, models.RoomPlaying, room.Status)
	assert.Equal(t, 1, room.CurrentRound)
	assert.True(t, room.InPhase(models.PhasePlaying))
	assert.NotNil(t, room.CurrentSongID)
	assert.NotNil(t, room.RoundStartTime)
	assert.Len(t, room.UsedSongSet(), 1)

	for _, m := range members {
		p := participantOf(t, db, room.ID, m.ID)
		assert.Equal(t, models.ParticipantPlaying, p.Status)
		assert.Zero(t, p.Score)
		assert.False(t, p.HasAnswered)
	}
}

func TestPlacementScoring(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 4, 1)
	title := currentSongTitle(t, db, room)

	expected := []int{100, 80, 60, 50, 50}
	for i, m := range members {
		result, err := SubmitAnswer(m.ID, room.ID, title)
		require.NoError(t, err)
		assert.True(t, result.Correct)
		assert.Equal(t, expected[i], result.Earned, "placement %d", i+1)
	}

	for i, m := range members {
		p := participantOf(t, db, room.ID, m.ID)
		assert.Equal(t, expected[i], p.Score)
		assert.Equal(t, 1, p.CorrectCount)
	}
}

func TestSimultaneousCorrectAnswersScoreDistinctPlacements(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 4, 1)
	title := currentSongTitle(t, db, room)

	earned := make([]int, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, memberID uint) {
			defer wg.Done()
			result, err := SubmitAnswer(memberID, room.ID, title)
			if assert.NoError(t, err) {
				earned[i] = result.Earned
			}
		}(i, m.ID)
	}
	wg.Wait()

	sort.Ints(earned)
	assert.Equal(t, []int{50, 50, 60, 80, 100}, earned,
		"two racing firsts must not both take the top placement")
}

func TestPlacementIgnoresPlayersWhoResetMidGame(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 2, 2)
	host := members[0]
	title := currentSongTitle(t, db, room)

	result, err := SubmitAnswer(members[2].ID, room.ID, title)
	require.NoError(t, err)
	require.Equal(t, 100, result.Earned)

	// The correct answerer bails out through the recovery hatch while the
	// round is still open.
	require.NoError(t, ResetMemberParticipations(members[2].ID))

	require.NoError(t, ShowRoundResult(host.ID, room.ID))
	require.NoError(t, ProceedToNext(host.ID, room.ID))

	room = reloadRoom(t, db, room.ID)
	require.Equal(t, 2, room.CurrentRound)
	title = currentSongTitle(t, db, room)

	result, err = SubmitAnswer(host.ID, room.ID, title)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Earned,
		"a departed player's round flag must not shift later placements")
}

func TestWrongAnswerScoresZero(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)

	result, err := SubmitAnswer(members[1].ID, room.ID, "definitely not the title")
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Zero(t, result.Earned)

	p := participantOf(t, db, room.ID, members[1].ID)
	assert.True(t, p.HasAnswered)
	assert.Zero(t, p.Score)
	assert.Zero(t, p.CorrectCount)
}

func TestSubmitAnswerOncePerRound(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	title := currentSongTitle(t, db, room)

	_, err := SubmitAnswer(members[0].ID, room.ID, title)
	require.NoError(t, err)

	_, err = SubmitAnswer(members[0].ID, room.ID, title)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestAllAnsweredAdvancesToResult(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 2)
	title := currentSongTitle(t, db, room)

	result, err := SubmitAnswer(members[0].ID, room.ID, title)
	require.NoError(t, err)
	assert.False(t, result.AllAnswered)

	result, err = SubmitAnswer(members[1].ID, room.ID, "wrong")
	require.NoError(t, err)
	assert.True(t, result.AllAnswered)

	room = reloadRoom(t, db, room.ID)
	assert.True(t, room.InPhase(models.PhaseResult))
	assert.False(t, room.AudioPlaying)

	// Answers are locked once the round closed.
	_, err = SubmitAnswer(members[0].ID, room.ID, title)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestShowRoundResultAndProceed(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 2)
	host := members[0]
	firstSong := *room.CurrentSongID

	err := ShowRoundResult(members[1].ID, room.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	err = ProceedToNext(host.ID, room.ID)
	assert.ErrorIs(t, err, ErrWrongPhase, "cannot proceed before the result phase")

	require.NoError(t, ShowRoundResult(host.ID, room.ID))
	room = reloadRoom(t, db, room.ID)
	assert.True(t, room.InPhase(models.PhaseResult))

	require.NoError(t, ProceedToNext(host.ID, room.ID))
	room = reloadRoom(t, db, room.ID)
	assert.Equal(t, 2, room.CurrentRound)
	assert.True(t, room.InPhase(models.PhasePlaying))
	require.NotNil(t, room.CurrentSongID)
	assert.NotEqual(t, firstSong, *room.CurrentSongID, "songs never repeat within a game")

	// Scratch state is clean for the new round.
	for _, m := range members {
		p := participantOf(t, db, room.ID, m.ID)
		assert.False(t, p.HasAnswered)
		assert.False(t, p.CurrentRoundCorrect)
	}
}

func TestGameFinishesAfterLastRound(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host, guest := members[0], members[1]
	title := currentSongTitle(t, db, room)

	_, err := SubmitAnswer(guest.ID, room.ID, title)
	require.NoError(t, err)
	_, err = SubmitAnswer(host.ID, room.ID, "wrong")
	require.NoError(t, err)

	require.NoError(t, ProceedToNext(host.ID, room.ID))

	room = reloadRoom(t, db, room.ID)
	assert.Equal(t, models.RoomFinished, room.Status)
	assert.Nil(t, room.RoundPhase)
	assert.Nil(t, room.CurrentSongID)
	assert.Empty(t, room.UsedSongIDs)

	// Lifetime stats rolled up.
	var m models.Member
	require.NoError(t, db.First(&m, guest.ID).Error)
	assert.Equal(t, 1, m.MultiGames)
	assert.Equal(t, 100, m.MultiScore)
	assert.Equal(t, 1, m.MultiCorrect)
	assert.Equal(t, 100, m.MultiBest)
}

func TestGenrePerRoundFlow(t *testing.T) {
	db := setupTestDB(t)
	ballad := createGenreWithSongs(t, db, "Ballad", 3)
	createGenreWithSongs(t, db, "Rock", 3)

	host := createMember(t, db, "host")
	input := defaultRoomInput()
	input.TotalRounds = 2
	input.Settings.GameMode = models.ModeGenrePerRound
	room, err := CreateRoom(host.ID, input)
	require.NoError(t, err)

	guest := createMember(t, db, "guest")
	_, err = JoinRoom(guest.ID, room.RoomCode, "")
	require.NoError(t, err)
	_, err = ToggleReady(guest.ID, room.ID)
	require.NoError(t, err)

	require.NoError(t, StartGame(host.ID, room.ID))
	loaded := reloadRoom(t, db, room.ID)
	assert.True(t, loaded.InPhase(models.PhaseCategorySelect))
	assert.Nil(t, loaded.CurrentSongID, "no song until the host picks a genre")

	info, err := GetCurrentRoundInfo(room.ID)
	require.NoError(t, err)
	assert.Len(t, info.GenreOptions, 2)
	assert.Nil(t, info.Song)

	err = SelectGenre(guest.ID, room.ID, ballad.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, SelectGenre(host.ID, room.ID, ballad.ID))
	loaded = reloadRoom(t, db, room.ID)
	assert.True(t, loaded.InPhase(models.PhasePlaying))
	require.NotNil(t, loaded.CurrentSongID)

	var song models.Song
	require.NoError(t, db.First(&song, *loaded.CurrentSongID).Error)
	assert.Equal(t, ballad.ID, song.GenreID)

	err = SelectGenre(host.ID, room.ID, ballad.ID)
	assert.ErrorIs(t, err, ErrWrongPhase, "genre pick only during category selection")
}

func TestFixedGenreModeDrawsFromOneGenre(t *testing.T) {
	db := setupTestDB(t)
	jazz := createGenreWithSongs(t, db, "Jazz", 5)
	createGenreWithSongs(t, db, "Pop", 5)

	host := createMember(t, db, "host")
	input := defaultRoomInput()
	input.TotalRounds = 3
	input.Settings.GameMode = models.ModeFixedGenre
	input.Settings.FixedGenreID = &jazz.ID
	room, err := CreateRoom(host.ID, input)
	require.NoError(t, err)

	guest := createMember(t, db, "guest")
	_, err = JoinRoom(guest.ID, room.RoomCode, "")
	require.NoError(t, err)
	_, err = ToggleReady(guest.ID, room.ID)
	require.NoError(t, err)
	require.NoError(t, StartGame(host.ID, room.ID))

	for round := 1; round <= 3; round++ {
		loaded := reloadRoom(t, db, room.ID)
		require.NotNil(t, loaded.CurrentSongID)
		var song models.Song
		require.NoError(t, db.First(&song, *loaded.CurrentSongID).Error)
		assert.Equal(t, jazz.ID, song.GenreID)

		require.NoError(t, ShowRoundResult(host.ID, room.ID))
		require.NoError(t, ProceedToNext(host.ID, room.ID))
	}

	assert.Equal(t, models.RoomFinished, reloadRoom(t, db, room.ID).Status)
}

func TestSkipCurrentSong(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host := members[0]
	firstSong := *room.CurrentSongID

	err := SkipCurrentSong(members[1].ID, room.ID, firstSong)
	assert.ErrorIs(t, err, ErrNotHost)

	err = SkipCurrentSong(host.ID, room.ID, firstSong+999)
	assert.ErrorIs(t, err, ErrSongChanged, "stale skip must not replace a newer song")

	require.NoError(t, SkipCurrentSong(host.ID, room.ID, firstSong))
	loaded := reloadRoom(t, db, room.ID)
	require.NotNil(t, loaded.CurrentSongID)
	assert.NotEqual(t, firstSong, *loaded.CurrentSongID)
	assert.Equal(t, 1, loaded.CurrentRound, "skip does not consume the round")
	assert.True(t, loaded.InPhase(models.PhasePlaying))
	assert.True(t, loaded.AudioPlaying, "replacement starts playing right away")
	assert.True(t, loaded.UsedSongSet()[firstSong], "broken song stays excluded")
}

func TestSkipExhaustionFinishesGame(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host := members[0]
	firstSong := *room.CurrentSongID

	// Burn the remaining pool so no replacement exists.
	require.NoError(t, db.Model(&models.Song{}).
		Where("id != ?", firstSong).Update("is_active", false).Error)

	require.NoError(t, SkipCurrentSong(host.ID, room.ID, firstSong))
	assert.Equal(t, models.RoomFinished, reloadRoom(t, db, room.ID).Status)
}

func TestAudioSyncFlags(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host, guest := members[0], members[1]

	err := PlayAudio(guest.ID, room.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, PlayAudio(host.ID, room.ID))
	loaded := reloadRoom(t, db, room.ID)
	assert.True(t, loaded.AudioPlaying)
	require.NotNil(t, loaded.AudioPlayedAt)

	require.NoError(t, PauseAudio(host.ID, room.ID))
	loaded = reloadRoom(t, db, room.ID)
	assert.False(t, loaded.AudioPlaying)
}

func TestGetCurrentRoundInfoHidesTitleUntilResult(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host := members[0]

	info, err := GetCurrentRoundInfo(room.ID)
	require.NoError(t, err)
	require.NotNil(t, info.Song)
	assert.Empty(t, info.Song.Title, "title stays hidden while answering")
	assert.Empty(t, info.Song.Artist)

	require.NoError(t, ShowRoundResult(host.ID, room.ID))

	info, err = GetCurrentRoundInfo(room.ID)
	require.NoError(t, err)
	require.NotNil(t, info.Song)
	assert.NotEmpty(t, info.Song.Title, "result phase reveals the song")
}

func TestRoundInfoWithholdsJudgmentsUntilResult(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host, guest := members[0], members[1]
	title := currentSongTitle(t, db, room)

	result, err := SubmitAnswer(guest.ID, room.ID, title)
	require.NoError(t, err)
	require.True(t, result.Correct)

	info, err := GetCurrentRoundInfo(room.ID)
	require.NoError(t, err)
	for _, p := range info.Participants {
		if p.MemberID == guest.ID {
			assert.True(t, p.HasAnswered)
			assert.False(t, p.RoundCorrect, "judgment hidden while answering")
			assert.Zero(t, p.RoundScore)
			assert.Zero(t, p.Score, "round points hidden until the reveal")
			assert.Zero(t, p.CorrectCount)
		}
	}

	_, err = SubmitAnswer(host.ID, room.ID, "wrong")
	require.NoError(t, err)

	info, err = GetCurrentRoundInfo(room.ID)
	require.NoError(t, err)
	for _, p := range info.Participants {
		if p.MemberID == guest.ID {
			assert.True(t, p.RoundCorrect)
			assert.Equal(t, 100, p.RoundScore)
			assert.Equal(t, 100, p.Score)
		}
	}
}

func TestFinalResultRanking(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 2, 1)
	host := members[0]
	title := currentSongTitle(t, db, room)

	// guest1 answers first (100), host second (80), guest2 wrong (0).
	_, err := SubmitAnswer(members[1].ID, room.ID, title)
	require.NoError(t, err)
	_, err = SubmitAnswer(host.ID, room.ID, title)
	require.NoError(t, err)
	_, err = SubmitAnswer(members[2].ID, room.ID, "wrong")
	require.NoError(t, err)

	_, err = GetFinalResult(room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFinished)

	require.NoError(t, ProceedToNext(host.ID, room.ID))

	rankings, err := GetFinalResult(room.ID)
	require.NoError(t, err)
	require.Len(t, rankings, 3)

	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, members[1].ID, rankings[0].MemberID)
	assert.Equal(t, 100, rankings[0].Score)

	assert.Equal(t, 2, rankings[1].Rank)
	assert.Equal(t, host.ID, rankings[1].MemberID)

	assert.Equal(t, 3, rankings[2].Rank)
	assert.Equal(t, members[2].ID, rankings[2].MemberID)
	assert.Zero(t, rankings[2].Score)
}

func TestRestartAfterFullGame(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 1)
	host := members[0]
	title := currentSongTitle(t, db, room)

	_, err := SubmitAnswer(members[1].ID, room.ID, title)
	require.NoError(t, err)
	_, err = SubmitAnswer(host.ID, room.ID, title)
	require.NoError(t, err)
	require.NoError(t, ProceedToNext(host.ID, room.ID))
	require.Equal(t, models.RoomFinished, reloadRoom(t, db, room.ID).Status)

	restarted, err := RestartRoom(host.ID, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomWaiting, restarted.Status)

	// The rematch starts from a clean slate once everyone readies up.
	_, err = ToggleReady(members[1].ID, room.ID)
	require.NoError(t, err)
	require.NoError(t, StartGame(host.ID, room.ID))

	loaded := reloadRoom(t, db, room.ID)
	assert.Equal(t, models.RoomPlaying, loaded.Status)
	assert.Equal(t, 1, loaded.CurrentRound)
	p := participantOf(t, db, room.ID, members[1].ID)
	assert.Zero(t, p.Score)
}

func TestFinishGameEarly(t *testing.T) {
	db := setupTestDB(t)
	room, members := startedGame(t, db, 1, 5)
	host := members[0]

	err := FinishGame(members[1].ID, room.ID)
	assert.ErrorIs(t, err, ErrNotHost)

	require.NoError(t, FinishGame(host.ID, room.ID))
	loaded := reloadRoom(t, db, room.ID)
	assert.Equal(t, models.RoomFinished, loaded.Status)
	assert.Nil(t, loaded.RoundPhase)
}
