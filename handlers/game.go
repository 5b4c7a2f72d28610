// handlers/game.go - In-game endpoints
package handlers

import (
	"songquiz/middleware"
	"songquiz/services"
	"songquiz/utils"

	"github.com/gofiber/fiber/v2"
)

// roomIDParam parses the :id segment. On failure the 400 response has
// already been written and ok is false.
func roomIDParam(c *fiber.Ctx) (uint, bool) {
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		_ = utils.FailStatus(c, 400, "Invalid room id")
		return 0, false
	}
	return uint(roomID), true
}

// StartGame begins the game. Host only.
func StartGame(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.StartGame(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// GetRoundInfo is the in-game polling endpoint.
func GetRoundInfo(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	info, err := services.GetCurrentRoundInfo(roomID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"round": info})
}

type SelectGenreRequest struct {
	GenreID uint `json:"genre_id"`
}

// SelectGenre resolves the host's category pick in genre-per-round mode.
func SelectGenre(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	var req SelectGenreRequest
	if err := c.BodyParser(&req); err != nil || req.GenreID == 0 {
		return utils.FailStatus(c, 400, "Genre id required")
	}

	if err := services.SelectGenre(memberID, roomID, req.GenreID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

// SubmitAnswer judges the caller's answer for the current round.
func SubmitAnswer(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	var req SubmitAnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.FailStatus(c, 400, "Invalid request body")
	}

	result, err := services.SubmitAnswer(memberID, roomID, req.Answer)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"result": result})
}

// ShowRoundResult closes the answering phase. Host only.
func ShowRoundResult(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.ShowRoundResult(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

type SkipSongRequest struct {
	SongID uint `json:"song_id"`
}

// SkipSong replaces a song that failed to play. Host only.
func SkipSong(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	var req SkipSongRequest
	if err := c.BodyParser(&req); err != nil || req.SongID == 0 {
		return utils.FailStatus(c, 400, "Song id required")
	}

	if err := services.SkipCurrentSong(memberID, roomID, req.SongID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// ProceedToNext moves past the round result. Host only.
func ProceedToNext(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.ProceedToNext(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// PlayAudio marks playback started. Host only.
func PlayAudio(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.PlayAudio(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// PauseAudio marks playback paused. Host only.
func PauseAudio(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.PauseAudio(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// FinishGame ends the game early. Host only.
func FinishGame(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	if err := services.FinishGame(memberID, roomID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// GetFinalResult returns the post-game ranking.
func GetFinalResult(c *fiber.Ctx) error {
	roomID, ok := roomIDParam(c)
	if !ok {
		return nil
	}

	rankings, err := services.GetFinalResult(roomID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"rankings": rankings})
}
