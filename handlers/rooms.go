// handlers/rooms.go - Room lifecycle endpoints
package handlers

import (
	"errors"

	"songquiz/middleware"
	"songquiz/models"
	"songquiz/services"
	"songquiz/utils"

	"github.com/gofiber/fiber/v2"
)

// serviceError translates a service failure into the response envelope.
// Game-rule rejections are expected outcomes and go out as 200 with
// success=false, only genuine lookup misses get a 404.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrGenreNotFound):
		return utils.FailStatus(c, 404, err.Error())
	default:
		return utils.Fail(c, err.Error())
	}
}

type CreateRoomRequest struct {
	RoomName    string               `json:"room_name"`
	MaxPlayers  int                  `json:"max_players"`
	TotalRounds int                  `json:"total_rounds"`
	IsPrivate   bool                 `json:"is_private"`
	Password    string               `json:"password"`
	Settings    *models.GameSettings `json:"settings"`
}

// CreateRoom opens a new room with the caller as host.
func CreateRoom(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.FailStatus(c, 400, "Invalid request body")
	}

	if req.MaxPlayers == 0 {
		req.MaxPlayers = 8
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = 10
	}
	settings := models.DefaultGameSettings()
	if req.Settings != nil {
		settings = *req.Settings
		if settings.GameMode == "" {
			settings.GameMode = models.ModeRandom
		}
		if settings.TimeLimit == 0 {
			settings.TimeLimit = 30
		}
	}

	room, err := services.CreateRoom(memberID, services.CreateRoomInput{
		RoomName:    req.RoomName,
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: req.TotalRounds,
		IsPrivate:   req.IsPrivate,
		Password:    req.Password,
		Settings:    settings,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return utils.OK(c, fiber.Map{"room": room})
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code"`
	Password string `json:"password"`
}

// JoinRoom enters a waiting room by code.
func JoinRoom(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}

	var req JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.FailStatus(c, 400, "Invalid request body")
	}
	if req.RoomCode == "" {
		return utils.FailStatus(c, 400, "Room code required")
	}

	room, err := services.JoinRoom(memberID, req.RoomCode, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	return utils.OK(c, fiber.Map{"room": room})
}

// ListRooms returns the public lobby list, optionally filtered by name.
func ListRooms(c *fiber.Ctx) error {
	listings, err := services.ListWaitingRooms(c.Query("q"))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"rooms": listings})
}

// GetRoomState is the waiting-room polling endpoint.
func GetRoomState(c *fiber.Ctx) error {
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	state, err := services.GetRoomState(uint(roomID))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{
		"room":         state.Room,
		"participants": state.Participants,
	})
}

// ResetParticipations is the recovery hatch for stuck clients: it clears
// every room membership the caller still holds, regardless of room state.
func ResetParticipations(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}

	if err := services.ResetMemberParticipations(memberID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// GetMyRoom finds the caller's current room so a refreshed client can
// route back into it.
func GetMyRoom(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}

	room, err := services.GetMyActiveRoom(memberID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"room": room})
}

// LeaveRoom processes a waiting-room departure signal.
func LeaveRoom(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	if err := services.LeaveRoom(memberID, uint(roomID)); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// LeaveFinishedRoom is the explicit exit from the results screen.
func LeaveFinishedRoom(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	if err := services.LeaveFinishedRoom(memberID, uint(roomID)); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// ToggleReady flips the caller's ready flag.
func ToggleReady(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	ready, err := services.ToggleReady(memberID, uint(roomID))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"is_ready": ready})
}

type KickRequest struct {
	MemberID uint `json:"member_id"`
}

// KickParticipant ejects a player. Host only.
func KickParticipant(c *fiber.Ctx) error {
	hostID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	var req KickRequest
	if err := c.BodyParser(&req); err != nil || req.MemberID == 0 {
		return utils.FailStatus(c, 400, "Target member required")
	}

	if err := services.KickParticipant(hostID, uint(roomID), req.MemberID); err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, nil)
}

// RestartRoom resets a finished room for a rematch. Host only.
func RestartRoom(c *fiber.Ctx) error {
	hostID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	room, err := services.RestartRoom(hostID, uint(roomID))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"room": room})
}

type ChatRequest struct {
	Message string `json:"message"`
}

// SendChat posts a chat message to the room.
func SendChat(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.FailStatus(c, 400, "Invalid request body")
	}

	chat, err := services.SendChat(memberID, uint(roomID), req.Message)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"chat": chat})
}

// GetChats returns chat messages after the given id.
func GetChats(c *fiber.Ctx) error {
	roomID, err := c.ParamsInt("id")
	if err != nil || roomID <= 0 {
		return utils.FailStatus(c, 400, "Invalid room id")
	}
	afterID := c.QueryInt("after", 0)

	chats, err := services.GetChatsSince(uint(roomID), uint(afterID))
	if err != nil {
		return serviceError(c, err)
	}
	return utils.OK(c, fiber.Map{"chats": chats})
}
