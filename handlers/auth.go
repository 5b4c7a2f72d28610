// handlers/auth.go
package handlers

import (
	"fmt"
	"os"
	"time"

	"songquiz/database"
	"songquiz/middleware"
	"songquiz/models"
	"songquiz/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GuestLoginRequest struct {
	GuestName string `json:"guest_name,omitempty"`
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token,omitempty"`
	Member  MemberInfo `json:"member,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type MemberInfo struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	IsGuest   bool      `json:"is_guest"`
	CreatedAt time.Time `json:"created_at"`
}

func memberInfo(m *models.Member) MemberInfo {
	return MemberInfo{
		ID:        m.ID,
		Username:  m.Username,
		Nickname:  m.Nickname,
		IsGuest:   m.IsGuest,
		CreatedAt: m.CreatedAt,
	}
}

// GuestLogin creates a throwaway member so players can join without
// registering.
func GuestLogin(c *fiber.Ctx) error {
	var req GuestLoginRequest
	_ = c.BodyParser(&req)

	db := database.GetDB()

	nickname := req.GuestName
	if nickname == "" {
		nickname = fmt.Sprintf("Guest_%s", uuid.New().String()[:8])
	}

	member := models.Member{
		Username:  fmt.Sprintf("guest_%s", uuid.New().String()[:8]),
		Nickname:  nickname,
		Password:  "",
		IsGuest:   true,
		LastLogin: time.Now(),
	}

	if err := db.Create(&member).Error; err != nil {
		return c.Status(500).JSON(AuthResponse{
			Success: false,
			Error:   "Failed to create guest account",
		})
	}

	token, err := generateToken(member)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{
			Success: false,
			Error:   "Failed to generate token",
		})
	}

	return c.JSON(AuthResponse{
		Success: true,
		Token:   token,
		Member:  memberInfo(&member),
	})
}

// Register creates a new member account
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Invalid request body"})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Username and password required"})
	}
	if len(req.Username) < 3 || len(req.Username) > 30 {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Username must be 3-30 characters"})
	}
	if len(req.Password) < 6 {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Password must be at least 6 characters"})
	}
	if req.Nickname == "" {
		req.Nickname = req.Username
	}

	db := database.GetDB()

	var count int64
	db.Model(&models.Member{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		return c.Status(409).JSON(AuthResponse{Success: false, Error: "Username already taken"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to hash password"})
	}

	member := models.Member{
		Username:  req.Username,
		Nickname:  req.Nickname,
		Password:  string(hashed),
		LastLogin: time.Now(),
	}
	if req.Email != "" {
		member.Email = &req.Email
	}

	if err := db.Create(&member).Error; err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to create account"})
	}

	token, err := generateToken(member)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to generate token"})
	}

	return c.JSON(AuthResponse{Success: true, Token: token, Member: memberInfo(&member)})
}

// Login authenticates a registered member
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Invalid request body"})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Username and password required"})
	}

	db := database.GetDB()

	var member models.Member
	if err := db.Where("username = ? AND is_guest = ?", req.Username, false).First(&member).Error; err != nil {
		return c.Status(401).JSON(AuthResponse{Success: false, Error: "Invalid username or password"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(member.Password), []byte(req.Password)); err != nil {
		return c.Status(401).JSON(AuthResponse{Success: false, Error: "Invalid username or password"})
	}

	member.LastLogin = time.Now()
	db.Save(&member)

	// A fresh login invalidates whatever rooms a crashed tab left behind.
	if err := services.ReconcileMemberSessions(member.ID); err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to reconcile sessions"})
	}

	token, err := generateToken(member)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to generate token"})
	}

	return c.JSON(AuthResponse{Success: true, Token: token, Member: memberInfo(&member)})
}

// Me returns the authenticated member's profile and lifetime stats.
func Me(c *fiber.Ctx) error {
	memberID, err := middleware.GetMemberID(c)
	if err != nil {
		return err
	}

	var member models.Member
	if err := database.GetDB().First(&member, memberID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Member not found"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"member":  memberInfo(&member),
		"stats": fiber.Map{
			"multi_games":   member.MultiGames,
			"multi_score":   member.MultiScore,
			"multi_correct": member.MultiCorrect,
			"multi_best":    member.MultiBest,
		},
	})
}

func generateToken(member models.Member) (string, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "songquiz-secret-change-in-production"
	}

	claims := jwt.MapClaims{
		"member_id": member.ID,
		"username":  member.Username,
		"is_guest":  member.IsGuest,
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
