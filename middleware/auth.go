// middleware/auth.go
package middleware

import (
	"os"
	"strings"
	"time"

	"songquiz/database"
	"songquiz/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "songquiz-secret-change-in-production"
	}
	return []byte(secret)
}

func AuthMiddleware(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(401).JSON(fiber.Map{"error": "Missing authorization header"})
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization header format"})
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(401, "Invalid signing method")
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(time.Now()) {
		return c.Status(401).JSON(fiber.Map{"error": "Token expired"})
	}

	c.Locals("memberId", claims["member_id"])
	c.Locals("username", claims["username"])
	c.Locals("isGuest", claims["is_guest"])

	updateMemberActivity(claims["member_id"])

	return c.Next()
}

// GetMemberID extracts the authenticated member id set by AuthMiddleware.
func GetMemberID(c *fiber.Ctx) (uint, error) {
	memberID := c.Locals("memberId")
	if memberID == nil {
		return 0, fiber.NewError(401, "Not authenticated")
	}

	if id, ok := memberID.(float64); ok {
		return uint(id), nil
	}
	if id, ok := memberID.(uint); ok {
		return id, nil
	}
	return 0, fiber.NewError(401, "Invalid member ID format")
}

func IsGuest(c *fiber.Ctx) bool {
	isGuest := c.Locals("isGuest")
	if isGuest == nil {
		return false
	}
	if guest, ok := isGuest.(bool); ok {
		return guest
	}
	return false
}

// updateMemberActivity bumps the member's last login timestamp
func updateMemberActivity(memberID interface{}) {
	if memberID == nil {
		return
	}

	db := database.GetDB()
	if db == nil {
		return
	}

	var id uint
	switch v := memberID.(type) {
	case float64:
		id = uint(v)
	case uint:
		id = v
	default:
		return
	}

	db.Model(&models.Member{}).Where("id = ?", id).Update("last_login", time.Now())
}
