// utils/http.go - Fiber response helpers
package utils

import (
	"github.com/gofiber/fiber/v2"
)

// OK sends the standard success envelope, merging map payloads into the
// envelope and nesting everything else under "data".
func OK(c *fiber.Ctx, data interface{}) error {
	response := fiber.Map{"success": true}

	if dataMap, ok := data.(fiber.Map); ok {
		for k, v := range dataMap {
			response[k] = v
		}
	} else if data != nil {
		response["data"] = data
	}

	return c.JSON(response)
}

// Fail sends the standard failure envelope. Game-rule rejections are
// normal outcomes, so the HTTP status stays 200 and clients branch on
// the success flag.
func Fail(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// FailStatus sends the failure envelope with an explicit HTTP status.
func FailStatus(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
