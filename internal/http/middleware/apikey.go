package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"folio/internal/accounts"
)

// OwnerIDKey is the fiber.Locals key holding the authenticated owner id (uint).
const OwnerIDKey = "owner_id"

// OwnerAPIKeyAuth checks that the request carries the API key of the owner named
// in the :ownerId route parameter.
// Expects: Authorization: Bearer <api_key>
func OwnerAPIKeyAuth(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		providedKey, ok := bearerToken(c.Get("Authorization"))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <api_key>",
			})
		}

		ownerID, err := strconv.ParseUint(c.Params("ownerId"), 10, 64)
		if err != nil || ownerID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid owner id",
			})
		}

		account, err := accounts.GetActiveAccount(db.WithContext(c.UserContext()), uint(ownerID))
		if err != nil {
			var notFound *accounts.AccountNotFoundError
			if !errors.As(err, &notFound) {
				logger.Error("Failed to load account for API key check", slog.Any("error", err))
			}
			// Unknown owners and wrong keys look the same to the caller.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		if !account.VerifyAPIKey(providedKey) {
			logger.Debug("Rejected API key", slog.Uint64("owner_id", ownerID))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		c.Locals(OwnerIDKey, account.ID)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
