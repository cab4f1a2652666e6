package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"folio/internal/accounts"
)

// AccountDeleteAction schedules the account for deletion. Its events and
// resources are removed in the background by the cleanup job; from now on the
// account behaves as if it did not exist.
func AccountDeleteAction(ctx *cartridge.Context) error {
	id := ownerID(ctx)
	if err := accounts.MarkForDeletion(ctx.DB(), ctx.Logger, id); err != nil {
		ctx.Logger.Error("Failed to schedule account deletion",
			slog.Uint64("owner_id", uint64(id)),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete account"})
	}

	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Account scheduled for deletion",
		"status":  fiber.StatusAccepted,
	})
}
