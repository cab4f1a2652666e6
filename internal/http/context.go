package http

import (
	"context"

	"github.com/karloscodes/cartridge"

	"folio/internal/config"
)

// requestContext bounds the database work of a dashboard request.
func requestContext(ctx *cartridge.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.UserContext(), config.GetConfig().GetRequestTimeout())
}
