package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"folio/internal/config"
)

//go:embed capture.js
var captureTemplateSource string

var captureTemplate = template.Must(template.New("capture.js").Parse(captureTemplateSource))

// renderCaptureScript fills the endpoint and marker lifetime into the browser SDK.
func renderCaptureScript(baseURL string, cfg *config.Config) ([]byte, error) {
	var buf bytes.Buffer
	err := captureTemplate.Execute(&buf, map[string]any{
		"BaseURL":           baseURL,
		"SessionTTLSeconds": int(cfg.GetCaptureSessionTTL().Seconds()),
	})
	return buf.Bytes(), err
}

func GetSDKAction(ctx *cartridge.Context) error {
	content, err := renderCaptureScript(ctx.BaseURL(), config.GetConfig())
	if err != nil {
		ctx.Logger.Error("Failed to render capture script", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	etag := generateETag(content)
	if ctx.Get("If-None-Match") == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set("Content-Type", "application/javascript")
	ctx.Set("Cache-Control", "public, max-age=3600")
	ctx.Set("ETag", etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")
	return ctx.Send(content)
}
