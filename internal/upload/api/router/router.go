package router

import (
	"media_transcode_service/internal/upload/api/handlers"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册上传相关的路由
func RegisterRoutes(app *fiber.App, uploadHandler *handlers.UploadHandler) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Post("/upload", uploadHandler.Upload)
}
