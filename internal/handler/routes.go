package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	deviceHandler *DeviceHandler,
	notificationHandler *NotificationHandler,
	sessionHandler *SessionHandler,
	healthHandler *HealthHandler,
	authMiddleware fiber.Handler,
	testLimiter fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// Device binding (session required)
	app.Post("/track-device", authMiddleware, deviceHandler.TrackDevice)
	app.Get("/devices", authMiddleware, sessionHandler.GetMyDevices)

	// Notification inbox (session required)
	notifications := app.Group("/notifications", authMiddleware)
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Post("/mark-all-read", notificationHandler.MarkAllRead)
	notifications.Post("/test", testLimiter, notificationHandler.SendTest)
	notifications.Post("/:id/read", notificationHandler.MarkRead)
}
