package handlers

import (
	"recycly-backend/middleware"
	"recycly-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService) {
	auth := app.Group("/api/v1/auth")

	// Public endpoints carry a tighter per-IP limit than the rest of the API.
	public := auth.Group("/", middleware.RateLimit(2, 5))
	public.Post("/email-code", authService.SendEmailCode)
	public.Post("/register", authService.Register)
	public.Post("/login", authService.Login)
	public.Post("/2fa/verify", authService.Verify2FA)
	public.Get("/oauth/:provider", authService.OAuthRedirect)
	public.Get("/oauth/:provider/callback", authService.OAuthCallback)

	secured := auth.Group("/", middleware.AuthRequired())
	secured.Post("/logout", authService.Logout)
	secured.Get("/me", authService.Me)
	secured.Patch("/me", authService.UpdateProfile)
	secured.Post("/device", authService.RegisterDevice)
	secured.Post("/2fa/enable", authService.Enable2FA)
	secured.Post("/2fa/disable", authService.Disable2FA)
}
