package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/drivehub/drivehub-auth-api/internal/middleware"
	"github.com/drivehub/drivehub-auth-api/internal/service"
)

// RegisterRoutes mounts the auth and admin endpoints under the API prefix.
// The RequireUser/RequireAdmin gates registered here are the same functions
// the platform's other route modules mount as their precondition.
func RegisterRoutes(r gin.IRouter, prefix string, authH *AuthHandler, adminH *AdminHandler, codec *service.TokenCodec, opsKey string) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authH.Login)
		auth.POST("/register", authH.Register)
		auth.POST("/google", authH.Google)
		auth.POST("/refresh", authH.Refresh)
		auth.POST("/logout", authH.Logout)
		auth.POST("/forgot-password", authH.ForgotPassword)
		auth.POST("/verify-reset-token", authH.VerifyResetCode)
		auth.POST("/reset-password", authH.ResetPassword)

		protected := auth.Group("", middleware.RequireUser(codec))
		{
			protected.GET("/me", authH.Me)
			protected.PATCH("/profile", authH.UpdateProfile)
			protected.POST("/change-password", authH.ChangePassword)
			protected.POST("/logout-all", authH.LogoutAll)
		}
	}

	admin := api.Group("/admin")
	{
		admin.POST("/login", adminH.Login)
		admin.GET("/me", middleware.RequireAdmin(codec, opsKey), adminH.Me)
	}
}
