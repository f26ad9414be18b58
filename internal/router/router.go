package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/audiobrew/web/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Page    *apiHandler.PageHandler
	Profile *apiHandler.ProfileHandler
	Account *apiHandler.AccountHandler
	Podcast *apiHandler.PodcastHandler
	Gmail   *apiHandler.GmailHandler
	Health  *apiHandler.HealthHandler
}

// New registers every route. metrics may be nil to leave /metrics out.
func New(handlers Handlers, metrics fasthttp.RequestHandler) *router.Router {
	r := router.New()
	r.SaveMatchedRoutePath = true

	r.GET("/health", handlers.Health.Check)
	if metrics != nil {
		r.GET("/metrics", metrics)
	}

	// Auth form actions
	r.POST("/login", handlers.Auth.Login)
	r.POST("/signup", handlers.Auth.Signup)
	r.GET("/auth/oauth", handlers.Auth.OAuth)
	r.GET("/auth/callback", handlers.Auth.Callback)
	r.GET("/logout", handlers.Auth.Logout)
	r.POST("/logout", handlers.Auth.Logout)

	// Page data
	r.GET("/api/session", handlers.Page.Layout)
	r.GET("/dashboard/profile", handlers.Page.Profile)
	r.POST("/dashboard/podcast/{id}/delete", handlers.Podcast.DeleteAction)

	// Podcasts
	r.GET("/api/podcast/list", handlers.Podcast.List)
	r.POST("/api/podcast/generate", handlers.Podcast.Generate)
	r.GET("/api/podcast/generation", handlers.Podcast.Generation)
	r.DELETE("/api/podcast/generation", handlers.Podcast.StopGeneration)
	r.GET("/api/podcast/feed/{user_id}", handlers.Podcast.Feed)
	r.GET("/api/podcast/{id}", handlers.Podcast.Get)
	r.DELETE("/api/podcast/{id}", handlers.Podcast.Delete)
	r.GET("/api/podcast/{id}/download", handlers.Podcast.Download)
	r.GET("/api/podcast/{id}/share", handlers.Podcast.Share)
	r.GET("/api/podcast/{id}/script", handlers.Podcast.Script)

	// Gmail
	r.GET("/api/auth/gmail", handlers.Gmail.Auth)
	r.GET("/api/auth/gmail/callback", handlers.Gmail.Callback)
	r.GET("/api/gmail/emails", handlers.Gmail.Emails)
	r.GET("/api/gmail/labels", handlers.Gmail.Labels)
	r.DELETE("/api/gmail/disconnect", handlers.Gmail.Disconnect)
	r.GET("/api/gmail/status", handlers.Gmail.Status)
	r.GET("/api/gmail/connection", handlers.Gmail.Connection)
	r.GET("/api/gmail/label-status", handlers.Gmail.LabelStatus)

	// Profile and account
	r.PUT("/api/profile/display-name", handlers.Profile.UpdateDisplayName)
	r.POST("/api/profile/avatar", handlers.Profile.UploadAvatar)
	r.POST("/api/profile/avatar/preview", handlers.Profile.Preview)
	r.GET("/api/profile/image", handlers.Profile.Image)
	r.GET("/api/profile/notice", handlers.Profile.Notice)
	r.DELETE("/api/user/{user_id}", handlers.Account.DeleteUser)
	r.DELETE("/api/account", handlers.Account.DeleteAccount)

	return r
}
