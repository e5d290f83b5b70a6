package http

import (
	"net/http"

	"github.com/sitebatch/maintenance/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// photoContentTypes are the upload types accepted by the storage endpoints.
var photoContentTypes = []string{
	"image/jpeg", "image/png", "image/heic", "image/heif", "image/webp", "application/octet-stream",
}

// NewRouter constructs and returns an HTTP handler that serves the
// maintenance backend.
//
// Routes:
//
//	POST /auth/v1/signup                       → authHandler.SignUp
//	POST /auth/v1/token?grant_type=…           → authHandler.Token
//	POST /auth/v1/recover                      → authHandler.Recover
//	GET  /auth/v1/verify                       → authHandler.Verify
//	POST /auth/v1/logout                       → authHandler.Logout (bearer)
//	GET  /auth/v1/user                         → authHandler.GetUser (bearer)
//	PUT  /auth/v1/user                         → authHandler.UpdateUser (bearer)
//	POST /auth/v1/invite                       → authHandler.Invite (bearer)
//	GET|POST|PATCH /rest/v1/defects            → rowHandler (bearer)
//	GET|POST /rest/v1/defect_activity          → rowHandler (bearer)
//	POST /storage/v1/object/{bucket}/*         → storageHandler.Upload (bearer)
//	POST /storage/v1/object/sign/{bucket}/*    → storageHandler.Sign (bearer)
//	GET  /storage/v1/object/sign/{bucket}/*    → storageHandler.Download (signed token)
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer
//  2. WithRequestLogging(logger): logs incoming requests
//  3. AllowContentType per route group: JSON for auth and rows, images for uploads
//  4. BearerAuth(tokens) on protected groups
func NewRouter(
	authHandler *AuthHandler,
	rowHandler *RowHandler,
	storageHandler *StorageHandler,
	tokens middleware.TokenValidator,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	bearer := middleware.BearerAuth(tokens)
	jsonOnly := chiMiddleware.AllowContentType("application/json")

	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(jsonOnly)

		// Public endpoints
		r.Post("/signup", authHandler.SignUp)
		r.Post("/token", authHandler.Token)
		r.Post("/recover", authHandler.Recover)
		r.Get("/verify", authHandler.Verify)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Post("/logout", authHandler.Logout)
			r.Get("/user", authHandler.GetUser)
			r.Put("/user", authHandler.UpdateUser)
			r.Post("/invite", authHandler.Invite)
		})
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(jsonOnly, bearer)

		r.Get("/defects", rowHandler.ListDefects)
		r.Post("/defects", rowHandler.CreateDefect)
		r.Patch("/defects", rowHandler.UpdateDefect)
		r.Get("/defect_activity", rowHandler.ListActivity)
		r.Post("/defect_activity", rowHandler.AddActivity)
	})

	r.Route("/storage/v1/object", func(r chi.Router) {
		// Signed downloads carry their own token.
		r.Get("/sign/{bucket}/*", storageHandler.Download)

		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.With(jsonOnly).Post("/sign/{bucket}/*", storageHandler.Sign)
			r.With(chiMiddleware.AllowContentType(photoContentTypes...)).Post("/{bucket}/*", storageHandler.Upload)
		})
	})

	return r
}
