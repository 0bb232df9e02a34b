package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/carevault/carevault/internal/logging"
	"github.com/carevault/carevault/internal/server/session"
)

// NewRouter assembles the API.
//
// Public:
//
//	GET  /api/admin-key          → administrator public key (PEM)
//	POST /api/register           → create a user from an enrollment
//	POST /api/salt               → pre-login salt and KDF parameters
//	POST /api/login              → verify and mint a tiered session
//
// Authenticated:
//
//	POST   /api/logout           → end the session
//	POST   /api/password         → swap credential bundle, drop sessions
//	PUT    /api/session/fragment → attach balanced-tier key fragment
//	GET    /api/session/fragment → release fragment for reconstruction
//	POST   /api/records          → upsert a record
//	GET    /api/records          → list own records
//	GET    /api/records/{period} → fetch one record (?subkey=)
//	DELETE /api/records/{period} → delete one record (?subkey=)
//
// Admin:
//
//	GET /api/admin/records       → all admin-wrapped DEKs plus records
func NewRouter(authHandler *AuthHandler, recordsHandler *RecordsHandler, sessions *session.Manager, secretKey []byte, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/admin-key", authHandler.AdminKey)
		r.Post("/register", authHandler.Register)
		r.Post("/salt", authHandler.Salt)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(Auth(secretKey, sessions))

			r.Post("/logout", authHandler.Logout)
			r.Post("/password", authHandler.ChangePassword)
			r.Put("/session/fragment", authHandler.PutFragment)
			r.Get("/session/fragment", authHandler.GetFragment)

			r.Post("/records", recordsHandler.Save)
			r.Get("/records", recordsHandler.List)
			r.Get("/records/{period}", recordsHandler.Get)
			r.Delete("/records/{period}", recordsHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(AdminOnly)
				r.Get("/admin/records", recordsHandler.AdminList)
			})
		})
	})

	return r
}
