package users_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/users"
)

func RegisterRoutes(r chi.Router, s users.UserService, l *zap.Logger) {
	handler := NewUserHandler(s, l.With(zap.String("component", "UserHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Auth service is healthy!"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handler.RegisterHandler)
		r.Post("/login", handler.LoginHandler)
		r.Put("/change-password", handler.ChangePasswordHandler)
		r.Get("/users", handler.ListUsersHandler)
		r.Get("/users/{id}", handler.GetUserHandler)
	})
}
