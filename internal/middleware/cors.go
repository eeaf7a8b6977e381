// AngelaMos | 2026
// cors.go

package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/rzkfyn/ujikom-app-be/internal/config"
)

func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	return c.Handler
}
