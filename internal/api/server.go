// Package api provides the incipit HTTP service: document upload, conversion,
// link activation, and health reporting. The conversion core stays pure; this
// layer only translates requests and error kinds.
package api

import (
	"fmt"
	"net/http"

	"github.com/incipitworks/incipit/internal/logging"
)

// Config holds server configuration.
type Config struct {
	// Port the HTTP listener binds to.
	Port int
	// MaxUploadBytes caps request bodies; zero selects the validation
	// package default.
	MaxUploadBytes int64
	// Version reported by the health endpoint.
	Version string
}

// Start runs the API server with the given configuration. It blocks until
// the listener fails.
func Start(cfg Config) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	srv := &server{cfg: cfg}
	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleRoot)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/process", srv.handleProcess)
	mux.HandleFunc("/links", srv.handleLinks)

	handler := logging.CombinedMiddleware(mux)

	logging.ServerStartup("incipit_api", "http", cfg.Port)
	return http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), handler)
}

type server struct {
	cfg Config
}
