package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Series
	mux.HandleFunc("/api/series", s.app.SeriesHandler.GetSeriesHandler)
	mux.HandleFunc("/api/concepts", s.app.SeriesHandler.ConceptsHandler)

	// API routes - Cache
	mux.HandleFunc("/api/cache/stats", s.app.CacheHandler.StatsHandler)
	mux.HandleFunc("/api/cache/", s.handleCacheRoutes) // GET/DELETE /{ticker}, POST /{ticker}/refresh

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleCacheRoutes routes per-ticker cache requests to the appropriate handler
func (s *Server) handleCacheRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/cache/{ticker}/refresh
	if r.Method == http.MethodPost && strings.HasSuffix(path, "/refresh") {
		s.app.CacheHandler.RefreshHandler(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.app.CacheHandler.StatusHandler(w, r)
	case http.MethodDelete:
		s.app.CacheHandler.DeleteHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
