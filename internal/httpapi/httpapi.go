// Package httpapi is a thin read-only JSON surface over the sorting
// façade: health, a one-shot sort, and the currently loaded plugin list.
// It is adapted from the teacher's cmd/server/main.go — same mux +
// rs/cors + graceful-shutdown shape — repurposed from the Nexus/FOMOD
// proxy surface onto the sort façade, since a UI (out of scope here)
// still needs something to call.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/pluginsort/core/internal/gamestate"
	"github.com/pluginsort/core/internal/sorter"
)

// Config controls the server's listen address and allowed CORS origins.
type Config struct {
	Port        string
	CORSOrigins []string
}

// NewServer builds an *http.Server wired to game's current state, ready
// for ListenAndServe. Logger is used for per-request diagnostics; a nil
// logger falls back to slog.Default().
func NewServer(cfg Config, game *gamestate.Game, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("POST /sort", sortHandler(game, logger))
	mux.HandleFunc("GET /plugins", pluginsHandler(game))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sortRequest struct {
	Language    string `json:"language"`
	HeadersOnly bool   `json:"headersOnly"`
}

type sortResponse struct {
	CorrelationID string                  `json:"correlationId"`
	Order         []string                `json:"order"`
	Plugins       []sorter.PluginResult   `json:"plugins"`
	Messages      []pluginMessageSummary  `json:"globalMessages"`
}

type pluginMessageSummary struct {
	Severity string `json:"severity"`
	Text     string `json:"text"`
}

func sortHandler(game *gamestate.Game, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sortRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		result, err := sorter.Sort(r.Context(), game, sorter.Options{Language: req.Language, HeadersOnly: req.HeadersOnly})
		if err != nil {
			logger.ErrorContext(r.Context(), "sort failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := sortResponse{
			CorrelationID: result.CorrelationID,
			Order:         result.Order,
			Plugins:       result.Plugins,
		}
		for _, m := range result.GlobalMessages {
			resp.Messages = append(resp.Messages, pluginMessageSummary{
				Severity: string(m.Severity),
				Text:     m.Localize(req.Language),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func pluginsHandler(game *gamestate.Game) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, game.Plugins())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully stops server, giving in-flight requests up to
// 30 seconds to complete — the same budget the teacher's main used.
func Shutdown(ctx context.Context, server *http.Server) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
