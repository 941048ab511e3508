package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/search"
	"github.com/sells-group/prospect-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/prospects/enrich", handleEnrich(env))
		r.Get("/prospects", handleListProspects(env))
		r.Get("/prospects/{id}", handleGetProspect(env))
		r.Get("/prospects/{id}/sources", handleGetSources(env))
		r.Get("/prospects/{id}/activities", handleListActivities(env))
		r.Post("/search", handleSearch(env))
		r.Get("/breakers", handleBreakers(env))
	})

	return r
}

func handleEnrich(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.EnrichmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TenantID == "" {
			req.TenantID = r.Header.Get("X-Tenant-ID")
		}
		if req.ProspectID == "" || req.TenantID == "" {
			writeError(w, http.StatusBadRequest, "prospect_id and tenant_id are required")
			return
		}

		// The run outlives the request; detach it from the request context.
		if err := env.Pool.Submit(context.WithoutCancel(r.Context()), req); err != nil {
			if eris.Is(err, enrich.ErrAlreadyRunning) {
				writeJSON(w, http.StatusConflict, map[string]string{
					"status":      "already_running",
					"prospect_id": req.ProspectID,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, "could not schedule enrichment")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "accepted",
			"prospect_id": req.ProspectID,
		})
	}
}

func handleGetProspect(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
			return
		}
		p, err := env.Store.GetProspect(r.Context(), tenant, chi.URLParam(r, "id"))
		if err != nil {
			if resilience.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "prospect not found")
				return
			}
			zap.L().Error("get prospect failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleGetSources(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
			return
		}
		p, err := env.Store.GetProspect(r.Context(), tenant, chi.URLParam(r, "id"))
		if err != nil {
			if resilience.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "prospect not found")
				return
			}
			zap.L().Error("get prospect failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"enrichment_status": p.EnrichmentStatus,
			"sources":           p.Sources,
			"last_enriched_at":  p.LastEnrichedAt,
		})
	}
}

func handleListProspects(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
			return
		}
		filter := store.ProspectFilter{
			TenantID: tenant,
			Status:   model.EnrichmentStatus(r.URL.Query().Get("status")),
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			filter.Limit = n
		}
		if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
			filter.Offset = n
		}
		prospects, err := env.Store.ListProspects(r.Context(), filter)
		if err != nil {
			zap.L().Error("list prospects failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prospects": prospects})
	}
}

func handleListActivities(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get("X-Tenant-ID")
		if tenant == "" {
			writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
			return
		}
		acts, err := env.Store.ListActivities(r.Context(), tenant, chi.URLParam(r, "id"))
		if err != nil {
			zap.L().Error("list activities failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"activities": acts})
	}
}

func handleSearch(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req search.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TenantID == "" {
			req.TenantID = r.Header.Get("X-Tenant-ID")
		}
		if req.TenantID == "" {
			writeError(w, http.StatusBadRequest, "tenant_id is required")
			return
		}

		resp, err := env.Search.Search(r.Context(), req)
		if err != nil {
			var rle *search.RateLimitError
			if eris.As(err, &rle) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter(time.Now()).Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			zap.L().Error("search failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "search provider error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBreakers(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"breakers": env.Registry.States()})
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

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
