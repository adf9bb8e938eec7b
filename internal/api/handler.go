// internal/api/handler.go
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gitledger/internal/model"
	"gitledger/internal/store"
)

const (
	defaultCommitsLimit = 50
	defaultTopLimit     = 10
	maxLimit            = 100
)

// Handler is the container for API dependencies.
type Handler struct {
	store  store.Reader
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(st store.Reader, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:  st,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1/repos", func(r chi.Router) {
		r.Get("/", h.listRepositories)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", h.getRepository)
			r.Get("/commits", h.getCommits)
			r.Get("/commits/{hash}/files", h.getCommitFiles)
			r.Get("/stats/top-committers", h.getTopCommitters)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRepositories returns the sync state of every known repository.
// GET /v1/repos
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	states, err := h.store.ListRepositoryStates(r.Context())
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, states)
}

// getRepository handles the request for one repository's sync state.
// GET /v1/repos/{key}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	state, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, state)
}

// getCommits handles the request to retrieve commits for a repository, newest first.
// GET /v1/repos/{key}/commits?limit=N
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultCommitsLimit)
	if !ok {
		return
	}
	state, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}

	commits, err := h.store.ListCommits(r.Context(), state.RepositoryKey(), limit)
	if err != nil {
		h.logger.Error("Failed to get commits", "repository_key", state.RepositoryKey(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, commits)
}

// getCommitFiles returns the file changes of one commit.
// GET /v1/repos/{key}/commits/{hash}/files
func (h *Handler) getCommitFiles(w http.ResponseWriter, r *http.Request) {
	state, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}

	files, err := h.store.ListFileChanges(r.Context(), state.RepositoryKey(), chi.URLParam(r, "hash"))
	if err != nil {
		h.logger.Error("Failed to get commit files", "repository_key", state.RepositoryKey(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, files)
}

// getTopCommitters handles the request for top commit authors.
// GET /v1/repos/{key}/stats/top-committers?limit=N
func (h *Handler) getTopCommitters(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultTopLimit)
	if !ok {
		return
	}
	state, ok := h.lookupRepository(w, r)
	if !ok {
		return
	}

	authors, err := h.store.TopAuthors(r.Context(), state.RepositoryKey(), limit)
	if err != nil {
		h.logger.Error("Failed to get top commit authors", "repository_key", state.RepositoryKey(), "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, authors)
}

// lookupRepository loads the state named by the {key} URL parameter and writes the error response when it fails.
func (h *Handler) lookupRepository(w http.ResponseWriter, r *http.Request) (model.RepositoryState, bool) {
	key := chi.URLParam(r, "key")
	if _, err := model.ParseKey(key); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository key. Expected host~owner~name.")
		return model.RepositoryState{}, false
	}

	state, err := h.store.GetRepositoryState(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return model.RepositoryState{}, false
		}
		h.logger.Error("Failed to get repository", "repository_key", key, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.RepositoryState{}, false
	}
	return state, true
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxLimit {
		respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
		return 0, false
	}
	return limit, true
}
