package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"jewelshot/internal/storage"
)

// Artifact serves a stored original or optimized image by key.
func (a *App) Artifact(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if strings.TrimSpace(key) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "artifact key required")
		return
	}
	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "artifact not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("artifacts: read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read artifact")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
