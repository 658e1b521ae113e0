package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"jewelshot/internal/adapter/repo"
	"jewelshot/internal/optimize"
)

type enqueueRequest struct {
	Image    optimizeImageRef  `json:"image"`
	Prompt   string            `json:"prompt"`
	Settings optimize.Settings `json:"settings"`
}

type enqueueResponse struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
}

// QueueEnqueue inserts a pending queue item for background optimization.
func (a *App) QueueEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	imageURL := strings.TrimSpace(req.Image.URL)
	fileID := strings.TrimSpace(req.Image.FileID)
	if imageURL == "" && fileID == "" {
		a.json(w, http.StatusBadRequest, map[string]string{"error": "image_url or file_id required"})
		return
	}

	id, err := a.Queue.Enqueue(r.Context(), imageURL, fileID, req.Prompt, req.Settings)
	if err != nil {
		a.Logger.Error().Err(err).Msg("queue: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to enqueue item")
		return
	}
	a.json(w, http.StatusAccepted, enqueueResponse{ItemID: id, Status: "pending"})
}

// QueueItemStatus reports one item's progress and terminal outcome.
func (a *App) QueueItemStatus(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "item_id required")
		return
	}
	item, err := a.Queue.ItemByID(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, repo.ErrNoItem) {
			a.error(w, http.StatusNotFound, "not_found", "queue item not found")
			return
		}
		a.Logger.Error().Err(err).Str("item_id", itemID).Msg("queue: status lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load queue item")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"id":            item.ID,
		"status":        item.Status,
		"progress":      item.Progress,
		"image_url":     item.ImageURL,
		"file_id":       item.FileID,
		"optimized_url": item.OptimizedURL,
		"error":         item.ErrorMessage,
		"created_at":    item.CreatedAt,
		"updated_at":    item.UpdatedAt,
	})
}
