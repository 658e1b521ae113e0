package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"jewelshot/internal/optimize"
)

type optimizeImageRef struct {
	URL    string `json:"url"`
	FileID string `json:"file_id"`
}

type optimizeRequest struct {
	Image    optimizeImageRef  `json:"image"`
	Prompt   string            `json:"prompt"`
	Settings optimize.Settings `json:"settings"`
}

// OptimizeImage runs one image through the optimization pipeline
// synchronously. The response is either a success or a passthrough shape;
// only a request without any image at all is a hard 400, since there is
// nothing to fall back to.
func (a *App) OptimizeImage(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
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
	if imageURL == "" {
		resolved, ok := a.resolveFileID(fileID)
		if !ok {
			a.error(w, http.StatusNotFound, "not_found", "file_id does not resolve to a stored image")
			return
		}
		imageURL = resolved
	}

	result := a.Pipeline.Optimize(r.Context(), imageURL, req.Prompt, req.Settings, nil)
	a.json(w, http.StatusOK, result)
}

// resolveFileID maps an ingested file id onto its served artifact URL.
func (a *App) resolveFileID(fileID string) (string, bool) {
	key := "uploads/" + fileID
	if a.Store == nil || !a.Store.Exists(key) {
		return "", false
	}
	base := strings.TrimRight(a.Config.StorageBaseURL, "/")
	return base + "/" + key, true
}
