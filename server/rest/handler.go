package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
)

type Handler struct {
	service *Service
}

type infoRequest struct {
	URL string `json:"url"`
}

type downloadResponse struct {
	DownloadId string `json:"download_id"`
}

// Info retrieves the source title and the selectable format catalog.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	defer r.Body.Close()

	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.Info(r.Context(), req.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// Download starts an asynchronous download and returns its id
// without waiting for any progress.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.service.Start(r.FormValue("url"), r.FormValue("format_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := json.NewEncoder(w).Encode(downloadResponse{DownloadId: id}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// Status reports the current task record.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap, err := h.service.Status(chi.URLParam(r, "download_id"))
	if err != nil {
		http.Error(w, "download not found", http.StatusNotFound)
		return
	}

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// File streams the completed artifact as an attachment.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.File(chi.URLParam(r, "download_id"))
	if err != nil {
		var stateErr *StateError

		switch {
		case errors.Is(err, registry.ErrNotFound):
			http.Error(w, "download not found", http.StatusNotFound)
		case errors.As(err, &stateErr):
			http.Error(w, stateErr.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrFileMissing):
			http.Error(w, "file not found", http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)),
	)

	http.ServeFile(w, r, path)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusWS pushes task snapshots over a websocket until the task
// reaches a terminal state. Polling GET /status stays the primary
// interface; this is a convenience for the frontend.
func (h *Handler) StatusWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "download_id")

	if _, err := h.service.Status(id); err != nil {
		http.Error(w, "download not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		snap, err := h.service.Status(id)
		if err != nil {
			return
		}

		if err := conn.WriteJSON(snap); err != nil {
			return
		}

		if snap.Status.Terminal() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(ProvideService(args))

	return func(r chi.Router) {
		r.Post("/info", h.Info)
		r.Post("/download", h.Download)
		r.Get("/status/{download_id}", h.Status)
		r.Get("/status/ws/{download_id}", h.StatusWS)
		r.Get("/download/{download_id}", h.File)
	}
}
