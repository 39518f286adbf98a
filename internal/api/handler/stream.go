package handler

import (
	"log/slog"
	"net/http"

	"github.com/hszk-dev/dashstream/internal/usecase"
)

type ListStreamsResponse struct {
	Streams []string `json:"streams"`
}

// StreamHandler serves the stream directory listing.
type StreamHandler struct {
	svc    usecase.EncodeService
	logger *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(svc usecase.EncodeService, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{svc: svc, logger: logger}
}

// List handles GET /api/list
func (h *StreamHandler) List(w http.ResponseWriter, r *http.Request) {
	streams, err := h.svc.ListStreams(r.Context())
	if err != nil {
		h.logger.Error("failed to list streams", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}
	if streams == nil {
		streams = []string{}
	}

	JSON(w, http.StatusOK, ListStreamsResponse{Streams: streams})
}
