package monitor

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	"github.com/oshokin/drowsiness-alarm/internal/version"
)

// Response statuses.
const (
	statusStarted = "started"
	statusStopped = "stopped"
	statusSuccess = "success"
	statusError   = "error"
)

var (
	// errInvalidBody is returned for malformed JSON.
	errInvalidBody = errors.New("request body must be a JSON object")
	// errInvalidEmail is returned when the SOS address is not an email address.
	errInvalidEmail = errors.New("email must be a valid email address")
	// errNoFrame is returned by /snapshot before the first frame.
	errNoFrame = errors.New("no frame available")
)

// controlResponse answers /start and /stop.
type controlResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// statsResponse answers /stats.
type statsResponse struct {
	EyesClosedCount  uint64 `json:"eyes_closed_count"`
	TotalFrames      uint64 `json:"total_frames"`
	DrowsinessEvents uint64 `json:"drowsiness_events"`
	AlarmTriggered   bool   `json:"alarm_triggered"`
}

// statusResponse answers /status.
type statusResponse struct {
	Running   bool         `json:"running"`
	SessionID string       `json:"session_id,omitempty"`
	Build     version.Info `json:"build"`
}

// recipientRequest is the body of POST /sos/email.
type recipientRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// recipientResponse answers /sos/email.
type recipientResponse struct {
	Status string `json:"status,omitempty"`
	Email  string `json:"email"`
}

// errorResponse is returned for every failed request.
type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// toStatsResponse converts domain stats to the wire format.
func toStatsResponse(stats *domain.Stats) *statsResponse {
	stats = stats.Clone()

	return &statsResponse{
		EyesClosedCount:  stats.EyesClosedFrames,
		TotalFrames:      stats.FramesProcessed,
		DrowsinessEvents: stats.DrowsinessEvents,
		AlarmTriggered:   stats.AlarmActive,
	}
}

// respondJSON writes body as JSON with the given status.
func respondJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.ErrorKV(ctx, "Encode response failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if _, err = w.Write(data); err != nil {
		logger.DebugKV(ctx, "Write response failed", "error", err)
	}
}

// respondError writes an error body with the given status.
func respondError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	respondJSON(ctx, w, status, &errorResponse{
		Status: statusError,
		Error:  err.Error(),
	})
}
