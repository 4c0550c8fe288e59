package monitor

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
	"github.com/oshokin/drowsiness-alarm/internal/logger"
	sessions "github.com/oshokin/drowsiness-alarm/internal/service/monitor"
	"github.com/oshokin/drowsiness-alarm/internal/version"
)

// maxRequestBody limits JSON request bodies.
const maxRequestBody = 4 << 10

// indexFile is served at the root path.
const indexFile = "index.html"

// Service abstracts the session operations the transport depends on.
type Service interface {
	Start(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
	Stats() *domain.Stats
	Running() bool
	SessionID() string
}

// Recipients abstracts the SOS recipient configuration.
type Recipients interface {
	SetRecipient(recipient string)
	Recipient() string
}

// Stream serves the live video feed and the latest frame.
type Stream interface {
	http.Handler
	LastFrame() ([]byte, bool)
}

// Options configures the optional parts of the router.
type Options struct {
	// StaticDir holds index.html and the alarm sound; empty disables static files.
	StaticDir string
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// Server implements the HTTP API of the monitor.
type Server struct {
	// service controls detection sessions.
	service Service
	// recipients stores the SOS address.
	recipients Recipients
	// stream serves video frames.
	stream Stream
	// opts holds the optional parts.
	opts Options
	// validate checks request bodies.
	validate *validator.Validate
}

// NewServer wires the provided collaborators into an HTTP handler.
func NewServer(service Service, recipients Recipients, stream Stream, opts *Options) *Server {
	s := &Server{
		service:    service,
		recipients: recipients,
		stream:     stream,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	if opts != nil {
		s.opts = *opts
	}

	return s
}

// Routes returns the router with all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())

	r.Post("/start", s.StartSession)
	r.Post("/stop", s.StopSession)
	r.Get("/stats", s.GetStats)
	r.Get("/status", s.GetStatus)

	r.Get("/sos/email", s.GetRecipient)
	r.Post("/sos/email", s.SetRecipient)

	r.Get("/video_feed", s.stream.ServeHTTP)
	r.Get("/snapshot", s.GetSnapshot)

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	if s.opts.StaticDir != "" {
		r.Get("/", s.serveIndex)
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))))
	}

	return r
}

// StartSession starts a detection session.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.Start(r.Context())
	if err != nil {
		if errors.Is(err, sessions.ErrSessionActive) {
			respondError(r.Context(), w, http.StatusConflict, err)
			return
		}

		logger.ErrorKV(r.Context(), "Start detection failed", "error", err)
		respondError(r.Context(), w, http.StatusInternalServerError, err)

		return
	}

	logger.InfoKV(r.Context(), "Detection started",
		"session_id", id,
		"sos_recipient", s.recipients.Recipient(),
	)

	respondJSON(r.Context(), w, http.StatusOK, &controlResponse{
		Status:    statusStarted,
		SessionID: id,
	})
}

// StopSession stops the running session.
func (s *Server) StopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Stop(r.Context()); err != nil {
		logger.ErrorKV(r.Context(), "Stop detection failed", "error", err)
		respondError(r.Context(), w, http.StatusInternalServerError, err)

		return
	}

	respondJSON(r.Context(), w, http.StatusOK, &controlResponse{
		Status: statusStopped,
	})
}

// GetStats returns the session counters.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, toStatsResponse(s.service.Stats()))
}

// GetStatus reports whether a session runs and which build serves it.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, &statusResponse{
		Running:   s.service.Running(),
		SessionID: s.service.SessionID(),
		Build:     version.Current(),
	})
}

// GetRecipient returns the SOS address.
func (s *Server) GetRecipient(w http.ResponseWriter, r *http.Request) {
	respondJSON(r.Context(), w, http.StatusOK, &recipientResponse{
		Email: s.recipients.Recipient(),
	})
}

// SetRecipient replaces the SOS address; an empty address disables notifications.
func (s *Server) SetRecipient(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, errInvalidBody)
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	if err := s.validate.Struct(&req); err != nil {
		respondError(r.Context(), w, http.StatusBadRequest, errInvalidEmail)
		return
	}

	s.recipients.SetRecipient(req.Email)

	logger.InfoKV(r.Context(), "SOS recipient configured", "email", req.Email)

	respondJSON(r.Context(), w, http.StatusOK, &recipientResponse{
		Status: statusSuccess,
		Email:  req.Email,
	})
}

// GetSnapshot returns the latest annotated frame as a JPEG image.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.stream.LastFrame()
	if !ok {
		respondError(r.Context(), w, http.StatusNotFound, errNoFrame)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(frame); err != nil {
		logger.DebugKV(r.Context(), "Write snapshot failed", "error", err)
	}
}

// serveIndex serves the web page.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.opts.StaticDir, indexFile))
}

// corsHandler allows browsers on other origins to call the API.
func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	})
}

// requestLogger attaches the request ID to the context logger and logs each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.DebugKV(ctx, "HTTP request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started).String(),
		)
	})
}
