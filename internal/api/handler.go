package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/service"
)

// StatusSource reports the daily jobs' state
type StatusSource interface {
	Status(now time.Time) []service.JobStatus
}

// Config contains status API settings
type Config struct {
	Addr              string
	ChatID            string
	ExcludedThreadIDs []string
	Location          *time.Location
}

// Server is the read-only HTTP status API
type Server struct {
	config    Config
	eventRepo repo.EventRepo
	artifacts repo.ArtifactRepo
	status    StatusSource
	now       func() time.Time
	logger    zerolog.Logger
}

// NewServer creates a new API server. status may be nil.
func NewServer(config Config, eventRepo repo.EventRepo, artifacts repo.ArtifactRepo, status StatusSource, logger zerolog.Logger) *Server {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Server{
		config:    config,
		eventRepo: eventRepo,
		artifacts: artifacts,
		status:    status,
		now:       time.Now,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes returns the API router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/digests/{day}", s.handleDigest)
		r.Get("/messages", s.handleMessages)
	})
	return r
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("status API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "status API")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusResponse struct {
	ChatID         string              `json:"chat_id"`
	Timezone       string              `json:"timezone"`
	Today          string              `json:"today"`
	StoredMessages int                 `json:"stored_messages"`
	Jobs           []service.JobStatus `json:"jobs,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	count, err := s.eventRepo.Count(r.Context(), s.config.ChatID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := statusResponse{
		ChatID:         s.config.ChatID,
		Timezone:       s.config.Location.String(),
		Today:          now.In(s.config.Location).Format(domain.DateLayout),
		StoredMessages: count,
	}
	if s.status != nil {
		resp.Jobs = s.status.Status(now)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(domain.DateLayout, day); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("invalid day %q", day))
		return
	}

	text, ok, err := s.artifacts.ReadDigest(r.Context(), day)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.Errorf("no digest for %s", day))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"day": day, "text": text})
}

type messageResponse struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	ThreadID  *string   `json:"thread_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// handleMessages lists the messages of one calendar day, today by default
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	from, err := s.dayStart(r.URL.Query().Get("day"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to := from.AddDate(0, 0, 1)

	msgs, err := s.eventRepo.Query(r.Context(), s.config.ChatID, from, to, s.config.ExcludedThreadIDs)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID,
			Author:    m.Author,
			Text:      m.Text,
			ThreadID:  m.ThreadID,
			Timestamp: m.Timestamp,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"day":      from.Format(domain.DateLayout),
		"messages": out,
	})
}

func (s *Server) dayStart(day string) (time.Time, error) {
	if day == "" {
		now := s.now().In(s.config.Location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.config.Location), nil
	}
	t, err := time.ParseInLocation(domain.DateLayout, day, s.config.Location)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid day %q", day)
	}
	return t, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
