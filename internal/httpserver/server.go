// Package httpserver exposes the training platform over HTTP: the
// exercise catalogue and the stored call recordings with their audio.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scenario"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/store"
)

// RecordingReader is the store surface the API needs.
type RecordingReader interface {
	List() ([]store.Recording, error)
	Get(id string) (store.Recording, error)
	Audio(name string) ([]byte, error)
}

// Server bundles the router and its dependencies.
type Server struct {
	Echo  *echo.Echo
	store RecordingReader
}

// New constructs the HTTP server with routes.
func New(recordings RecordingReader) *Server {
	s := &Server{Echo: newRouter(), store: recordings}

	s.Echo.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	api := s.Echo.Group("/api")
	api.GET("/exercises", s.listExercises)
	api.GET("/recordings", s.listRecordings)
	api.GET("/recordings/:id", s.getRecording)
	api.GET("/recordings/:id/audio/:kind", s.getAudio)

	return s
}

// Start runs the server on addr, blocking until shutdown.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) listExercises(c echo.Context) error {
	return c.JSON(http.StatusOK, scenario.Exercises)
}

func (s *Server) listRecordings(c echo.Context) error {
	recs, err := s.store.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list recordings")
	}
	return c.JSON(http.StatusOK, recs)
}

func (s *Server) getRecording(c echo.Context) error {
	rec, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recording not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load recording")
	}
	return c.JSON(http.StatusOK, rec)
}

// getAudio streams one of the recording's audio blobs. kind is "user" for
// the compressed microphone capture or "ai" for the agent WAV.
func (s *Server) getAudio(c echo.Context) error {
	rec, err := s.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recording not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load recording")
	}

	var name, mime string
	switch c.Param("kind") {
	case "user":
		name, mime = rec.UserAudioFile, "audio/ogg"
	case "ai":
		name, mime = rec.AIAudioFile, "audio/wav"
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown audio kind")
	}
	if name == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no audio for this recording")
	}

	data, err := s.store.Audio(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "audio not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load audio")
	}
	return c.Blob(http.StatusOK, mime, data)
}
