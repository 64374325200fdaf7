// Package store persists finished call recordings on disk. Each recording
// is a JSON metadata document plus the two audio blobs next to it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scenario"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/scoring"
	"github.com/atipikalmanagement-cloud/plataformafdr/internal/session"
)

// ErrNotFound is returned when a recording id does not exist.
var ErrNotFound = errors.New("recording not found")

// Recording is the stored outcome of one training call.
type Recording struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	Date       time.Time              `json:"date"`
	Exercise   scenario.Exercise      `json:"exercise"`
	Difficulty scenario.Difficulty    `json:"difficulty"`
	Transcript []session.Entry        `json:"transcript"`
	Analysis   scoring.AnalysisResult `json:"analysis"`
	// Relative file names of the audio blobs inside the store directory.
	UserAudioFile string `json:"userAudioFile,omitempty"`
	AIAudioFile   string `json:"aiAudioFile,omitempty"`
}

// Archive mirrors blobs to remote object storage.
type Archive interface {
	Upload(objectKey string, contentType string, body []byte) error
}

// FileStore keeps recordings under a single directory. With an Archive
// attached, saved files are also mirrored remotely, best effort.
type FileStore struct {
	dir     string
	archive Archive
}

// NewFileStore opens (and creates if needed) the store directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SetArchive attaches remote mirroring for subsequently saved recordings.
func (s *FileStore) SetArchive(a Archive) { s.archive = a }

// Save assigns the recording an id and writes metadata and audio. The
// audio slices may be empty; only non-empty blobs produce files.
func (s *FileStore) Save(rec Recording, userAudio, aiAudio []byte) (Recording, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Date.IsZero() {
		rec.Date = time.Now().UTC()
	}

	if len(userAudio) > 0 {
		rec.UserAudioFile = rec.ID + "_user.ogg"
		if err := os.WriteFile(filepath.Join(s.dir, rec.UserAudioFile), userAudio, 0o644); err != nil {
			return Recording{}, fmt.Errorf("write user audio: %w", err)
		}
	}
	if len(aiAudio) > 0 {
		rec.AIAudioFile = rec.ID + "_ai.wav"
		if err := os.WriteFile(filepath.Join(s.dir, rec.AIAudioFile), aiAudio, 0o644); err != nil {
			return Recording{}, fmt.Errorf("write ai audio: %w", err)
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Recording{}, err
	}
	if err := os.WriteFile(s.metaPath(rec.ID), data, 0o644); err != nil {
		return Recording{}, fmt.Errorf("write metadata: %w", err)
	}

	if s.archive != nil {
		// Local save already succeeded; a failed mirror only logs.
		if rec.UserAudioFile != "" {
			if err := s.archive.Upload(rec.UserAudioFile, "audio/ogg", userAudio); err != nil {
				log.Printf("Archive upload failed for %s: %v", rec.UserAudioFile, err)
			}
		}
		if rec.AIAudioFile != "" {
			if err := s.archive.Upload(rec.AIAudioFile, "audio/wav", aiAudio); err != nil {
				log.Printf("Archive upload failed for %s: %v", rec.AIAudioFile, err)
			}
		}
		if err := s.archive.Upload(rec.ID+".json", "application/json", data); err != nil {
			log.Printf("Archive upload failed for %s.json: %v", rec.ID, err)
		}
	}
	return rec, nil
}

// Get loads one recording's metadata.
func (s *FileStore) Get(id string) (Recording, error) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Recording{}, ErrNotFound
		}
		return Recording{}, err
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return Recording{}, fmt.Errorf("corrupt recording %s: %w", id, err)
	}
	return rec, nil
}

// List returns all recordings, newest first.
func (s *FileStore) List() ([]Recording, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	recs := make([]Recording, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// Skip unreadable entries rather than failing the whole listing.
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.After(recs[j].Date) })
	return recs, nil
}

// Audio returns one stored audio blob by its relative file name.
func (s *FileStore) Audio(name string) ([]byte, error) {
	if name != filepath.Base(name) || name == "" {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FileStore) metaPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}
