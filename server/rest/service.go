package rest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/nhuphucnguyen/TubeScribe/server/formats"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/download"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/queue"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
)

var youtubeURL = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)

var (
	ErrInvalidURL  = errors.New("invalid YouTube URL")
	ErrFileMissing = errors.New("file not found")
)

// StateError reports a file request against a task that has not
// completed yet.
type StateError struct {
	Status registry.Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("download is not completed: %s", e.Status)
}

type InfoResponse struct {
	DownloadId string           `json:"download_id"`
	Title      string           `json:"title"`
	Formats    []formats.Option `json:"formats"`
}

type Service struct {
	mdb *registry.Store
	mq  *queue.MessageQueue
	eng engine.Engine
	bus EventBus.Bus
}

func NewService(mdb *registry.Store, mq *queue.MessageQueue, eng engine.Engine, bus EventBus.Bus) *Service {
	return &Service{
		mdb: mdb,
		mq:  mq,
		eng: eng,
		bus: bus,
	}
}

func ValidateURL(url string) bool {
	return youtubeURL.MatchString(url)
}

// Info queries the source and builds the selectable format catalog.
// The returned download id is fresh and unused; it is provided for
// client convenience only.
func (s *Service) Info(ctx context.Context, url string) (*InfoResponse, error) {
	if !ValidateURL(url) {
		return nil, ErrInvalidURL
	}

	meta, err := s.eng.Metadata(ctx, url)
	if err != nil {
		return nil, errors.Join(errors.New("failed to get video info"), err)
	}

	title := meta.Title
	if title == "" {
		title = "Unknown Title"
	}

	return &InfoResponse{
		DownloadId: uuid.NewString(),
		Title:      title,
		Formats:    formats.BuildCatalog(meta.Formats),
	}, nil
}

// Start registers a task and publishes its download job, returning
// the new id immediately without waiting on any progress.
func (s *Service) Start(url, formatId string) (string, error) {
	if !ValidateURL(url) {
		return "", ErrInvalidURL
	}

	id := uuid.NewString()

	if _, err := s.mdb.Create(id); err != nil {
		return "", err
	}

	s.mq.Publish(download.New(id, url, formatId, s.mdb, s.eng, s.bus))

	return id, nil
}

func (s *Service) Status(id string) (registry.TaskSnapshot, error) {
	task, err := s.mdb.Get(id)
	if err != nil {
		return registry.TaskSnapshot{}, err
	}

	return task.Snapshot(), nil
}

// File returns the artifact path for a completed task, enforcing the
// lookup/state/missing-artifact error taxonomy.
func (s *Service) File(id string) (string, error) {
	task, err := s.mdb.Get(id)
	if err != nil {
		return "", err
	}

	snap := task.Snapshot()

	if snap.Status != registry.StatusCompleted {
		return "", &StateError{Status: snap.Status}
	}

	if snap.FilePath == "" {
		return "", ErrFileMissing
	}

	if _, err := os.Stat(snap.FilePath); err != nil {
		return "", ErrFileMissing
	}

	return snap.FilePath, nil
}
