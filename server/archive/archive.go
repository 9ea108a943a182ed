// Package archive keeps a persistent history of completed downloads.
// Task state itself is never persisted; only terminal results land
// here, and only when auto_archive is enabled.
package archive

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/nhuphucnguyen/TubeScribe/server/config"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/download"

	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("archive")

type Entity struct {
	Id         string    `json:"id"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	ArchivedAt time.Time `json:"archived_at"`
}

type Service struct {
	db *bolt.DB
}

func NewService(db *bolt.DB) (*Service, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Service{db: db}, nil
}

func (s *Service) Archive(e *Entity) error {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	if e.ArchivedAt.IsZero() {
		e.ArchivedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(e.Id), data)
	})
}

func (s *Service) All() ([]Entity, error) {
	entries := make([]Entity, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.ForEach(func(k, v []byte) error {
			var e Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Service) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Delete([]byte(id))
	})
}

// Subscribe wires the service to the task lifecycle bus. Completed
// downloads with a located artifact are archived when auto_archive
// is on; everything else is ignored.
func (s *Service) Subscribe(bus EventBus.Bus) error {
	return bus.Subscribe(download.TopicCompleted, func(e *download.CompletedEvent) {
		if !config.Instance().Archive.AutoArchive {
			return
		}
		if e.Path == "" {
			return
		}

		slog.Info("archiving completed download",
			slog.String("title", e.Title),
			slog.String("source", e.Source),
		)

		if err := s.Archive(&Entity{
			Id:     e.Id,
			Title:  e.Title,
			Source: e.Source,
			Path:   e.Path,
		}); err != nil {
			slog.Error("failed to archive download", slog.Any("err", err))
		}
	})
}
