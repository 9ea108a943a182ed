// Package download owns the asynchronous lifecycle of a single
// download task, from registry record to terminal state.
package download

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/nhuphucnguyen/TubeScribe/server/config"
	"github.com/nhuphucnguyen/TubeScribe/server/formats"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
)

// Lifecycle topics published on the event bus.
const (
	TopicCompleted = "task:completed"
	TopicFailed    = "task:failed"
)

// CompletedEvent is the payload published on TopicCompleted.
type CompletedEvent struct {
	Id     string
	Title  string
	Source string
	Path   string
}

// FailedEvent is the payload published on TopicFailed.
type FailedEvent struct {
	Id     string
	Source string
	Error  string
}

// Download runs one task to completion. Its registry record is the
// only cross-goroutine state it touches; nothing else is shared.
type Download struct {
	Id       string
	URL      string
	FormatId string

	mdb *registry.Store
	eng engine.Engine
	bus EventBus.Bus
}

func New(id, url, formatId string, mdb *registry.Store, eng engine.Engine, bus EventBus.Bus) *Download {
	return &Download{
		Id:       id,
		URL:      url,
		FormatId: formatId,
		mdb:      mdb,
		eng:      eng,
		bus:      bus,
	}
}

func (d *Download) GetId() string { return d.Id }

// Run performs the blocking fetch, feeding progress into the task
// record, then reconciles the output path and finalizes status.
// Any failure lands in the record; nothing propagates.
func (d *Download) Run(ctx context.Context) {
	task, err := d.mdb.Get(d.Id)
	if err != nil {
		slog.Error("download started for unregistered task", slog.String("id", d.Id))
		return
	}

	// each task downloads into its own subdirectory so concurrent
	// tasks with identical titles cannot collide
	dir := filepath.Join(config.Instance().DownloadRoot(), d.Id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		d.fail(task, errors.Join(errors.New("failed to create download directory"), err))
		return
	}

	predicted, err := d.eng.Download(ctx, engine.DownloadRequest{
		URL:       d.URL,
		Format:    formats.Resolve(d.FormatId),
		OutputDir: dir,
	}, func(p engine.Progress) {
		d.observeProgress(task, p)
	})

	if err != nil {
		d.fail(task, err)
		return
	}

	path := LocateArtifact(predicted, dir)
	if path == "" {
		slog.Warn("download finished but no artifact was found",
			slog.String("id", d.Id),
			slog.String("predicted", predicted),
		)
	}

	task.Complete(path)

	slog.Info("download completed",
		slog.String("id", d.Id),
		slog.String("path", path),
	)

	if d.bus != nil {
		d.bus.Publish(TopicCompleted, &CompletedEvent{
			Id:     d.Id,
			Title:  titleOf(path),
			Source: d.URL,
			Path:   path,
		})
	}
}

func (d *Download) observeProgress(task *registry.Task, p engine.Progress) {
	switch p.Phase {
	case engine.PhaseDownloading:
		total := p.TotalBytes
		if total <= 0 {
			total = p.TotalBytesEstimate
		}
		if total <= 0 {
			return // neither total known, progress stays put
		}

		pct := float64(p.DownloadedBytes) / float64(total) * 100
		task.SetProgress(math.Round(pct*100) / 100)

	case engine.PhaseFinished:
		task.MarkProcessing()
	}
}

func (d *Download) fail(task *registry.Task, err error) {
	task.Fail(err.Error())

	slog.Error("download failed",
		slog.String("id", d.Id),
		slog.String("url", d.URL),
		slog.Any("err", err),
	)

	if d.bus != nil {
		d.bus.Publish(TopicFailed, &FailedEvent{
			Id:     d.Id,
			Source: d.URL,
			Error:  err.Error(),
		})
	}
}

// LocateArtifact reconciles the engine's predicted output path with
// what actually landed on disk. A remux changes the extension, so
// when the predicted file is missing the task directory is searched
// for any file sharing the predicted base name. Returns "" when
// nothing matches.
func LocateArtifact(predicted, dir string) string {
	if predicted == "" {
		return ""
	}

	if _, err := os.Stat(predicted); err == nil {
		return predicted
	}

	base := strings.TrimSuffix(filepath.Base(predicted), filepath.Ext(predicted))

	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}

	return matches[0]
}

func titleOf(path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
