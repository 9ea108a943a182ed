package queue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nhuphucnguyen/TubeScribe/server/config"
)

// Job is one unit of background work. Run blocks until the job
// reaches a terminal state; the queue never retries it.
type Job interface {
	GetId() string
	Run(ctx context.Context)
}

// MessageQueue decouples download submission from execution: the
// request path publishes and returns immediately, workers pull and
// run the blocking fetch.
type MessageQueue struct {
	concurrency   int
	downloadQueue chan Job
	ctx           context.Context
	cancel        context.CancelFunc
}

func NewMessageQueue() (*MessageQueue, error) {
	qs := config.Instance().Server.QueueSize
	if qs <= 0 {
		return nil, errors.New("invalid queue size")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &MessageQueue{
		concurrency:   qs,
		downloadQueue: make(chan Job, qs*2),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Publish a download job
func (m *MessageQueue) Publish(j Job) {
	select {
	case m.downloadQueue <- j:
		slog.Info("published download", slog.String("id", j.GetId()))
	case <-m.ctx.Done():
		slog.Warn("queue stopped, dropping download", slog.String("id", j.GetId()))
	}
}

// SetupConsumers spawns the parallel download workers.
func (m *MessageQueue) SetupConsumers() {
	for i := 0; i < m.concurrency; i++ {
		go m.downloadWorker(i)
	}
}

func (m *MessageQueue) downloadWorker(workerId int) {
	for {
		select {
		case <-m.ctx.Done():
			return
		case j := <-m.downloadQueue:
			if j == nil {
				continue
			}

			slog.Info("download worker started",
				slog.Int("worker", workerId),
				slog.String("id", j.GetId()),
			)

			j.Run(m.ctx)

			slog.Info("download worker finished",
				slog.Int("worker", workerId),
				slog.String("id", j.GetId()),
			)
		}
	}
}

func (m *MessageQueue) Stop() {
	m.cancel()
	close(m.downloadQueue)
}
