package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/nhuphucnguyen/TubeScribe/server/archive"
	"github.com/nhuphucnguyen/TubeScribe/server/config"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/engine"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/queue"
	"github.com/nhuphucnguyen/TubeScribe/server/internal/registry"
	"github.com/nhuphucnguyen/TubeScribe/server/logging"
	"github.com/nhuphucnguyen/TubeScribe/server/rest"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

type RunConfig struct {
	App fs.FS
}

type serverConfig struct {
	frontend fs.FS
	mdb      *registry.Store
	mq       *queue.MessageQueue
	eng      engine.Engine
	bus      EventBus.Bus
	archive  *archive.Service
}

func Run(ctx context.Context, rc *RunConfig) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	if conf.Logging.EnableFileLogging {
		logger, err := logging.NewRotableLogger(conf.Logging.LogPath)
		if err != nil {
			return err
		}

		go func() {
			for {
				time.Sleep(time.Hour * 24)
				logger.Rotate()
			}
		}()

		logWriters = append(logWriters, logger)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	dbPath := filepath.Join(conf.Paths.ArchivePath, "bolt.db")

	boltdb, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return err
	}

	archiveService, err := archive.NewService(boltdb)
	if err != nil {
		return err
	}

	bus := EventBus.New()
	if err := archiveService.Subscribe(bus); err != nil {
		return err
	}

	mq, err := queue.NewMessageQueue()
	if err != nil {
		return err
	}
	mq.SetupConsumers()

	if err := os.MkdirAll(conf.DownloadRoot(), 0755); err != nil {
		return err
	}

	scfg := serverConfig{
		frontend: rc.App,
		mdb:      registry.NewStore(),
		mq:       mq,
		eng:      engine.NewCLI(),
		bus:      bus,
		archive:  archiveService,
	}

	srv := newServer(scfg)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("tubescribe started", slog.String("address", address))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		mq.Stop()
		srv.Shutdown(context.Background())
		boltdb.Close()

		// all task downloads are temporary: wipe them, in-flight or not
		if err := os.RemoveAll(conf.DownloadRoot()); err != nil {
			slog.Warn("failed to clean download root", slog.Any("err", err))
		}

		return nil
	})

	return g.Wait()
}

func newServer(c serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	baseUrl := config.Instance().Server.BaseURL
	r.Mount(baseUrl+"/", http.StripPrefix(baseUrl, http.FileServer(http.FS(c.frontend))))

	// REST API handlers
	r.Route("/api", rest.ApplyRouter(&rest.ContainerArgs{
		MDB:    c.mdb,
		MQ:     c.mq,
		Engine: c.eng,
		Bus:    c.bus,
	}))

	// Download history
	r.Route("/archive", archive.ApplyRouter(c.archive))

	return &http.Server{Handler: r}
}
