package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livecodeshare-server/config"
	"livecodeshare-server/core"
	"livecodeshare-server/handlers/api/health"
	roomsapi "livecodeshare-server/handlers/api/rooms"
	"livecodeshare-server/handlers/websocket"
	"livecodeshare-server/metrics"
	"livecodeshare-server/presence"
	"livecodeshare-server/rooms"
	"livecodeshare-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func setupRouter(cfg *config.Config, store *rooms.Store, roomRegistry core.RoomRegistry, checker *health.Checker, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: !cfg.AllowAllOrigins(),
		MaxAge:           300,
	}
	if cfg.AllowAllOrigins() {
		corsOptions.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOptions))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Socket.io server is running"))
	})
	r.Get("/health", checker.HandleHealth())
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", roomsapi.HandleList(store, roomRegistry))
		r.Post("/", roomsapi.HandleCreate())
		r.Delete("/{roomId}", roomsapi.HandleDelete(roomRegistry))
	})

	return r
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(lvl)

	if format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func waitForShutdown() <-chan os.Signal {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	return signalC
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	roomRegistry, err := stores.GetRoomRegistry(cfg.StorageType, cfg.DataSourceName)
	if err != nil {
		return err
	}
	if closer, ok := roomRegistry.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close room registry")
			}
		}()
	}

	m := metrics.New(metrics.DefaultNamespace)
	store := rooms.NewStore(
		rooms.WithGracePeriod(cfg.RoomCleanupDelay),
		rooms.WithDefaultLanguage(cfg.DefaultLanguage),
		rooms.WithCreateHook(m.RoomCreated),
		rooms.WithRemoveHook(m.RoomReaped),
	)

	ioo := websocket.NewServer(websocket.Options{
		PingTimeout:       cfg.PingTimeout,
		PingInterval:      cfg.PingInterval,
		MaxHttpBufferSize: cfg.MaxHttpBufferSize,
		CORSOrigins:       cfg.CORSOrigins,
	})
	sockets := websocket.NewEmitter(ioo)
	engine := presence.NewEngine(store, presence.NewRegistry(), sockets, presence.WithObserver(m))
	m.WatchGauges(
		func() int { return engine.Stats().Rooms },
		func() int { return engine.Stats().Connections },
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	activity := websocket.NewActivityRecorder(roomRegistry, 0)
	go activity.Run(ctx)
	websocket.NewHandler(engine, activity).Bind(ioo, sockets)

	checker := health.NewChecker(func() (int, int) {
		stats := engine.Stats()
		return stats.Rooms, stats.Connections
	})

	r := setupRouter(cfg, store, roomRegistry, checker, m)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	logrus.WithFields(logrus.Fields{
		"addr":     cfg.Listen,
		"instance": checker.Instance(),
	}).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("start server: %w", err)
	case s := <-waitForShutdown():
		logrus.WithField("signal", s.String()).Info("Shutting down...")
	case <-ctx.Done():
	}

	checker.Drain()
	ioo.Close(nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logrus.Info("Server stopped")
	return nil
}

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "livecodeshare-server",
		Short:         "Real-time collaborative code editing server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotenv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("listen", ":3001", "Set the server listen address")
	flags.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("log_level", flags.Lookup("loglevel"))

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the collaboration server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	})

	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
