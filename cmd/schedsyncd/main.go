package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"schedule-sync-backend/config"
	"schedule-sync-backend/internal/api"
	"schedule-sync-backend/internal/dataaccess"
	"schedule-sync-backend/internal/db"
	"schedule-sync-backend/internal/localstore"
	"schedule-sync-backend/internal/model"
	"schedule-sync-backend/internal/monitor"
	"schedule-sync-backend/internal/mw"
	"schedule-sync-backend/internal/notification"
	"schedule-sync-backend/internal/refresher"
	"schedule-sync-backend/internal/remote"
	"schedule-sync-backend/internal/roster"
	"schedule-sync-backend/internal/syncqueue"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatalf("failed to load configuration from %s", configPath)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithField("level", cfg.Log.Level).Warn("unknown log level; using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	log.WithField("path", configPath).Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localDB, err := db.InitLocal(&cfg.Local)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize local database")
	}
	local := localstore.New(localDB, cfg.Local.SchemaVersion, time.Duration(cfg.Local.CacheTTLSeconds)*time.Second, log)

	gw, err := newGateway(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize remote gateway")
	}
	hub := remote.NewHub()
	publishing := remote.NewPublishing(gw, hub)

	var (
		notifier       roster.Notifier
		webpushOptions *webpush.Options
	)
	if cfg.Push.Enabled {
		if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
			log.Fatal("push is enabled but VAPID keys are not configured")
		}
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, localDB, webpushOptions, log)
		pool.Start(ctx)
		notifier = pool
		local.SetErrorHook(func(key string, err error) {
			pool.Dispatch(notification.Notice{Title: "Local storage failure", Body: fmt.Sprintf("%s: %v", key, err)})
		})
	}

	mon := monitor.New(cfg.Monitor, nil, log)
	queue := syncqueue.New(local, cfg.Sync.ItemTimeout, log)
	facade := dataaccess.New(local, publishing, queue, dataaccess.Options{
		AuditLimit: cfg.Sync.AuditFetchLimit,
		Connected:  mon.Status() == monitor.Online,
	}, log)

	svc := roster.New(facade, notifier, roster.Options{
		UserID:       cfg.Sync.UserID,
		UserAgent:    cfg.Sync.UserAgent,
		HistoryDepth: cfg.Sync.HistoryDepth,
	}, log)
	if err := svc.Load(ctx); err != nil {
		log.WithError(err).Fatal("failed to load working set")
	}

	responses := mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	for _, table := range model.Tables {
		hub.Subscribe(table, func(remote.ChangeEvent) { responses.Purge() })
	}

	reload := func(ctx context.Context) {
		if err := svc.Load(ctx); err != nil {
			log.WithError(err).Warn("reload after reconnect failed")
		}
		responses.Purge()
	}
	mon.OnStatusChange(func(ctx context.Context, status monitor.Status) {
		facade.HandleStatus(ctx, status)
		if status == monitor.Online {
			reload(ctx)
		}
	})
	mon.OnCheck(func(ctx context.Context, status monitor.Status) {
		if facade.Reconcile(ctx, status) {
			reload(ctx)
		}
	})
	go mon.Run(ctx)

	refresh := refresher.NewService(cfg.Sync.RefreshInterval, facade, svc, responses.Purge, log)
	go refresh.Run(ctx)

	handler := api.NewHandler(svc, facade, mon, local, localDB, webpushOptions, log)
	router := api.NewRouter(cfg.Server, handler, responses)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server ListenAndServe")
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("HTTP server Shutdown")
	}

	st := facade.Status()
	log.WithFields(logrus.Fields{"pending": st.Pending, "rejected": st.Rejected}).Info("Server gracefully stopped")
}

// newGateway builds the remote gateway selected by remote.driver.
func newGateway(cfg *config.Config, log logrus.FieldLogger) (remote.Gateway, error) {
	switch cfg.Remote.Driver {
	case "rest":
		if cfg.Remote.BaseURL == "" {
			return nil, errors.New("remote.base_url is required for the rest driver")
		}
		return remote.NewRESTGateway(cfg.Remote, nil, log), nil
	case "postgres":
		remoteDB, err := db.InitRemote(&cfg.Remote)
		if err != nil {
			return nil, err
		}
		return remote.NewGormGateway(remoteDB, log), nil
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.Remote.Driver)
	}
}
