package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prasdika/temukan/internal/application"
	appbriefs "github.com/prasdika/temukan/internal/application/briefs"
	appcases "github.com/prasdika/temukan/internal/application/cases"
	"github.com/prasdika/temukan/internal/config"
	domanalysis "github.com/prasdika/temukan/internal/domain/analysis"
	dombriefs "github.com/prasdika/temukan/internal/domain/briefs"
	domain "github.com/prasdika/temukan/internal/domain/cases"
	"github.com/prasdika/temukan/internal/domain/pipelinelog"
	openaiclient "github.com/prasdika/temukan/internal/infra/ai/openai"
	mysqlp "github.com/prasdika/temukan/internal/infra/db/mysql"
	postgresp "github.com/prasdika/temukan/internal/infra/db/postgres"
	"github.com/prasdika/temukan/internal/infra/httpserver"
	"github.com/prasdika/temukan/internal/infra/mail"
	"github.com/prasdika/temukan/internal/infra/notify"
	"github.com/prasdika/temukan/internal/infra/reid"
	minioStore "github.com/prasdika/temukan/internal/infra/storage"
	"github.com/prasdika/temukan/internal/middleware"
	"github.com/prasdika/temukan/internal/pkg/logger"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zlog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// connect DB sesuai driver
	var (
		db          *sql.DB
		caseRepo    domain.Repository
		resultRepo  domanalysis.Repository
		briefRepo   dombriefs.Repository
		failureRepo pipelinelog.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			zlog.Fatal("postgres connect error", "error", err)
		}
		caseRepo = postgresp.NewCaseRepository(db)
		resultRepo = postgresp.NewResultRepository(db)
		// brief & failure log cuma ada di backend mysql untuk sekarang
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			zlog.Fatal("mysql connect error", "error", err)
		}
		caseRepo = mysqlp.NewCaseRepository(db)
		resultRepo = mysqlp.NewResultRepository(db)
		briefRepo = mysqlp.NewBriefRepository(db)
		failureRepo = mysqlp.NewFailureRepository(db)
	}
	defer db.Close()

	// init minio (evidence store)
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		zlog.Fatal("minio init error", "error", err)
	}

	// init re-id engine client
	reidTimeout := time.Duration(cfg.Reid.RequestTimeoutSeconds) * time.Second
	detector := reid.NewClient(cfg.Reid.Endpoint, reidTimeout)

	// init notifier (optional: tanpa API key, notifikasi dilewati)
	var notifier domanalysis.Notifier
	if cfg.Mail.APIKey != "" {
		sender, err := mail.New(mail.Config{
			APIKey:    cfg.Mail.APIKey,
			FromEmail: cfg.Mail.FromEmail,
			FromName:  cfg.Mail.FromName,
		})
		if err != nil {
			zlog.Fatal("mail init error", "error", err)
		}
		notifier = &notify.Mailer{
			Sender:  sender,
			BaseURL: cfg.App.BaseURL,
			Log:     zlog,
		}
	} else {
		zlog.Warn("mail api key not set, completion notices disabled")
	}

	// init service
	svc := &appcases.Service{
		Repo:          caseRepo,
		Results:       resultRepo,
		Evidence:      store,
		Detector:      detector,
		Notifier:      notifier,
		Failures:      failureRepo,
		Clock:         application.SystemClock{},
		Log:           zlog,
		Threshold:     cfg.Reid.Threshold,
		TopN:          cfg.Reid.TopN,
		DetectTimeout: reidTimeout,
	}

	// init AI brief service (optional)
	var briefSvc *appbriefs.Service
	if cfg.AI.APIKey != "" && briefRepo != nil {
		briefSvc = &appbriefs.Service{
			Client:  openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model),
			Repo:    briefRepo,
			Cases:   caseRepo,
			Results: resultRepo,
			Clock:   application.SystemClock{},
		}
	}

	checkers := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage":  middleware.CheckerFunc(store.Check),
		"reid":     middleware.CheckerFunc(detector.Health),
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, briefSvc, httpserver.Options{
		Log:            zlog,
		APIKeys:        cfg.Auth.APIKeys,
		HealthCheckers: checkers,
		EvidenceURL:    store.URL,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		zlog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", "error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	zlog.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		zlog.Error("shutdown error", "error", err)
	}
}
