// Package bootstrap wires together falconerid: config, database pool,
// migrations, the Kubernetes Adapter, Storage Adapter, the Launcher,
// the Reservation Service, the Babysitter and the HTTP server.
// Grounded on the teacher's bootstrap.Server (AMD-AGI-Primus-SaFE Lens
// skills-repository pkg/bootstrap/bootstrap.go): a Server struct built
// once by NewServer, started and stopped by Start/Stop.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/faradayio/falconeri/pkg/api"
	"github.com/faradayio/falconeri/pkg/api/middleware"
	"github.com/faradayio/falconeri/pkg/babysitter"
	"github.com/faradayio/falconeri/pkg/config"
	"github.com/faradayio/falconeri/pkg/database"
	"github.com/faradayio/falconeri/pkg/k8sadapter"
	"github.com/faradayio/falconeri/pkg/launcher"
	"github.com/faradayio/falconeri/pkg/logger/log"
	"github.com/faradayio/falconeri/pkg/metrics"
	"github.com/faradayio/falconeri/pkg/reservation"
	"github.com/faradayio/falconeri/pkg/sqlconn"
	"github.com/faradayio/falconeri/pkg/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Server bundles every falconerid dependency and owns its lifecycle.
type Server struct {
	config     *config.Config
	db         *gorm.DB
	k8s        *k8sadapter.Adapter
	babysitter *babysitter.Babysitter
	httpServer *http.Server
}

// NewServer loads config, opens the database, migrates the schema, and
// wires every domain package together.
func NewServer(configPath string) (*Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := sqlconn.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sqlconn.Migrate(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	restCfg, err := k8sadapter.RestConfig("")
	if err != nil {
		return nil, fmt.Errorf("resolving kubernetes config: %w", err)
	}
	k8s, err := k8sadapter.New(restCfg, cfg.KubeNamespace)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes adapter: %w", err)
	}

	storageFactory, err := newStorageFactory(context.Background())
	if err != nil {
		return nil, fmt.Errorf("building storage backends: %w", err)
	}

	bb := babysitter.New(db, k8s, cfg.Babysitter.TickIntervalOrDefault(), cfg.Babysitter.VanishedJobAfterOrDefault())

	return &Server{
		config:     cfg,
		db:         db,
		k8s:        k8s,
		babysitter: bb,
		httpServer: newHTTPServer(cfg, db, k8s, storageFactory),
	}, nil
}

func newHTTPServer(cfg *config.Config, db *gorm.DB, k8s *k8sadapter.Adapter, storageFactory *storage.Factory) *http.Server {
	jobs := database.NewJobFacade(db)
	reservations := reservation.New(db, k8s)
	l := launcher.New(db, storageFactory, k8s, cfg.InputRoot)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handler := api.NewHandler(jobs, reservations, l)
	api.RegisterRoutes(router, handler,
		middleware.HandleMetrics(),
		middleware.HandleLogging(),
		middleware.BasicAuth(cfg.AdminPassword),
		middleware.HandleErrors(),
	)

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router,
	}
}

// Start runs the Babysitter and the HTTP server. It blocks until the
// HTTP server stops.
func (s *Server) Start() error {
	if err := s.babysitter.Start(context.Background()); err != nil {
		return fmt.Errorf("starting babysitter: %w", err)
	}
	log.Infof("falconerid listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains the HTTP server and halts the Babysitter.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.babysitter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// newStorageFactory registers the gs:// and s3:// backends from
// environment variables, the same override surface the teacher's
// connectDatabase reads host/port/credentials from (AMD-AGI-Primus-SaFE
// Lens skills-repository pkg/bootstrap/bootstrap.go).
func newStorageFactory(ctx context.Context) (*storage.Factory, error) {
	backends := map[string]storage.Backend{}

	gcs, err := storage.NewGCSBackend(ctx)
	if err != nil {
		log.Warnf("gcs backend unavailable, gs:// uris will fail: %v", err)
	} else {
		backends["gs"] = gcs
	}

	s3Backend, err := storage.NewS3Backend(ctx, storage.S3Config{
		Endpoint:        os.Getenv("FALCONERI_S3_ENDPOINT"),
		Region:          os.Getenv("FALCONERI_S3_REGION"),
		AccessKeyID:     os.Getenv("FALCONERI_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("FALCONERI_S3_SECRET_ACCESS_KEY"),
		UsePathStyle:    os.Getenv("FALCONERI_S3_PATH_STYLE") == "true",
	})
	if err != nil {
		log.Warnf("s3 backend unavailable, s3:// uris will fail: %v", err)
	} else {
		backends["s3"] = s3Backend
	}

	return storage.NewFactory(backends), nil
}
