package httpservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/internal/interface/http/handlers"
	"github.com/arkade-os/lotteryd/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Port     uint32
	Owner    string
	Decimals int32
	Debug    bool
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

type service struct {
	config   Config
	appSvc   application.Service
	adminSvc application.AdminService

	server   *http.Server
	listener net.Listener
}

func NewService(
	config Config, appSvc application.Service, adminSvc application.AdminService,
) (*service, error) {
	if appSvc == nil {
		return nil, fmt.Errorf("missing app service")
	}
	if adminSvc == nil {
		return nil, fmt.Errorf("missing admin service")
	}
	if len(config.Owner) <= 0 {
		return nil, fmt.Errorf("missing owner")
	}
	return &service{config: config, appSvc: appSvc, adminSvc: adminSvc}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %w", err)
	}
	log.Info("started app service")

	listener, err := net.Listen("tcp", s.config.address())
	if err != nil {
		s.appSvc.Stop()
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           NewRouter(s.config, s.appSvc, s.adminSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	log.Infof("http server listening on %s", listener.Addr())
	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Event streams never end on their own.
		if err := s.server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to shutdown http server gracefully")
			_ = s.server.Close()
		}
		log.Info("stopped http server")
	}

	s.appSvc.Stop()
	log.Info("stopped app service")
}

// NewRouter wires every route of the lottery API on a fresh gin engine.
func NewRouter(
	config Config, appSvc application.Service, adminSvc application.AdminService,
) *gin.Engine {
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.HTTPMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := handlers.NewHandler(appSvc, config.Decimals)
	adminHandler := handlers.NewAdminHandler(adminSvc, handler, config.Owner)

	v1 := engine.Group("/v1")
	handler.Register(v1)
	adminHandler.Register(v1.Group("/admin"))

	return engine
}
