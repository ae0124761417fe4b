// Package web wires the HTTP server: router, middleware and scheduled jobs.
package web

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/akellavk/V2RaySub/config"
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web/controller"
	"github.com/akellavk/V2RaySub/web/job"
	"github.com/akellavk/V2RaySub/web/service"
)

// Server is the subscription web server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	sub    *controller.SubController
	server *controller.ServerController

	settingService service.SettingService
	snipoolService service.SniPoolService

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	basePath, err := s.settingService.GetBasePath()
	if err != nil {
		return nil, err
	}

	s.sub = controller.NewSubController(engine.Group(basePath))
	s.server = controller.NewServerController(engine.Group("/"))

	return engine, nil
}

func (s *Server) startTask() error {
	minutes, err := s.settingService.GetSniRefresh()
	if err != nil {
		return err
	}
	if minutes <= 0 {
		return nil
	}
	_, err = s.cron.AddJob(fmt.Sprintf("@every %dm", minutes), job.NewRefreshSniPoolJob())
	return err
}

// Start loads the SNI pool, schedules its refresh and begins serving.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			s.Stop()
		}
	}()

	s.cron = cron.New()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	if err := s.snipoolService.Refresh(); err != nil {
		// Serve with an empty pool rather than refuse to start; the refresh
		// job or a SIGHUP can still bring the pool up later.
		logger.Warning("initial sni pool load failed:", err)
	}

	if err := s.startTask(); err != nil {
		return err
	}
	s.cron.Start()

	listen, err := s.settingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.settingService.GetPort()
	if err != nil {
		return err
	}
	listenAddr := net.JoinHostPort(listen, strconv.Itoa(port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	s.listener = listener

	logger.Infof("%s %s serving subscriptions on %s", config.GetName(), config.GetVersion(), listenAddr)

	s.httpServer = &http.Server{
		Handler: engine,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("web server stopped:", err)
		}
	}()
	return nil
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// RefreshPool re-reads the settings file and refreshes the SNI pool. Wired
// to SIGHUP and POST /reload.
func (s *Server) RefreshPool() error {
	s.settingService.Reload()
	return s.snipoolService.Refresh()
}
