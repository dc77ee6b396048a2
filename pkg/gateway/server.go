package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/renderfleet/renderfleet/pkg/cli"
	"github.com/renderfleet/renderfleet/pkg/config"
	"github.com/renderfleet/renderfleet/pkg/metrics"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin    *gin.Engine
	log    *zap.Logger
	config config.Config
	http   *http.Server
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)
	engine.SetHTMLTemplate(webTemplates())

	if len(cfg.Server.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
			log.Sugar().Fatalw("Invalid server.trustedProxies configuration", "error", err)
		}
	}

	if debug {
		// Dev frontend runs on its own port; cookies need credentials.
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:8080"},
				AllowMethods:     []string{"GET", "PUT", "DELETE", "POST", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}),
		)
	}

	engine.NoRoute(serveStatic(cfg.Web.StaticDir))

	s := &Server{
		gin:    engine,
		log:    log,
		config: cfg,
	}

	engine.GET("healthz", s.healthz)
	if cfg.Metrics.IsEnabled() {
		metricsPath := cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		engine.GET(metricsPath, gin.WrapH(metrics.MetricsHandler()))
	}

	s.http = s.buildHTTPServer()

	return s
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// RegisterWeb mounts the operator-facing HTML routes at the engine root.
func (s *Server) RegisterWeb(web *WebController) {
	web.register(s.gin)
}

// Handler exposes the routing tree so in-process tests can serve it without
// binding a port.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until Shutdown is called or the listener fails. A clean
// shutdown is not an error.
func (s *Server) Listen() error {
	var err error
	if s.http.TLSConfig != nil {
		err = s.http.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
	} else {
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) buildHTTPServer() *http.Server {
	timeouts := s.config.Server.GetServerTimeouts()
	srv := &http.Server{
		Addr:              s.config.Server.ListenAddress,
		Handler:           s.gin,
		ReadTimeout:       timeouts.GetReadTimeout(),
		ReadHeaderTimeout: timeouts.GetReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetWriteTimeout(),
		IdleTimeout:       timeouts.GetIdleTimeout(),
		MaxHeaderBytes:    timeouts.GetMaxHeaderBytes(),
	}
	if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		cli.DisableHTTP2(tlsConfig)
		srv.TLSConfig = tlsConfig
	}
	return srv
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
