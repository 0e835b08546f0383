// Package server exposes the settlement core over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	lottery "github.com/kydenul/lotterysim"
)

const (
	// OTPCookie carries the signed one-time-code challenge
	OTPCookie = "edu_otp"

	// SessionCookie carries the signed session token
	SessionCookie = "edu_session"
)

// Options wires a Server
type Options struct {
	Settler       *lottery.Settler
	Authenticator *lottery.Authenticator
	Breaker       *lottery.BreakerBalanceStore // optional, reported by /healthz and /metrics
	Config        *lottery.ServerConfig
	Logger        lottery.Logger
}

// Server is the HTTP front of the simulator
type Server struct {
	settler    *lottery.Settler
	auth       *lottery.Authenticator
	health     *lottery.CircuitBreakerHealthCheck
	config     *lottery.ServerConfig
	logger     lottery.Logger
	errHandler lottery.ErrorHandler
	metrics    *Metrics
	engine     *gin.Engine
}

// New builds the server and its routes
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = lottery.DefaultServerConfig()
	}
	if opts.Logger == nil {
		opts.Logger = &lottery.SilentLogger{}
	}
	if opts.Authenticator == nil {
		opts.Authenticator = lottery.NewAuthenticator(nil, nil, opts.Logger)
	}

	s := &Server{
		settler:    opts.Settler,
		auth:       opts.Authenticator,
		config:     opts.Config,
		logger:     opts.Logger,
		errHandler: lottery.NewDefaultErrorHandler(opts.Logger),
		metrics:    NewMetrics(opts.Settler.GetMonitor(), opts.Breaker),
	}
	if opts.Breaker != nil {
		s.health = lottery.NewCircuitBreakerHealthCheck(opts.Breaker)
	}

	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.metrics.Middleware(), accessLog(s.logger), s.identify())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/start", s.handleAuthStart)
		authGroup.POST("/verify", s.handleAuthVerify)
		authGroup.POST("/logout", s.handleAuthLogout)
		authGroup.GET("/me", s.handleAuthMe)

		coins := api.Group("/coins", s.requireUser())
		coins.GET("/me", s.handleCoinsMe)
		coins.POST("/reset", s.handleCoinsReset)

		api.GET("/draw7", s.handleDraw)

		sim := api.Group("/simulate")
		sim.POST("", s.handlePractice)
		sim.POST("/build", s.requireUser(), s.handleSettle)
		sim.POST("/derive", s.handleDerive)
	}

	return r
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
