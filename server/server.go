package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"grocery-sync/auth"
	"grocery-sync/confs"
	"grocery-sync/db"
	"grocery-sync/handlers"
	httpHandler "grocery-sync/handlers/http"
	"grocery-sync/metrics"
	"grocery-sync/repositories"
	"grocery-sync/services"
	"grocery-sync/usecases"
	"grocery-sync/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// locationMinDelta is how far, in degrees, a user must move before the cached
// location is written again.
const locationMinDelta = 0.0001

type Server struct {
	cfg *confs.Config
	app *gin.Engine
	db  db.Database

	manager   *ws.Manager
	backplane ws.Backplane
	processor *services.LocationProcessor
	limiter   *httpHandler.RateLimiter
}

// NewServer wires stores, use cases, the realtime manager and every route.
func NewServer(cfg *confs.Config, database db.Database) (*Server, error) {
	s := &Server{
		cfg: cfg,
		app: gin.New(),
		db:  database,
	}

	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	var opts []ws.Option
	if cfg.Redis.URL != "" {
		bp, err := ws.NewRedisBackplane(cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return nil, fmt.Errorf("realtime backplane: %w", err)
		}
		s.backplane = bp
		opts = append(opts, ws.WithBackplane(bp))
		log.WithField("channel", cfg.Redis.Channel).Info("Using redis backplane for realtime fan-out")
	}
	s.manager = ws.NewManager(tokens, opts...)

	// Initialize repositories
	userRepo := repositories.NewUserPgRepository(s.db)
	groceryRepo := repositories.NewGroceryPgRepository(s.db)

	// Initialize use cases
	userUseCase := usecases.NewUserUseCase(userRepo, tokens, s.manager)
	groceryUseCase := usecases.NewGroceryUseCase(groceryRepo, userRepo, s.manager, cfg.OwnerOnly())

	s.processor = services.NewLocationProcessor(userRepo, cfg.LocationFlushInterval, locationMinDelta)
	s.limiter = httpHandler.NewRateLimiter(cfg.Limits.RPS, cfg.Limits.Burst)

	s.app.Use(httpHandler.RequestLogger(), gin.Recovery(), metrics.Middleware())

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	s.app.Use(cors.New(corsConfig))

	s.setupRoutes(tokens,
		httpHandler.NewAuthHandler(userUseCase),
		httpHandler.NewUserHandler(userUseCase),
		httpHandler.NewGroceryHandler(groceryUseCase),
		handlers.NewWSHandler(s.manager, s.processor),
		handlers.NewCacheHandler(s.processor),
	)
	return s, nil
}

func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	authHandler *httpHandler.AuthHandler,
	userHandler *httpHandler.UserHandler,
	groceryHandler *httpHandler.GroceryHandler,
	wsHandler *handlers.WSHandler,
	cacheHandler *handlers.CacheHandler,
) {
	s.app.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})
	s.app.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.app.Group("/v1")
	{
		// Open account routes
		open := api.Group("/user", s.limiter.Middleware())
		{
			open.POST("/signup", authHandler.Signup)
			open.POST("/authenticate", authHandler.Authenticate)
		}

		restricted := api.Group("", httpHandler.RequireAuth(tokens))

		users := restricted.Group("/user")
		{
			users.POST("/updatelocation", userHandler.UpdateLocation)
			users.POST("/updatelastlocation", userHandler.UpdateLocation)
			users.POST("/find", userHandler.Find)
			users.GET("/findall", userHandler.FindAll)
			users.GET("/friends", userHandler.Friends)
		}

		grocery := restricted.Group("/grocery")
		{
			grocery.POST("/add", groceryHandler.Add)
			grocery.POST("/update", groceryHandler.Update)
			grocery.POST("/delete", groceryHandler.Delete)
			grocery.GET("/list", groceryHandler.List)
		}

		realtime := restricted.Group("/realtime")
		{
			realtime.GET("/connections", wsHandler.GetConnections)
			realtime.GET("/locations", cacheHandler.GetCachedLocations)
			realtime.GET("/stats", cacheHandler.GetCacheStats)
		}
	}

	s.app.GET("/ws", wsHandler.HandleWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Manager returns the realtime connection manager.
func (s *Server) Manager() *ws.Manager {
	return s.manager
}

// Run serves until ctx is cancelled, then drains in-flight requests, closes
// realtime sessions and persists cached locations.
func (s *Server) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flushed := s.processor.Start(bgCtx)
	s.limiter.StartCleanup(10*time.Minute, bgCtx.Done())
	go func() {
		if err := s.manager.Run(bgCtx); err != nil {
			log.WithError(err).Error("realtime backplane stopped")
		}
	}()

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	err := srv.Shutdown(shutdownCtx)

	s.manager.Close()
	cancel()
	<-flushed
	if s.backplane != nil {
		_ = s.backplane.Close()
	}
	return err
}
