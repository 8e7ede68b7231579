package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"absensi/internal/attendance"
	"absensi/internal/auth"
	"absensi/internal/broadcast"
	"absensi/internal/cloudinary"
	"absensi/internal/config"
	"absensi/internal/handler"
	"absensi/internal/httpmiddleware"
	"absensi/internal/logging"
	"absensi/internal/photo"
	"absensi/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// backend is the storage selected by DB_DRIVER.
type backend struct {
	students attendance.StudentDirectory
	records  attendance.RecordStore
	users    auth.UserStore
	db       *store.DB
}

func openBackend(ctx context.Context, cfg config.App, logger logging.Logger) (*backend, error) {
	if cfg.DBDriver == "memory" {
		mem := attendance.NewMemoryStore()
		users := auth.NewMemoryUsers()
		// nothing persists, so the default accounts are created on boot
		for _, acc := range []struct{ name, pass, role string }{
			{"admin", cfg.AdminPassword, auth.RoleAdmin},
			{"guru", cfg.GuruPassword, auth.RoleGuru},
		} {
			u, err := auth.NewUser(acc.name, acc.pass, acc.role)
			if err != nil {
				return nil, err
			}
			if _, err := users.SaveUser(ctx, u); err != nil {
				return nil, err
			}
		}
		logger.Warn("using in-memory storage, data is lost on restart")
		return &backend{students: mem, records: mem, users: users}, nil
	}

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		students: store.NewStudents(db),
		records:  store.NewRecords(db),
		users:    store.NewUsers(db),
		db:       db,
	}, nil
}

func newLogger(cfg config.App) (logging.Logger, func()) {
	var logger logging.Logger = logging.New(os.Stdout, "", cfg.Debug)
	if cfg.RollbarToken == "" {
		return logger, func() {}
	}
	host, _ := os.Hostname()
	rb := logging.NewRollbar(logger, logging.RollbarConfig{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		ServerHost:  host,
	})
	return rb, rb.Flush
}

func newPhotoStore(cfg config.App, logger logging.Logger) attendance.PhotoStore {
	if cfg.PhotoBackend == "cloudinary" {
		if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
			client := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
			logger.Info("photos stored on cloudinary", "cloud", cfg.CloudinaryCloudName)
			return photo.NewCloudinary(client, logger)
		}
		logger.Warn("cloudinary not configured, falling back to local photos")
	}
	return photo.NewLocal(cfg.PhotoDir, cfg.PhotoURLPrefix, logger)
}

func runHTTP(cfg config.App) error {
	logger, flush := newLogger(cfg)
	defer flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = be.db.Close() }()

	hub := broadcast.NewHub(cfg.SubscriberBuffer, logger)

	engine := attendance.NewEngine(be.students, be.records, hub,
		attendance.WithCalendar(attendance.NewCalendar(cfg.Location())),
		attendance.WithPhotoStore(newPhotoStore(cfg, logger)),
		attendance.WithPhotoTimeout(cfg.PhotoTimeout),
		attendance.WithLogger(logger),
	)
	hub.OnRemote(engine.FollowRemote)

	var redisClient *store.Redis
	if cfg.RedisAddr != "" {
		redisClient = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer func() { _ = redisClient.Close() }()
		relay := broadcast.NewRedisRelay(redisClient.Client, cfg.BroadcastChannel, logger)
		hub.SetForwarder(relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				logger.Error("broadcast relay stopped", "err", err)
			}
		}()
	}

	authSvc := auth.NewService(be.users, cfg.JWTIssuer, cfg.JWTSecret, cfg.SessionTTL)
	h := handler.New(engine, authSvc, logger, cfg.Production())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	corsConf := cors.DefaultConfig()
	corsConf.AllowOriginFunc = func(string) bool { return true }
	corsConf.AllowCredentials = true
	corsConf.AddAllowHeaders("Authorization")
	corsConf.MaxAge = 24 * time.Hour
	r.Use(cors.New(corsConf))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.RequestMetrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := be.db == nil || be.db.Healthy(c.Request.Context())
		redisHealthy := redisClient == nil || redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy, "subscribers": hub.Len()})
	})

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Mount(r, handler.Routes{
		Session: auth.RequireSession(cfg.JWTSecret, cfg.JWTIssuer),
		Limit:   limiter.Middleware(),
		Live:    broadcast.ServeWS(hub, logger),
	})

	if cfg.PhotoBackend != "cloudinary" {
		r.Static(cfg.PhotoURLPrefix, cfg.PhotoDir)
	}
	r.StaticFile("/", cfg.WebDir+"/index.html")
	r.Static("/static", cfg.WebDir+"/static")

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "db", cfg.DBDriver, "timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "err", err)
	}

	logger.Info("server exited")
	return nil
}
