package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"absensi/internal/attendance"
	"absensi/internal/broadcast"
	"absensi/internal/config"
	"absensi/internal/logging"
	"absensi/internal/store"
)

// Worker runs scheduled jobs. Today that is the end-of-day absence
// finalizer, which marks students without a tap as ALFA.
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, "[worker] ", cfg.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.DBDriver == "memory" {
		log.Fatalf("worker needs a shared database, DB_DRIVER=memory is not supported")
	}
	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	// the worker has no subscribers of its own; events reach dashboards
	// through the relay
	hub := broadcast.NewHub(1, logger)
	if cfg.RedisAddr != "" {
		redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer redisClient.Close()
		if !redisClient.Healthy(ctx) {
			logger.Warn("redis not reachable, finalizer events will not reach dashboards", "addr", cfg.RedisAddr)
		}
		// one finalizer run publishes an event per absent student
		hub.SetOutboxSize(4096)
		hub.SetForwarder(broadcast.NewRedisRelay(redisClient.Client, cfg.BroadcastChannel, logger))
	}

	engine := attendance.NewEngine(store.NewStudents(db), store.NewRecords(db), hub,
		attendance.WithCalendar(attendance.NewCalendar(cfg.Location())),
		attendance.WithLogger(logger),
	)

	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	_, err = c.AddFunc(cfg.AbsenceCron, func() {
		runCtx, runCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer runCancel()
		day := engine.Today()
		n, err := engine.FinalizeDay(runCtx, day)
		if err != nil {
			logger.Error("finalize day failed", "day", day.Key(), "inserted", n, "err", err)
		}
	})
	if err != nil {
		log.Fatalf("invalid ABSENCE_CRON %q: %v", cfg.AbsenceCron, err)
	}

	c.Start()
	logger.Info("worker started", "schedule", cfg.AbsenceCron, "timezone", cfg.Timezone)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("worker stopped")
}
