package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance/authz"
	"rollcall/internal/attendance/device"
	"rollcall/internal/attendance/geofence"
	"rollcall/internal/attendance/handler"
	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/attendance/qrtoken"
	"rollcall/internal/attendance/service"
	auditStore "rollcall/internal/attendance/store/audit"
	eventStore "rollcall/internal/attendance/store/event"
	groupStore "rollcall/internal/attendance/store/group"
	recordStore "rollcall/internal/attendance/store/record"
	roleStore "rollcall/internal/attendance/store/role"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/httpserver"
	"rollcall/internal/platform/logger"
	"rollcall/internal/platform/postgres"
	redisplatform "rollcall/internal/platform/redis"
)

// deviceClaimTTL bounds how long a device fingerprint claim survives in
// Redis. It only needs to outlive the widest plausible check-in window; the
// storage constraint is authoritative beyond that.
const deviceClaimTTL = 24 * time.Hour

// main wires stores, validators, service, and transport. Business rules live
// in internal/attendance; nothing here decides anything.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	var (
		events  eventStore.Store
		records recordStore.Store
		entries auditStore.Store
		groups  groupStore.Store
		roles   roleStore.Store
		tx      service.TxRunner
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		events = eventStore.NewPostgres(db)
		records = recordStore.NewPostgres(db)
		entries = auditStore.NewPostgres(db)
		groups = groupStore.NewPostgres(db)
		roles = roleStore.NewPostgres(db)
		tx = newAttendancePostgresTx(db)
		log.Info("using postgres stores")
	} else {
		memRecords := recordStore.NewMemory()
		memEntries := auditStore.NewMemory()
		events = eventStore.NewMemory()
		records = memRecords
		entries = memEntries
		groups = groupStore.NewMemory()
		roles = roleStore.NewMemory()
		tx = service.NewMemoryTx(memRecords, memEntries)
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	guard := device.Guard(device.NoopGuard{})
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		guard = device.NewRedisGuard(redisClient.Client, deviceClaimTTL)
		log.Info("device guard backed by redis")
	}

	m := metrics.New()
	svc := service.New(
		events,
		records,
		entries,
		tx,
		authz.New(cfg.CheckinLeadWindow, cfg.CheckinTrailWindow, groups),
		qrtoken.New(cfg.QRSigningKey, cfg.QRTokenLifetime),
		geofence.New(cfg.MaxPositionAccuracyMeters),
		roles,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithGuard(guard),
	)

	router := chi.NewRouter()
	handler.New(svc, log).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting rollcall", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// Interface checks: the wired stores satisfy the ports the service consumes.
var (
	_ ports.EventRepository        = (eventStore.Store)(nil)
	_ ports.GroupMembershipService = (groupStore.Store)(nil)
	_ ports.TeamRoleService        = (roleStore.Store)(nil)
)
