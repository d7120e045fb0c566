package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"hrleave/internal/domain/audit"
	"hrleave/internal/domain/auth"
	"hrleave/internal/domain/balance"
	"hrleave/internal/domain/employee"
	"hrleave/internal/domain/requests"
	"hrleave/internal/platform/cache"
	"hrleave/internal/platform/config"
	"hrleave/internal/platform/db"
	"hrleave/internal/platform/memstore"
	"hrleave/internal/platform/metrics"
	"hrleave/internal/platform/rbac"
	"hrleave/internal/transport/http/api"
	audithandler "hrleave/internal/transport/http/handlers/audit"
	authhandler "hrleave/internal/transport/http/handlers/auth"
	balancehandler "hrleave/internal/transport/http/handlers/balances"
	departmenthandler "hrleave/internal/transport/http/handlers/departments"
	employeehandler "hrleave/internal/transport/http/handlers/employees"
	requestshandler "hrleave/internal/transport/http/handlers/requests"
	"hrleave/internal/transport/http/middleware"
)

type App struct {
	Config    config.Config
	Router    http.Handler
	Metrics   *metrics.Collector
	Employees *employee.Service

	closers []func()
}

// storage bundles the stores one backend provides.
type storage struct {
	requests  requests.StoreAPI
	employees employee.StoreAPI
	balances  balance.ReadStore
	audit     audit.Store
	ping      func(ctx context.Context) error
	close     func()
}

// New wires the application for cfg. The caller owns the returned App and
// must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomSecret()
		slog.Warn("JWT_SECRET not set, using an ephemeral secret")
	}

	app := &App{Config: cfg, Metrics: metrics.New()}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, st.close)

	rdb, err := cache.NewRedis(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if rdb != nil {
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	}

	perms, err := rbac.New()
	if err != nil {
		app.Close()
		return nil, err
	}

	totals := balance.Totals{
		VacationDays:     cfg.DefaultVacation,
		WFHDays:          cfg.DefaultWFH,
		LateEarlyMinutes: balance.HoursToMinutes(cfg.DefaultLateEarly),
	}
	ledger := balance.NewLedger(totals)

	employeeService := employee.NewService(st.employees, totals)
	authService := auth.NewService(employeeService, cfg.JWTSecret, cfg.TokenTTL)
	balanceService := balance.NewService(st.balances, ledger)
	auditService := audit.New(st.audit)
	requestService := requests.NewService(st.requests, requests.NewCatalog(st.requests, cfg.CatalogTTL), employeeService, ledger)
	requestService.Metrics = app.Metrics
	app.Employees = employeeService

	if cfg.RunSeed {
		if err := seedAdmin(ctx, employeeService, cfg); err != nil {
			app.Close()
			return nil, err
		}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Metrics(app.Metrics))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Idempotency(rdb, cfg.IdempotencyTTL))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", readiness(st.ping, rdb))
	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermMetricsRead, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, app.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authService)
		r.Post("/auth/login", authHandler.HandleLogin)

		employeeHandler := employeehandler.NewHandler(employeeService, perms, auditService)
		employeeHandler.RegisterRoutes(r)

		departmentHandler := departmenthandler.NewHandler(employeeService, perms, auditService)
		departmentHandler.RegisterRoutes(r)

		requestHandler := requestshandler.NewHandler(requestService, perms, auditService)
		requestHandler.RegisterRoutes(r)

		balanceHandler := balancehandler.NewHandler(balanceService, employeeService, perms)
		balanceHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditService, perms)
		auditHandler.RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

// Close releases backend resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func Run() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hrleave server listening", "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "err", err)
		}
	}
}

func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.Store == config.StoreMemory {
		mem := memstore.New()
		for _, rt := range requests.DefaultTypes() {
			mem.PutRequestType(rt)
		}
		slog.Info("using in-memory store")
		return storage{
			requests:  mem,
			employees: mem,
			balances:  mem,
			audit:     mem,
			ping:      mem.Ping,
			close:     func() {},
		}, nil
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return storage{}, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.SeedRequestTypes(ctx, pool); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("seed request types: %w", err)
		}
	}
	return storage{
		requests:  requests.NewStore(pool),
		employees: employee.NewStore(pool),
		balances:  balance.NewPGStore(pool),
		audit:     audit.NewPGStore(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}

// seedAdmin makes sure an HR account exists so a fresh deployment can log in.
func seedAdmin(ctx context.Context, employees *employee.Service, cfg config.Config) error {
	password := cfg.SeedAdminPassword
	if password == "" {
		password = "Hr" + randomSecret()[:12] + "1"
		slog.Warn("SEED_ADMIN_PASSWORD not set, generated one", "email", cfg.SeedAdminEmail, "password", password)
	}
	_, err := employees.Create(ctx, employee.CreateInput{
		EmployeeCode: "HR-0001",
		FirstName:    "HR",
		LastName:     "Admin",
		Email:        cfg.SeedAdminEmail,
		Password:     password,
		IsHR:         true,
	})
	if errors.Is(err, employee.ErrEmailTaken) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("seeded hr admin", "email", cfg.SeedAdminEmail)
	return nil
}

func readiness(ping func(context.Context) error, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
