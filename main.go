package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"toll-calculator/internal/audit"
	"toll-calculator/internal/auth"
	"toll-calculator/internal/holiday"
	"toll-calculator/internal/observability/metrics"
	tollapp "toll-calculator/internal/toll/application"
	toll "toll-calculator/internal/toll/domain"
	rules "toll-calculator/internal/toll/infrastructure/rules"
	tollhttp "toll-calculator/internal/toll/interfaces/http"
)

const requestIDHeader = "X-Request-ID"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}
	holidays, err := buildHolidays(cfg)
	if err != nil {
		logger.Fatalf("holiday calendar error: %v", err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer redisClient.Close()
	}

	provider, err := buildProvider(cfg, db, redisClient)
	if err != nil {
		logger.Fatalf("rules provider error: %v", err)
	}
	store, err := tollapp.NewRuleStore(provider, toll.DefaultRuleSet(),
		tollapp.WithFetchTimeout(cfg.RulesFetchTimeout),
		tollapp.WithRetryBackoff(cfg.RulesRetryBackoff),
		tollapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("rule store error: %v", err)
	}
	metrics.Init(store)

	service, err := tollapp.NewCalculationService(store, holidays, logger)
	if err != nil {
		logger.Fatalf("calculation service error: %v", err)
	}

	var auditLogger audit.Logger = audit.NewStdLogger(logger)
	if db != nil {
		auditLogger = audit.NewRepository(db)
	}

	var refresher tollhttp.RuleRefresher
	if provider != nil {
		refresher = store
	}
	handler, err := tollhttp.NewHandler(service, refresher,
		tollhttp.WithLocation(location),
		tollhttp.WithCurrency(cfg.Currency),
		tollhttp.WithAuditLogger(auditLogger),
		tollhttp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("toll handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if provider != nil {
		if _, err := store.Refresh(ctx); err != nil {
			logger.Printf("initial rules fetch error, serving default rules: %v", err)
		}
	}
	go tollapp.NewRefresher(store, cfg.RulesRefreshInterval, logger).Start(ctx)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if authMiddleware == nil {
		logger.Printf("AUTH_JWT_SECRET not set, auth disabled")
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestIDMiddleware(loggingMiddleware(authMiddleware.Wrap(mux), logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s (rules source %s)", cfg.HTTPAddr, cfg.RulesSource)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}

func buildHolidays(cfg config) (holiday.Calendar, error) {
	base, err := holiday.ByName(cfg.HolidayCalendar)
	if err != nil {
		return nil, err
	}
	if len(cfg.ExtraHolidays) == 0 {
		return base, nil
	}
	extra, err := holiday.ParseDates(strings.Join(cfg.ExtraHolidays, ","))
	if err != nil {
		return nil, err
	}
	return holiday.Union{base, extra}, nil
}

// buildProvider returns nil for the static source.
func buildProvider(cfg config, db *sql.DB, redisClient *redis.Client) (tollapp.RuleProvider, error) {
	switch cfg.RulesSource {
	case rulesSourceFile:
		provider, err := rules.NewFileProvider(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case rulesSourceHTTP:
		var opts []rules.HTTPOption
		if cfg.RulesToken != "" {
			opts = append(opts, rules.WithBearerToken(cfg.RulesToken))
		}
		provider, err := rules.NewHTTPProvider(cfg.RulesURL, opts...)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case rulesSourcePostgres:
		if db == nil {
			return nil, errors.New("postgres rules source without database")
		}
		return rules.NewPostgresProvider(db, rules.WithRuleSetName(cfg.RulesSetName)), nil
	case rulesSourceRedis:
		if redisClient == nil {
			return nil, errors.New("redis rules source without REDIS_ADDR")
		}
		provider, err := rules.NewRedisProvider(redisClient, cfg.RulesRedisKey)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, nil
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s id=%s", r.Method, r.URL.Path, resp.status, time.Since(start), r.Header.Get(requestIDHeader))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
