package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursetrack/internal/attendance"
	"coursetrack/internal/cache"
	"coursetrack/internal/catalog"
	"coursetrack/internal/config"
	"coursetrack/internal/handler"
	"coursetrack/internal/httpmiddleware"
	"coursetrack/internal/queue"
	"coursetrack/internal/store"
	"coursetrack/internal/views"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := func() time.Time { return time.Now().In(cfg.Location) }

	cat, seedRecords, err := catalog.Seed(now())
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if !cfg.SeedDemo {
		seedRecords = nil
	}

	var db *store.DB
	var ledger attendance.Ledger
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		repo := attendance.NewRepository(db.Client)
		if err := repo.Import(ctx, seedRecords); err != nil {
			return fmt.Errorf("import seed records: %w", err)
		}
		ledger = repo
	default:
		mem, err := attendance.NewMemoryLedger(seedRecords...)
		if err != nil {
			return fmt.Errorf("seed ledger: %w", err)
		}
		ledger = mem
	}

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	var summaries *cache.Summaries
	if redisClient.Healthy(ctx) {
		summaries = cache.NewSummaries(redisClient.Client, "", cfg.SummaryTTL)
	} else {
		log.Println("redis not reachable, lecture summaries will not be cached")
	}
	// Keep a nil *Summaries out of the interface.
	var tallyStore cache.TallyStore
	if summaries != nil {
		tallyStore = summaries
	}

	var q queue.Queue
	if cfg.QueueBackend == config.BackendRedis {
		q = queue.NewRedisQueue(redisClient.Client, "")
	} else {
		q = queue.NewInMemory(64)
		// No separate worker can reach an in-process queue, so refresh here.
		msgs, err := q.Consume(ctx)
		if err != nil {
			return fmt.Errorf("consume queue: %w", err)
		}
		go cache.NewRefresher(ledger, tallyStore).Run(ctx, msgs)
	}

	svc := attendance.NewService(cat, ledger, q, now)
	proj := views.NewProjector(cat, ledger, now)
	h := handler.New(cat, svc, proj, q, handler.AuthConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
	}, now).WithTallies(cache.NewTallies(ledger, tallyStore))

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok", "ledger": cfg.LedgerBackend}
		status := http.StatusOK
		if db != nil {
			dbHealthy := db.Healthy(c.Request.Context())
			body["db"] = dbHealthy
			if !dbHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if cfg.QueueBackend == config.BackendRedis {
			redisHealthy := redisClient.Healthy(c.Request.Context())
			body["redis"] = redisHealthy
			if !redisHealthy {
				status = http.StatusServiceUnavailable
			}
		}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		c.JSON(status, body)
	})

	h.Register(r, httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (ledger=%s, queue=%s)", cfg.HTTPPort, cfg.LedgerBackend, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
