package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/handler"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx := context.Background()

	repo, err := store.Open(ctx, store.Options{
		Backend:       cfg.StoreBackend,
		DatabaseURL:   cfg.DatabaseURL,
		SQLitePath:    cfg.SQLitePath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Printf("store backend: %s", cfg.StoreBackend)
	if cfg.StoreBackend == store.BackendMemory {
		log.Println("WARNING: in-memory store, data will be lost on restart")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	switch {
	case cfg.QueueBackend == "redis" && redisClient != nil:
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:events")
	case cfg.QueueBackend == "redis":
		log.Println("WARNING: QUEUE_BACKEND=redis but REDIS_ADDR not set, attendance events disabled")
	default:
		q = queue.NewInMemory(256)
		// Nobody else can read an in-process queue, so drain it here.
		go drain(ctx, q)
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitStore == "redis" && redisClient != nil {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}

	svc := attendance.NewService(repo, attendance.WithDefaultDuration(cfg.SessionMinutes))
	h := handler.New(svc, q, redisClient, handler.TokenConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:          24 * time.Hour,
	}))

	// Security headers
	r.Use(securityHeaders())

	r.Use(httpmiddleware.RateLimit(limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r)

	// Static pages
	r.StaticFile("/", filepath.Join(cfg.StaticDir, "index.html"))
	r.StaticFile("/student", filepath.Join(cfg.StaticDir, "student.html"))
	r.StaticFile("/instructor", filepath.Join(cfg.StaticDir, "instructor.html"))
	r.Static("/static", cfg.StaticDir)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		log.Printf("Student portal: http://localhost:%s/student", cfg.HTTPPort)
		log.Printf("Instructor portal: http://localhost:%s/instructor", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// drain logs attendance events published to the in-process queue.
func drain(ctx context.Context, q queue.Queue) {
	msgs, err := q.Consume(ctx)
	if err != nil {
		log.Printf("queue consume init failed: %v", err)
		return
	}
	for msg := range msgs {
		var rec attendance.Record
		if err := msg.Decode(&rec); err != nil {
			log.Printf("bad %s message: %v", msg.Type, err)
			continue
		}
		log.Printf("%s: student %s in session %s", msg.Type, rec.StudentID, rec.SessionID)
	}
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
