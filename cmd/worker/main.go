package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// Worker consumes attendance events from Redis and keeps a running tally per session.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if redisClient == nil {
		log.Fatal("REDIS_ADDR is required for the worker")
	}
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable yet", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "qrattend:events")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	tally := make(map[string]int)
	for msg := range messages {
		if msg.Type != queue.TypeAttendanceMarked {
			continue
		}

		var rec attendance.Record
		if err := msg.Decode(&rec); err != nil {
			log.Printf("decode %s failed: %v", msg.Type, err)
			continue
		}
		tally[rec.SessionID]++
		log.Printf("session %s: %s (%s) present, %d so far", rec.SessionID, rec.StudentName, rec.StudentID, tally[rec.SessionID])
	}

	log.Println("worker stopped")
}
