package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"attendmate/internal/attendance"
	"attendmate/internal/config"
	"attendmate/internal/queue"
	"attendmate/internal/session"
	"attendmate/internal/store"
)

// Worker closes sessions past their scheduled end and folds check-in events
// into live per-session presence counters.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendmate:events")
	}

	cache := session.NewActiveCache(redisClient.Client, cfg.SessionCacheTTL)
	sessions := session.NewManager(session.NewPostgresRepository(db.Client), cache, q)

	go reapLoop(ctx, sessions, cfg.ReapInterval)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for events...")
	for msg := range messages {
		switch msg.Type {
		case attendance.EventCheckinRecorded:
			handleCheckin(ctx, redisClient.Client, msg.Body)
		case session.EventSessionClosed:
			handleClosed(ctx, redisClient.Client, msg.Body)
		}
	}

	log.Println("worker stopped")
}

// reapLoop enforces the automatic timeout: active sessions whose scheduled
// end has passed transition to closed.
func reapLoop(ctx context.Context, sessions *session.Manager, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := sessions.CloseExpired(ctx)
			if err != nil {
				log.Printf("close expired sessions failed: %v", err)
				continue
			}
			for _, s := range closed {
				log.Printf("session %s (class %s) closed by timeout", s.ID, s.ClassID)
			}
		}
	}
}

func liveKey(sessionID string) string { return "attendmate:live:" + sessionID }

func handleCheckin(ctx context.Context, client *redis.Client, body []byte) {
	var evt attendance.RecordedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Printf("bad %s payload: %v", attendance.EventCheckinRecorded, err)
		return
	}
	key := liveKey(evt.SessionID)
	if err := client.SAdd(ctx, key, evt.StudentID).Err(); err != nil {
		log.Printf("live counter update failed for session %s: %v", evt.SessionID, err)
		return
	}
	client.Expire(ctx, key, 12*time.Hour)
}

func handleClosed(ctx context.Context, client *redis.Client, body []byte) {
	var evt session.ClosedEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Printf("bad %s payload: %v", session.EventSessionClosed, err)
		return
	}
	if err := client.Del(ctx, liveKey(evt.SessionID)).Err(); err != nil {
		log.Printf("live counter cleanup failed for session %s: %v", evt.SessionID, err)
	}
}
