package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/localchat/internal/audit"
	"github.com/suPer8Hu/localchat/internal/config"
	"github.com/suPer8Hu/localchat/internal/db"
	"github.com/suPer8Hu/localchat/internal/logger"
	"github.com/suPer8Hu/localchat/internal/store/rabbitmq"
	"go.uber.org/zap"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

var errBadMessage = errors.New("bad audit message")

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = log.Sync() }()

	if cfg.RabbitURL == "" {
		log.Fatal("RABBIT_URL is required for the audit worker")
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("connect db", zap.Error(err))
	}
	if err := db.Migrate(gdb, &audit.Event{}); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	repo := audit.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.AuditQueue); err != nil {
		log.Fatal("declare topology", zap.Error(err))
	}

	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", zap.String("queue", cfg.AuditQueue), zap.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				settle(ctx, ch, cfg.AuditQueue, d, handleEvent(ctx, repo, d.Body), wlog)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Error("delivery channel closed")
				close(jobs)
				wg.Wait()
				return
			}
			jobs <- d
		}
	}
}

// handleEvent stores one audit event. Redelivered events are ignored by
// the insert, so handling is idempotent.
func handleEvent(ctx context.Context, repo *audit.Repo, body []byte) error {
	var e audit.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("%w: %v", errBadMessage, err)
	}
	if e.ID == "" || e.Type == "" {
		return fmt.Errorf("%w: missing id or type", errBadMessage)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	return repo.Insert(ctx, &e)
}

// settle acks, retries or dead-letters d depending on err.
func settle(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, err error, log *zap.Logger) {
	if err == nil {
		if aerr := d.Ack(false); aerr != nil {
			log.Warn("ack failed", zap.String("message_id", d.MessageId), zap.Error(aerr))
		}
		return
	}

	attempt := rabbitmq.RetryCount(d)
	if errors.Is(err, errBadMessage) || attempt >= maxRetries {
		log.Error("audit event dead-lettered",
			zap.String("message_id", d.MessageId),
			zap.Int32("attempts", attempt+1),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}

	delay := retryDelay * time.Duration(attempt+1)
	if rerr := rabbitmq.RetryLater(ctx, ch, queue, d, delay); rerr != nil {
		log.Error("schedule retry", zap.String("message_id", d.MessageId), zap.Error(rerr))
		_ = d.Nack(false, false)
		return
	}
	log.Warn("audit event retry scheduled",
		zap.String("message_id", d.MessageId),
		zap.Int32("attempt", attempt+1),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	_ = d.Ack(false)
}
