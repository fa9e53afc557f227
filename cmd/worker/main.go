package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jurisdesk/jurisdesk/internal/activity"
	"github.com/jurisdesk/jurisdesk/internal/backup"
	"github.com/jurisdesk/jurisdesk/internal/config"
	"github.com/jurisdesk/jurisdesk/internal/db"
	"github.com/jurisdesk/jurisdesk/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	repo := activity.NewRepo(gdb)

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

	// same topology the publisher declares; whoever starts first wins
	dlqQ := cfg.RabbitQueue + ".dlq"
	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		log.Fatal("declare dlq", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(cfg.RabbitQueue+".retry", true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue,
	}); err != nil {
		log.Fatal("declare retry queue", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		log.Fatal("declare queue", zap.Error(err))
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
	)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev rabbitmq.Event
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.Kind == "" {
					log.Warn("bad message", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleEvent(ctx, cfg, repo, ev); err != nil {
					log.Warn("event failed",
						zap.Int("worker", workerID),
						zap.String("kind", ev.Kind),
						zap.Duration("elapsed", time.Since(start)),
						zap.Error(err),
					)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", zap.Int("worker", workerID), zap.Error(err))
				}
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
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleEvent(ctx context.Context, cfg config.Config, repo *activity.Repo, ev rabbitmq.Event) error {
	switch ev.Kind {
	case rabbitmq.KindActivity:
		if ev.Activity == nil {
			return nil
		}
		return repo.Insert(ctx, &activity.Entry{
			EntityType: ev.Activity.EntityType,
			EntityID:   ev.Activity.EntityID,
			Action:     ev.Activity.Action,
			Name:       ev.Activity.Name,
			Details:    ev.Activity.Details,
		})
	case rabbitmq.KindBackup:
		_, err := backup.Snapshot(cfg.DBPath, cfg.BackupDir)
		return err
	default:
		// unknown kinds are acked, not requeued
		return nil
	}
}
