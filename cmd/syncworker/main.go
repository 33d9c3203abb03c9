package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"medbook/internal/doctors/cache"
	doctorsrepo "medbook/internal/doctors/repository"
	doctorsservice "medbook/internal/doctors/service"
	doctorsvalidator "medbook/internal/doctors/validator"
	"medbook/internal/events"
	"medbook/internal/syncworker"
	"medbook/pkg/config"
	"medbook/pkg/kafka"
	kafka_config "medbook/pkg/kafka/config"
	kafka_middleware "medbook/pkg/kafka/middleware"

	"github.com/hibiken/asynq"
)

const ServiceName = "sync-worker"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.RedisAddr == "" {
		cfg.Log.Fatal("REDIS_ADDR is required for the sync worker")
	}
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	redisOpt := syncworker.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// sync passes publish nothing
	users := doctorsrepo.NewMongoUserRepository(cfg)
	availabilityService := doctorsservice.NewAvailabilityService(
		doctorsrepo.NewMongoDoctorRepository(cfg, users),
		users,
		doctorsrepo.NewLocker(doctorsrepo.NewDoctorLockRepository(cfg), cfg.DoctorLockTTL, cfg.Log),
		cache.New(cfg.Client.Redis, cfg.AvailabilityCacheTTL),
		events.NoopPublisher{},
		doctorsvalidator.NewDoctorValidator(cfg.Log),
		cfg,
	)

	runner := syncworker.NewRunner(
		redisOpt,
		syncworker.NewWorker(availabilityService, cfg.Log),
		cfg.SyncInterval,
		cfg.SlotLocation,
		cfg.Log,
	)
	if err := runner.Start(); err != nil {
		cfg.Log.Fatal("Failed to start sync worker", "error", err)
	}
	defer runner.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.KafkaEnabled {
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()
		go consumeAvailability(ctx, cfg, queue)
	}

	<-ctx.Done()
	cfg.Log.Info("Shutdown signal received")
}

// consumeAvailability feeds availability events to the trigger until ctx
// is cancelled.
func consumeAvailability(ctx context.Context, cfg *config.Config, queue syncworker.Enqueuer) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	trigger := syncworker.NewTrigger(queue, cfg.SyncInterval, cfg.Log)
	consumer, err := kafka.NewConsumer(kafkaCfg, kafkaCfg.AvailabilityTopic, kafkaCfg.SyncGroupID, trigger.Handle, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	defer consumer.Close()

	if kafkaCfg.EnableMiddleware {
		metrics := kafka_middleware.NewMetrics()
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(metrics.ConsumerMiddleware())
	}

	cfg.Log.Info("Consuming availability events", "topic", kafkaCfg.AvailabilityTopic, "group_id", kafkaCfg.SyncGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Availability consumer stopped", "error", err)
	}
}
