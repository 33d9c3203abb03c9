package main

import (
	"context"

	"medbook/internal/agenttools"
	appointmentshandler "medbook/internal/appointments/handler"
	appointmentsrepo "medbook/internal/appointments/repository"
	appointmentsservice "medbook/internal/appointments/service"
	appointmentsvalidator "medbook/internal/appointments/validator"
	"medbook/internal/booking/engine"
	bookinghandler "medbook/internal/booking/handler"
	"medbook/internal/doctors/cache"
	doctorshandler "medbook/internal/doctors/handler"
	doctorsrepo "medbook/internal/doctors/repository"
	doctorsservice "medbook/internal/doctors/service"
	doctorsvalidator "medbook/internal/doctors/validator"
	"medbook/internal/events"
	medicineshandler "medbook/internal/medicines/handler"
	medicinesrepo "medbook/internal/medicines/repository"
	medicinesservice "medbook/internal/medicines/service"
	medicinesvalidator "medbook/internal/medicines/validator"
	"medbook/pkg/app"
	"medbook/pkg/config"
	"medbook/pkg/contracts"
	"medbook/pkg/kafka"
	kafka_config "medbook/pkg/kafka/config"
	kafka_middleware "medbook/pkg/kafka/middleware"
)

const ServiceName = "appointments"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Appointments service")

	publisher := initPublisher(cfg)
	health, handlers := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Warn("Failed to close event publisher", "error", err)
		}
	})
	serverApp.SetApp(health, handlers...)
	serverApp.Run()
}

// initPublisher connects the Kafka producers when enabled. Without Kafka
// bookings still commit; nothing downstream hears about them.
func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, events will not be published")
		return events.NoopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	metrics := kafka_middleware.NewMetrics()
	newProducer := func(topic string) *kafka.Producer {
		producer, err := kafka.NewProducer(kafkaCfg, topic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			producer.Use(metrics.ProducerMiddleware())
		}
		return producer
	}

	return events.NewKafkaPublisher(
		newProducer(kafkaCfg.AppointmentsTopic),
		newProducer(kafkaCfg.AvailabilityTopic),
		ServiceName,
	)
}

func initServices(cfg *config.Config, publisher events.Publisher) (contracts.Handler, []contracts.Handler) {
	userRepo := doctorsrepo.NewMongoUserRepository(cfg)
	doctorRepo := doctorsrepo.NewMongoDoctorRepository(cfg, userRepo)
	locker := doctorsrepo.NewLocker(doctorsrepo.NewDoctorLockRepository(cfg), cfg.DoctorLockTTL, cfg.Log)
	availabilityCache := cache.New(cfg.Client.Redis, cfg.AvailabilityCacheTTL)

	availabilityService := doctorsservice.NewAvailabilityService(
		doctorRepo,
		userRepo,
		locker,
		availabilityCache,
		publisher,
		doctorsvalidator.NewDoctorValidator(cfg.Log),
		cfg,
	)

	if cfg.SeedSampleDoctors {
		if n, err := availabilityService.SeedSampleDoctors(context.Background()); err != nil {
			cfg.Log.Warn("Failed to seed sample doctors", "error", err)
		} else if n > 0 {
			cfg.Log.Info("Seeded sample doctors", "count", n)
		}
	}

	appointmentRepo := appointmentsrepo.NewMongoAppointmentRepository(cfg)
	appointmentService := appointmentsservice.NewAppointmentService(
		appointmentRepo,
		publisher,
		appointmentsvalidator.NewAppointmentValidator(cfg.Log),
		cfg,
	)

	bookingEngine := engine.New(
		doctorRepo,
		appointmentRepo,
		locker,
		availabilityCache,
		publisher,
		cfg.SlotCodec(),
		cfg.Log,
	)

	medicineService := medicinesservice.NewMedicineService(
		medicinesrepo.NewMongoMedicineRepository(cfg),
		medicinesrepo.NewMongoPatientRepository(cfg),
		medicinesvalidator.NewMedicineValidator(cfg.Log),
		cfg.SlotCodec(),
		cfg,
	)

	registry := agenttools.NewRegistry(bookingEngine, availabilityService, cfg.Log).WithMedicines(medicineService)

	checks := map[string]doctorshandler.Check{
		"mongo": doctorshandler.MongoCheck(cfg.Client.Mongo),
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = doctorshandler.RedisCheck(cfg.Client.Redis)
	}

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName, "tools", len(registry.Tools()))

	return doctorshandler.NewHealthHandler(checks, cfg.Log), []contracts.Handler{
		doctorshandler.NewDoctorHandler(availabilityService, cfg.Log),
		appointmentshandler.NewAppointmentHandler(appointmentService, cfg.Log),
		bookinghandler.NewBookingHandler(bookingEngine, cfg.Log),
		medicineshandler.NewMedicineHandler(medicineService, cfg.Log),
		agenttools.NewToolHandler(registry, cfg.Log),
	}
}
