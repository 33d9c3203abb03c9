package main

import (
	"context"
	"flag"
	"time"

	"medbook/internal/doctors/cache"
	doctorsrepo "medbook/internal/doctors/repository"
	doctorsservice "medbook/internal/doctors/service"
	doctorsvalidator "medbook/internal/doctors/validator"
	"medbook/internal/events"
	mongoMigration "medbook/internal/migrations/mongo"
	"medbook/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	seed := flag.Bool("seed", false, "insert the sample doctors when the doctors collection is empty")
	linkUsers := flag.Bool("link-users", true, "create doctors records for doctor accounts that lack one")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	if !*seed && !*linkUsers && !cfg.SeedSampleDoctors {
		cfg.Log.Info("Migration completed")
		return
	}

	users := doctorsrepo.NewMongoUserRepository(cfg)
	service := doctorsservice.NewAvailabilityService(
		doctorsrepo.NewMongoDoctorRepository(cfg, users),
		users,
		doctorsrepo.NewLocker(doctorsrepo.NewDoctorLockRepository(cfg), cfg.DoctorLockTTL, cfg.Log),
		cache.NoopCache{},
		events.NoopPublisher{},
		doctorsvalidator.NewDoctorValidator(cfg.Log),
		cfg,
	)

	if *linkUsers {
		report, err := service.MigrateDoctorUsers(ctx)
		if err != nil {
			cfg.Log.Fatal("Doctor account migration failed", "error", err)
		}
		cfg.Log.Info("Doctor accounts linked",
			"users", report.Users,
			"inserted", report.Inserted,
			"updated", report.Updated,
			"failed", report.Failed,
		)
	}

	if *seed || cfg.SeedSampleDoctors {
		n, err := service.SeedSampleDoctors(ctx)
		if err != nil {
			cfg.Log.Fatal("Seeding sample doctors failed", "error", err)
		}
		cfg.Log.Info("Sample doctors seeded", "count", n)
	}

	cfg.Log.Info("Migration completed")
}
