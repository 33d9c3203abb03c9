package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "medbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = ""
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultSlotTimeZone         = "UTC"
	DefaultDoctorLockTTL        = 30 * time.Second
	DefaultAvailabilityCacheTTL = 30 * time.Second
	DefaultSyncInterval         = 15 * time.Minute
	DefaultSeedSampleDoctors    = false
	DefaultKafkaEnabled         = false

	DefaultPaginationLimit = 100
	DefaultSpecialization  = "General"
)
