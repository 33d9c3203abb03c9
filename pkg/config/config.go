package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"medbook/pkg/client"
	"medbook/pkg/logger"
	"medbook/pkg/slot"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	AgentToolSecret string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SlotTimeZone         string
	SlotLocation         *time.Location
	DoctorLockTTL        time.Duration
	AvailabilityCacheTTL time.Duration
	SyncInterval         time.Duration
	SeedSampleDoctors    bool
	KafkaEnabled         bool

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		AgentToolSecret: getEnvStr(EnvAgentToolSecret, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SlotTimeZone:         getEnvStr(EnvSlotTimeZone, DefaultSlotTimeZone),
		DoctorLockTTL:        getEnvDuration(EnvDoctorLockTTL, DefaultDoctorLockTTL),
		AvailabilityCacheTTL: getEnvDuration(EnvAvailabilityCacheTTL, DefaultAvailabilityCacheTTL),
		SyncInterval:         getEnvDuration(EnvSyncInterval, DefaultSyncInterval),
		SeedSampleDoctors:    getEnvBool(EnvSeedSampleDoctors, DefaultSeedSampleDoctors),
		KafkaEnabled:         getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the optional availability cache. Without REDIS_ADDR the
// service runs uncached.
func (cfg *Config) SetRedis() {
	if cfg.RedisAddr == "" {
		cfg.Log.Info("Redis address not set, availability cache disabled")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// SlotCodec returns a codec anchored to the configured slot time zone and
// the wall clock.
func (cfg *Config) SlotCodec() *slot.Codec {
	return slot.NewCodec(cfg.SlotLocation, time.Now)
}

var (
	mongoSchemePattern     = regexp.MustCompile(`^mongodb(\+srv)?://`)
	mongoCredentialPattern = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

// Validate collects every problem rather than stopping at the first, and
// resolves SlotLocation as a side effect.
func (cfg *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		add("Port must be between 1 and 65535, got: %s", cfg.Port)
	}

	switch {
	case cfg.MongoURI == "":
		add("MongoURI cannot be empty")
	case !mongoSchemePattern.MatchString(cfg.MongoURI):
		add("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		add("MongoDatabaseName cannot be empty")
	}

	loc, err := time.LoadLocation(cfg.SlotTimeZone)
	if err != nil {
		add("SlotTimeZone must be a valid IANA zone, got: %s", cfg.SlotTimeZone)
	}
	cfg.SlotLocation = loc

	if cfg.RedisDB < 0 {
		add("RedisDB cannot be negative, got: %d", cfg.RedisDB)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"DoctorLockTTL", cfg.DoctorLockTTL},
		{"AvailabilityCacheTTL", cfg.AvailabilityCacheTTL},
	}
	for _, d := range durations {
		if d.value <= 0 {
			add("%s must be positive, got: %s", d.name, d.value)
		}
	}
	if cfg.SyncInterval < time.Minute {
		add("SyncInterval must be at least 1m, got: %s", cfg.SyncInterval)
	}

	if cfg.RateLimitRequests <= 0 {
		add("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests)
	}
	if cfg.MaxRequestSize <= 0 {
		add("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize)
	}

	if len(problems) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for i, problem := range problems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, problem)
	}
	return errors.New(b.String())
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"agent_tool_secret_set", cfg.AgentToolSecret != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"slot_timezone", cfg.SlotTimeZone,
		"doctor_lock_ttl", cfg.DoctorLockTTL,
		"availability_cache_ttl", cfg.AvailabilityCacheTTL,
		"sync_interval", cfg.SyncInterval,
		"seed_sample_doctors", cfg.SeedSampleDoctors,
		"kafka_enabled", cfg.KafkaEnabled,
	)
}

func redactMongoURI(uri string) string {
	return mongoCredentialPattern.ReplaceAllString(uri, "${1}***:***@")
}

// getEnv returns fallback when key is unset or does not parse.
func getEnv[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvStr(key, fallback string) string {
	return getEnv(key, fallback, func(s string) (string, error) { return s, nil })
}

func getEnvNum(key string, fallback int) int {
	return getEnv(key, fallback, strconv.Atoi)
}

func getEnvBool(key string, fallback bool) bool {
	return getEnv(key, fallback, strconv.ParseBool)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	return getEnv(key, fallback, time.ParseDuration)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
